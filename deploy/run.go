package deploy

import (
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"

	"github.com/caraveld/caravel"
	"github.com/caraveld/caravel/executor"
	"github.com/caraveld/caravel/probe"
)

// run is one in-flight deployment working through its states. It owns
// its record; everything else reads snapshots. No registry or history
// lock is held across a wait.
type run struct {
	o      *Orchestrator
	env    caravel.Environment
	logger log.Logger

	approvec    chan struct{}
	approveOnce sync.Once

	mtx sync.Mutex
	d   caravel.Deployment

	handle executor.Handle
}

func newRun(o *Orchestrator, env caravel.Environment, d caravel.Deployment) *run {
	return &run{
		o:        o,
		env:      env,
		logger:   log.With(o.cfg.Logger, "environment", env.Name, "deployment", d.ID, "version", d.Version),
		approvec: make(chan struct{}),
		d:        d,
	}
}

// See the package doc for the states. Each state method does its work
// and returns the next state; the loop records every transition.
func (r *run) loop() {
	defer r.o.finish(r.env.Name)
	began := r.o.cfg.Now()

	for {
		st := r.status()
		if st.Terminal() {
			d := r.deployment()
			r.logger.Log("terminal", st, "reason", d.Reason)
			observeDeployment(r.env.Name, d, r.o.cfg.Now().Sub(began))
			return
		}

		var next caravel.Status
		switch st {
		case caravel.StatusRequested:
			next = r.requested()
		case caravel.StatusWaitingApproval:
			next = r.waitingApproval()
		case caravel.StatusRollingOut:
			next = r.rollingOut()
		case caravel.StatusVerifying:
			next = r.verifying()
		case caravel.StatusRollingBack:
			next = r.rollingBack()
		case caravel.StatusRollbackVerifying:
			next = r.rollbackVerifying()
		default:
			next = r.fail(fmt.Sprintf("deployment in unexpected state %q", st))
		}
		r.transition(st, next)
	}
}

func (r *run) requested() caravel.Status {
	if r.env.RequireApproval {
		return caravel.StatusWaitingApproval
	}
	return caravel.StatusRollingOut
}

func (r *run) waitingApproval() caravel.Status {
	r.logger.Log("waiting", "approval")
	select {
	case <-r.approvec:
		r.logger.Log("approved", "true")
		return caravel.StatusRollingOut
	case <-r.o.cfg.After(r.o.cfg.ApprovalTimeout):
		return r.fail(fmt.Sprintf("not approved within %s", r.o.cfg.ApprovalTimeout))
	case <-r.o.ctx.Done():
		return r.fail("interrupted by shutdown")
	}
}

func (r *run) rollingOut() caravel.Status {
	d := r.deployment()
	handle, err := r.o.cfg.Executor.Apply(r.o.ctx, r.env, d.Version, d.Image)
	if err != nil {
		// Infrastructure failure; the fleet never reached the target
		// version, so skip verification and go straight to rollback.
		return r.beginRollback(fmt.Sprintf("applying version: %v", err))
	}
	r.handle = handle
	return r.awaitRollout(true)
}

func (r *run) verifying() caravel.Status {
	result, err := r.o.cfg.Prober.Probe(r.o.ctx, r.env.CheckURL)
	if err != nil {
		return r.fail(fmt.Sprintf("verification aborted: %v", err))
	}
	if result != probe.Healthy {
		return r.beginRollback("application failed readiness checks")
	}

	d := r.deployment()
	if err := r.o.cfg.Registry.Commit(r.env.Name, d.Version); err != nil {
		// The registry must be durable before we can declare success;
		// without it the last-known-good pointer would be wrong after
		// a crash.
		return r.fail(fmt.Sprintf("committing version: %v", err))
	}
	if d.Cause == caravel.CauseRollback {
		return caravel.StatusRolledBack
	}
	return caravel.StatusSucceeded
}

func (r *run) rollingBack() caravel.Status {
	d := r.deployment()
	handle, err := r.o.cfg.Executor.Apply(r.o.ctx, r.env, d.RollbackTo, r.env.Image(d.RollbackTo))
	if err != nil {
		return r.fail(fmt.Sprintf("rolling back: %v", err))
	}
	r.handle = handle
	return r.awaitRollout(false)
}

func (r *run) rollbackVerifying() caravel.Status {
	result, err := r.o.cfg.Prober.Probe(r.o.ctx, r.env.CheckURL)
	if err != nil {
		return r.fail(fmt.Sprintf("rollback verification aborted: %v", err))
	}
	if result != probe.Healthy {
		// The previously known-good version is unhealthy too. Retrying
		// rollback indefinitely would thrash; a human has to look.
		return r.fail("rollback version failed readiness checks; manual intervention required")
	}
	// No commit here: current_version already equals the rollback
	// target, since the forward deployment never committed.
	return caravel.StatusRolledBack
}

// awaitRollout polls the executor until the fleet update completes,
// fails, or exceeds the rollout timeout. The forward leg recovers by
// rolling back; the rollback leg has nowhere left to go but Failed.
func (r *run) awaitRollout(forward bool) caravel.Status {
	abandon := func(reason string) caravel.Status {
		if forward {
			return r.beginRollback(reason)
		}
		return r.fail(reason)
	}

	deadline := r.o.cfg.Now().Add(r.o.cfg.RolloutTimeout)
	for {
		status, err := r.o.cfg.Executor.Poll(r.o.ctx, r.handle)
		if err != nil {
			return abandon(fmt.Sprintf("polling rollout: %v", err))
		}
		switch status.State {
		case executor.StateCompleted:
			r.setProgress(100)
			if forward {
				return caravel.StatusVerifying
			}
			return caravel.StatusRollbackVerifying
		case executor.StateFailed:
			return abandon(status.Reason)
		default:
			r.setProgress(status.Percent)
			r.logger.Log("rollout", r.handle.Ref, "percent", status.Percent)
		}

		if !r.o.cfg.Now().Before(deadline) {
			return abandon(fmt.Sprintf("rollout did not complete within %s", r.o.cfg.RolloutTimeout))
		}
		select {
		case <-r.o.cfg.After(r.o.cfg.PollInterval):
		case <-r.o.ctx.Done():
			return r.fail("interrupted by shutdown")
		}
	}
}

// beginRollback decides whether rollback can proceed at all. Without a
// prior healthy version there is nothing to re-apply, which is fatal.
func (r *run) beginRollback(reason string) caravel.Status {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.d.RollbackTo == "" {
		r.d.Reason = fmt.Sprintf("%s: %s", caravel.ReasonNoRollbackTarget, reason)
		return caravel.StatusFailed
	}
	r.d.Reason = reason
	return caravel.StatusRollingBack
}

func (r *run) fail(reason string) caravel.Status {
	r.mtx.Lock()
	r.d.Reason = reason
	r.mtx.Unlock()
	return caravel.StatusFailed
}

func (r *run) transition(from, to caravel.Status) {
	now := r.o.cfg.Now()

	r.mtx.Lock()
	began := r.d.Transitions[len(r.d.Transitions)-1].At
	r.d.SetStatus(to, now)
	d := r.d
	r.mtx.Unlock()

	observeStage(from, now.Sub(began))
	r.logger.Log("transition", fmt.Sprintf("%s -> %s", from, to))
	if err := r.o.cfg.History.Update(d); err != nil {
		r.logger.Log("err", err, "while", "recording transition")
	}
}

func (r *run) setProgress(percent int) {
	r.mtx.Lock()
	if percent < r.d.Progress {
		// advisory, and never goes backwards
		percent = r.d.Progress
	}
	r.d.Progress = percent
	d := r.d
	r.mtx.Unlock()

	if err := r.o.cfg.History.Update(d); err != nil {
		r.logger.Log("err", err, "while", "recording progress")
	}
}

func (r *run) approve(id caravel.DeploymentID) error {
	d := r.deployment()
	if id != "" && id != d.ID {
		return caravel.ErrNoApprovalPending(r.env.Name)
	}
	if d.Status != caravel.StatusWaitingApproval {
		return caravel.ErrNoApprovalPending(r.env.Name)
	}
	r.approveOnce.Do(func() { close(r.approvec) })
	return nil
}

func (r *run) status() caravel.Status {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.d.Status
}

func (r *run) deployment() caravel.Deployment {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.d
}

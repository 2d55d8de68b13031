// Package deploy drives deployments through their state machine:
// rolling out, verifying health, and rolling back to the last
// known-good version when verification fails. One deployment per
// environment may be active at a time; deployments for different
// environments run independently.
package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/caraveld/caravel"
	"github.com/caraveld/caravel/executor"
	"github.com/caraveld/caravel/history"
	"github.com/caraveld/caravel/probe"
	"github.com/caraveld/caravel/registry"
)

type Config struct {
	Registry registry.Store
	History  history.Store
	Executor executor.Executor
	Prober   probe.Prober
	Logger   log.Logger

	// PollInterval is how often rollout progress is polled, and
	// RolloutTimeout is the ceiling on any one fleet update; both
	// bounds are finite so every deployment terminates.
	PollInterval    time.Duration
	RolloutTimeout  time.Duration
	ApprovalTimeout time.Duration

	// Now and After are swapped out in tests; nil means the real clock.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

type Orchestrator struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mtx    sync.Mutex
	active map[string]*run
	wg     sync.WaitGroup
}

func New(cfg Config) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		active: map[string]*run{},
	}
}

// Deploy requests a deployment of version v to env. It returns the
// created record immediately; the state machine runs in the
// background. A second request while one is active is rejected.
func (o *Orchestrator) Deploy(env caravel.Environment, v caravel.Version) (caravel.Deployment, error) {
	return o.start(env, v, caravel.CauseRelease)
}

// Rollback requests a deployment of the last version that was healthy
// before the current one. It fails when no such version exists.
func (o *Orchestrator) Rollback(env caravel.Environment) (caravel.Deployment, error) {
	target, err := o.cfg.Registry.RollbackTarget(env.Name)
	if err != nil {
		return caravel.Deployment{}, err
	}
	return o.start(env, target, caravel.CauseRollback)
}

func (o *Orchestrator) start(env caravel.Environment, v caravel.Version, cause caravel.Cause) (caravel.Deployment, error) {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	if r, ok := o.active[env.Name]; ok {
		return caravel.Deployment{}, caravel.ErrDeploymentInProgress(env.Name, r.deployment().ID)
	}
	// A non-terminal record we are not running belongs to a daemon
	// that died mid-flight; Recover is responsible for closing those
	// out, so finding one here is still a conflict.
	latest, err := o.cfg.History.Latest(env.Name)
	if err == nil && !latest.Status.Terminal() {
		return caravel.Deployment{}, caravel.ErrDeploymentInProgress(env.Name, latest.ID)
	} else if err != nil && err != history.ErrNoDeployments {
		return caravel.Deployment{}, errors.Wrap(err, "checking for active deployment")
	}

	// The version we would roll back to is the current one: commit
	// only happens after health is confirmed, so current is always the
	// last confirmed-healthy version. Captured now, while no
	// deployment is pending.
	var rollbackTo caravel.Version
	state, err := o.cfg.Registry.GetState(env.Name)
	switch err.(type) {
	case nil:
		rollbackTo = state.Current
	case caravel.Missing:
		// first-ever deployment; nothing to roll back to
	default:
		return caravel.Deployment{}, errors.Wrap(err, "reading version state")
	}

	now := o.cfg.Now()
	d := caravel.Deployment{
		ID:          caravel.NewDeploymentID(),
		Environment: env.Name,
		Version:     v,
		Image:       env.Image(v),
		Cause:       cause,
		Status:      caravel.StatusRequested,
		RollbackTo:  rollbackTo,
		StartedAt:   now,
		Transitions: []caravel.Transition{{To: caravel.StatusRequested, At: now}},
	}
	if err := o.cfg.History.Create(&d); err != nil {
		return caravel.Deployment{}, errors.Wrap(err, "recording deployment")
	}

	r := newRun(o, env, d)
	o.active[env.Name] = r
	o.wg.Add(1)
	go r.loop()
	return d, nil
}

// Approve releases a deployment waiting at the approval gate. The id
// is optional; when given it must match the waiting deployment.
func (o *Orchestrator) Approve(environment string, id caravel.DeploymentID) error {
	o.mtx.Lock()
	r, ok := o.active[environment]
	o.mtx.Unlock()
	if !ok {
		return caravel.ErrNoApprovalPending(environment)
	}
	return r.approve(id)
}

// Recover closes out records left non-terminal by a previous daemon
// instance. Call before accepting requests.
func (o *Orchestrator) Recover(envs []caravel.Environment) error {
	for _, env := range envs {
		latest, err := o.cfg.History.Latest(env.Name)
		if err == history.ErrNoDeployments {
			continue
		} else if err != nil {
			return errors.Wrapf(err, "recovering environment %s", env.Name)
		}
		if latest.Status.Terminal() {
			continue
		}
		latest.Reason = "interrupted by daemon restart"
		latest.SetStatus(caravel.StatusFailed, o.cfg.Now())
		if err := o.cfg.History.Update(latest); err != nil {
			return errors.Wrapf(err, "recovering environment %s", env.Name)
		}
		o.cfg.Logger.Log("environment", env.Name, "deployment", latest.ID, "recovered", "Failed")
	}
	return nil
}

// Stop aborts in-flight waits and blocks until all runs have reached a
// terminal state.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) finish(environment string) {
	o.mtx.Lock()
	delete(o.active, environment)
	o.mtx.Unlock()
	o.wg.Done()
}

package caravel

import (
	"time"

	"github.com/google/uuid"
)

// Version identifies an application artifact, e.g. "1.4.2". Versions
// are opaque to most of the system; only the API boundary checks that
// they parse.
type Version string

// Environment is a deployment target. Environments are defined in the
// configuration file and never change while the daemon runs.
type Environment struct {
	Name            string `json:"name" yaml:"name"`
	CheckURL        string `json:"check_url" yaml:"check_url"`
	Fleet           string `json:"fleet" yaml:"fleet"`
	ImageRepo       string `json:"image_repo" yaml:"image_repo"`
	RequireApproval bool   `json:"require_approval" yaml:"require_approval"`
}

// Image returns the container image reference for a version of this
// environment's application.
func (e Environment) Image(v Version) string {
	return e.ImageRepo + ":" + string(v)
}

// VersionState is what the version registry tracks per environment:
// the version believed live and healthy, and the last version that was
// confirmed healthy before it.
type VersionState struct {
	Current  Version `json:"current"`
	Previous Version `json:"previous,omitempty"`
}

type DeploymentID string

func NewDeploymentID() DeploymentID {
	return DeploymentID(uuid.New().String())
}

type Status string

const (
	StatusRequested         Status = "Requested"
	StatusWaitingApproval   Status = "WaitingApproval"
	StatusRollingOut        Status = "RollingOut"
	StatusVerifying         Status = "Verifying"
	StatusRollingBack       Status = "RollingBack"
	StatusRollbackVerifying Status = "RollbackVerifying"
	StatusSucceeded         Status = "Succeeded"
	StatusRolledBack        Status = "RolledBack"
	StatusFailed            Status = "Failed"
)

// Terminal reports whether a deployment in this status is finished;
// terminal records are immutable.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusRolledBack, StatusFailed:
		return true
	}
	return false
}

// Cause says why a deployment was requested.
type Cause string

const (
	CauseRelease  Cause = "release"
	CauseRollback Cause = "rollback"
)

// Transition is one recorded status change of a deployment.
type Transition struct {
	To Status    `json:"to"`
	At time.Time `json:"at"`
}

// Deployment is the record of one attempted deployment. Records are
// append-only history; only the most recent record per environment is
// authoritative for what is running.
type Deployment struct {
	ID          DeploymentID `json:"id"`
	Environment string       `json:"environment"`
	Version     Version      `json:"version"`
	Image       string       `json:"image,omitempty"`
	Cause       Cause        `json:"cause"`
	Sequence    uint64       `json:"sequence"`
	Status      Status       `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	Progress    int          `json:"progress"`
	RollbackTo  Version      `json:"rollback_to,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at,omitempty"`
	Transitions []Transition `json:"transitions,omitempty"`
}

// SetStatus moves the deployment to a new status, stamping the
// transition. Moving to a terminal status also stamps FinishedAt.
func (d *Deployment) SetStatus(to Status, at time.Time) {
	d.Status = to
	d.Transitions = append(d.Transitions, Transition{To: to, At: at})
	if to.Terminal() {
		d.FinishedAt = at
	}
}

// EnvironmentStatus is the answer to "what is running where": the
// registry's view of an environment plus its most recent deployment,
// if there has ever been one.
type EnvironmentStatus struct {
	Environment Environment  `json:"environment"`
	Versions    VersionState `json:"versions"`
	Latest      *Deployment  `json:"latest,omitempty"`
}

// Package executor applies a version to an environment's compute
// fleet. Applying is asynchronous: Apply kicks off the fleet update
// and hands back a Handle which the caller polls for progress.
// "Completed" means the fleet considers every member updated; whether
// the application is actually healthy is the prober's business.
package executor

import (
	"context"

	"github.com/caraveld/caravel"
)

type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status is a point-in-time answer from Poll. Percent is advisory and
// non-decreasing while in progress; Reason is set only on failure.
type Status struct {
	State   State
	Percent int
	Reason  string
}

// Handle identifies one in-flight fleet update.
type Handle struct {
	Environment string
	Fleet       string
	Version     caravel.Version
	Ref         string
}

type Executor interface {
	Apply(ctx context.Context, env caravel.Environment, v caravel.Version, image string) (Handle, error)
	Poll(ctx context.Context, h Handle) (Status, error)
}

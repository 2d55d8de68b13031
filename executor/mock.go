package executor

import (
	"context"

	"github.com/caraveld/caravel"
)

// Mock is an Executor scripted by tests (and used for dry runs). The
// zero value accepts every Apply and reports each rollout Completed on
// the first Poll; set the function fields to script other behaviour.
type Mock struct {
	ApplyFunc func(ctx context.Context, env caravel.Environment, v caravel.Version, image string) (Handle, error)
	PollFunc  func(ctx context.Context, h Handle) (Status, error)
}

func (m *Mock) Apply(ctx context.Context, env caravel.Environment, v caravel.Version, image string) (Handle, error) {
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, env, v, image)
	}
	return Handle{
		Environment: env.Name,
		Fleet:       env.Fleet,
		Version:     v,
		Ref:         "mock-refresh",
	}, nil
}

func (m *Mock) Poll(ctx context.Context, h Handle) (Status, error) {
	if m.PollFunc != nil {
		return m.PollFunc(ctx, h)
	}
	return Status{State: StateCompleted, Percent: 100}, nil
}

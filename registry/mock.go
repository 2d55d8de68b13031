package registry

import (
	"github.com/caraveld/caravel"
)

// Mock lets tests script individual store methods; any method left nil
// delegates to the embedded Store.
type Mock struct {
	Store
	GetStateFunc       func(string) (caravel.VersionState, error)
	CommitFunc         func(string, caravel.Version) error
	RollbackTargetFunc func(string) (caravel.Version, error)
}

func (m *Mock) GetState(environment string) (caravel.VersionState, error) {
	if m.GetStateFunc != nil {
		return m.GetStateFunc(environment)
	}
	return m.Store.GetState(environment)
}

func (m *Mock) Commit(environment string, v caravel.Version) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(environment, v)
	}
	return m.Store.Commit(environment, v)
}

func (m *Mock) RollbackTarget(environment string) (caravel.Version, error) {
	if m.RollbackTargetFunc != nil {
		return m.RollbackTargetFunc(environment)
	}
	return m.Store.RollbackTarget(environment)
}

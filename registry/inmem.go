package registry

import (
	"sync"

	"github.com/caraveld/caravel"
)

// NewInMem returns a Store keeping version state in memory. Used by
// tests and dry-run mode; it is not durable.
func NewInMem() Store {
	return &inmem{
		states: map[string]caravel.VersionState{},
	}
}

type inmem struct {
	mtx    sync.Mutex
	states map[string]caravel.VersionState
}

func (s *inmem) GetState(environment string) (caravel.VersionState, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	state, ok := s.states[environment]
	if !ok {
		return caravel.VersionState{}, caravel.ErrUnknownEnvironment(environment)
	}
	return state, nil
}

func (s *inmem) Commit(environment string, v caravel.Version) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	state := s.states[environment]
	if state.Current == v {
		return nil
	}
	state.Previous = state.Current
	state.Current = v
	s.states[environment] = state
	return nil
}

func (s *inmem) RollbackTarget(environment string) (caravel.Version, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	state, ok := s.states[environment]
	if !ok || state.Previous == "" {
		return "", caravel.ErrNoRollbackTarget(environment)
	}
	return state.Previous, nil
}

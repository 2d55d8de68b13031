package history

import (
	"sync"

	"github.com/caraveld/caravel"
)

// NewInMem returns a Store keeping deployment records in memory.
func NewInMem() Store {
	return &inmem{
		byEnv: map[string][]caravel.DeploymentID{},
		byID:  map[caravel.DeploymentID]caravel.Deployment{},
	}
}

type inmem struct {
	mtx   sync.Mutex
	byEnv map[string][]caravel.DeploymentID // ascending sequence
	byID  map[caravel.DeploymentID]caravel.Deployment
}

func (s *inmem) Create(d *caravel.Deployment) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	ids := s.byEnv[d.Environment]
	var last uint64
	if len(ids) > 0 {
		last = s.byID[ids[len(ids)-1]].Sequence
	}
	d.Sequence = last + 1

	s.byEnv[d.Environment] = append(ids, d.ID)
	s.byID[d.ID] = *d
	return nil
}

func (s *inmem) Update(d caravel.Deployment) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stored, ok := s.byID[d.ID]
	if !ok {
		return ErrNoSuchDeployment
	}
	if stored.Status.Terminal() {
		return ErrTerminalRecord
	}
	s.byID[d.ID] = d
	return nil
}

func (s *inmem) Get(id caravel.DeploymentID) (caravel.Deployment, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return caravel.Deployment{}, ErrNoSuchDeployment
	}
	return stored, nil
}

func (s *inmem) Latest(environment string) (caravel.Deployment, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	ids := s.byEnv[environment]
	if len(ids) == 0 {
		return caravel.Deployment{}, ErrNoDeployments
	}
	return s.byID[ids[len(ids)-1]], nil
}

func (s *inmem) List(environment string) ([]caravel.Deployment, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	ids := s.byEnv[environment]
	out := make([]caravel.Deployment, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.byID[ids[i]])
	}
	return out, nil
}

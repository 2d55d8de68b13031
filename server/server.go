// Package server implements the daemon's API on top of the
// orchestrator and the stores. It owns request validation: environment
// names must be configured and versions must parse before anything
// else happens.
package server

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/caraveld/caravel"
	"github.com/caraveld/caravel/history"
	"github.com/caraveld/caravel/registry"
)

// Orchestrator is the part of deploy.Orchestrator the server needs.
type Orchestrator interface {
	Deploy(env caravel.Environment, v caravel.Version) (caravel.Deployment, error)
	Rollback(env caravel.Environment) (caravel.Deployment, error)
	Approve(environment string, id caravel.DeploymentID) error
}

type Server struct {
	orchestrator Orchestrator
	registry     registry.Store
	history      history.Store
	environment  func(name string) (caravel.Environment, bool)
	logger       log.Logger
}

func New(
	orchestrator Orchestrator,
	reg registry.Store,
	hist history.Store,
	environment func(name string) (caravel.Environment, bool),
	logger log.Logger,
) *Server {
	return &Server{
		orchestrator: orchestrator,
		registry:     reg,
		history:      hist,
		environment:  environment,
		logger:       logger,
	}
}

func (s *Server) PostDeployment(ctx context.Context, environment, version string) (caravel.Deployment, error) {
	env, ok := s.environment(environment)
	if !ok {
		return caravel.Deployment{}, caravel.ErrUnknownEnvironment(environment)
	}
	if _, err := semver.NewVersion(version); err != nil {
		return caravel.Deployment{}, caravel.ErrInvalidVersion(version, err)
	}
	d, err := s.orchestrator.Deploy(env, caravel.Version(version))
	if err != nil {
		return caravel.Deployment{}, err
	}
	s.logger.Log("environment", environment, "version", version, "deployment", d.ID)
	return d, nil
}

func (s *Server) PostRollback(ctx context.Context, environment string) (caravel.Deployment, error) {
	env, ok := s.environment(environment)
	if !ok {
		return caravel.Deployment{}, caravel.ErrUnknownEnvironment(environment)
	}
	d, err := s.orchestrator.Rollback(env)
	if err != nil {
		return caravel.Deployment{}, err
	}
	s.logger.Log("environment", environment, "rollback_to", d.Version, "deployment", d.ID)
	return d, nil
}

func (s *Server) PostApproval(ctx context.Context, environment string, id caravel.DeploymentID) error {
	if _, ok := s.environment(environment); !ok {
		return caravel.ErrUnknownEnvironment(environment)
	}
	return s.orchestrator.Approve(environment, id)
}

func (s *Server) Status(ctx context.Context, environment string) (caravel.EnvironmentStatus, error) {
	env, ok := s.environment(environment)
	if !ok {
		return caravel.EnvironmentStatus{}, caravel.ErrUnknownEnvironment(environment)
	}

	status := caravel.EnvironmentStatus{Environment: env}

	state, err := s.registry.GetState(environment)
	switch err.(type) {
	case nil:
		status.Versions = state
	case caravel.Missing:
		// nothing committed yet; an empty state is the honest answer
	default:
		return caravel.EnvironmentStatus{}, errors.Wrap(err, "reading version state")
	}

	latest, err := s.history.Latest(environment)
	if err == nil {
		status.Latest = &latest
	} else if err != history.ErrNoDeployments {
		return caravel.EnvironmentStatus{}, errors.Wrap(err, "reading deployment history")
	}
	return status, nil
}

func (s *Server) History(ctx context.Context, environment string) ([]caravel.Deployment, error) {
	if _, ok := s.environment(environment); !ok {
		return nil, caravel.ErrUnknownEnvironment(environment)
	}
	return s.history.List(environment)
}

func (s *Server) Ping(ctx context.Context) error {
	return nil
}

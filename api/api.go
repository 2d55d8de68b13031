// Package api defines the surface a caravel daemon must satisfy to
// adequately serve a connecting caravelctl.
package api

import (
	"context"

	"github.com/caraveld/caravel"
)

type Server interface {
	// PostDeployment requests a deployment of version to environment.
	// It fails with a conflict when a deployment is already active.
	PostDeployment(ctx context.Context, environment, version string) (caravel.Deployment, error)

	// PostRollback requests a deployment of the last known-good
	// version. It fails when no prior healthy version exists.
	PostRollback(ctx context.Context, environment string) (caravel.Deployment, error)

	// PostApproval releases a deployment waiting at the approval gate.
	PostApproval(ctx context.Context, environment string, id caravel.DeploymentID) error

	// Status reports the registry's version state and the most recent
	// deployment record for an environment.
	Status(ctx context.Context, environment string) (caravel.EnvironmentStatus, error)

	// History lists an environment's deployment records, most recent
	// first.
	History(ctx context.Context, environment string) ([]caravel.Deployment, error)

	Ping(ctx context.Context) error
}

// Package history keeps the append-only log of deployment records.
// Records for one environment are strictly ordered by sequence number,
// and a record that has reached a terminal status never changes again.
package history

import (
	"errors"

	"github.com/caraveld/caravel"
)

var (
	ErrNoSuchDeployment = errors.New("no such deployment")

	// ErrNoDeployments is returned by Latest for an environment that
	// has never had a deployment requested.
	ErrNoDeployments = errors.New("no deployments for environment")

	ErrTerminalRecord = errors.New("deployment record is terminal and cannot be updated")
)

type Store interface {
	// Create persists a new record, assigning it the next sequence
	// number for its environment.
	Create(d *caravel.Deployment) error

	// Update replaces a record's mutable fields. Updating a record
	// that has already reached a terminal status fails with
	// ErrTerminalRecord.
	Update(d caravel.Deployment) error

	Get(id caravel.DeploymentID) (caravel.Deployment, error)

	// Latest returns the most recent record for an environment; it is
	// the authoritative answer for what is (or was last) deployed.
	Latest(environment string) (caravel.Deployment, error)

	// List returns all records for an environment, most recent first.
	List(environment string) ([]caravel.Deployment, error)
}

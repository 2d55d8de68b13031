// Package registry tracks, per environment, which version is live and
// which version was last known to be healthy before it. It is the only
// owner of that state; the orchestrator reads and writes it solely
// through the Store interface.
package registry

import (
	"github.com/caraveld/caravel"
)

type Store interface {
	// GetState returns the version state for an environment. It fails
	// with a caravel.Missing error if the environment has never had a
	// version committed.
	GetState(environment string) (caravel.VersionState, error)

	// Commit records that a version has been confirmed healthy:
	// previous becomes the old current, current becomes v. Committing
	// the version that is already current is a no-op. State must be
	// durable before Commit returns.
	Commit(environment string, v caravel.Version) error

	// RollbackTarget returns the version to use for a manual rollback:
	// the last version that was healthy before the current one. It
	// fails with a caravel.Missing error when no such version exists.
	RollbackTarget(environment string) (caravel.Version, error)
}

package registry

import (
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/caraveld/caravel"
)

// A version store that uses a SQL database. Writes go through
// transactions and are durable once Commit returns, so a crash
// mid-deployment cannot lose the last-known-good pointer.
type DB struct {
	mtx  sync.Mutex // commits for one environment must be serialized
	conn *sql.DB
}

func NewSQL(driver, datasource string) (*DB, error) {
	conn, err := sql.Open(driver, datasource)
	if err != nil {
		return nil, err
	}
	db := &DB{conn: conn}
	return db, db.ensureTables()
}

func (db *DB) ensureTables() error {
	_, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS version_states (
		environment      TEXT PRIMARY KEY,
		current_version  TEXT NOT NULL,
		previous_version TEXT NOT NULL DEFAULT ''
	)`)
	return errors.Wrap(err, "creating version_states table")
}

func (db *DB) GetState(environment string) (caravel.VersionState, error) {
	var state caravel.VersionState
	err := db.conn.QueryRow(`SELECT current_version, previous_version
	                           FROM version_states
	                          WHERE environment = ?`, environment).
		Scan(&state.Current, &state.Previous)
	if err == sql.ErrNoRows {
		return caravel.VersionState{}, caravel.ErrUnknownEnvironment(environment)
	} else if err != nil {
		return caravel.VersionState{}, errors.Wrap(err, "getting version state")
	}
	return state, nil
}

func (db *DB) Commit(environment string, v caravel.Version) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning commit")
	}

	var current string
	err = tx.QueryRow(`SELECT current_version FROM version_states
	                    WHERE environment = ?`, environment).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`INSERT INTO version_states (environment, current_version, previous_version)
		                  VALUES (?, ?, '')`, environment, string(v))
	case err != nil:
		// fall through to rollback below
	case current == string(v):
		// committing the current version again is a no-op
	default:
		_, err = tx.Exec(`UPDATE version_states
		                     SET previous_version = current_version, current_version = ?
		                   WHERE environment = ?`, string(v), environment)
	}
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "committing version")
	}
	return errors.Wrap(tx.Commit(), "committing version")
}

func (db *DB) RollbackTarget(environment string) (caravel.Version, error) {
	var previous string
	err := db.conn.QueryRow(`SELECT previous_version FROM version_states
	                          WHERE environment = ?`, environment).Scan(&previous)
	if err == sql.ErrNoRows || (err == nil && previous == "") {
		return "", caravel.ErrNoRollbackTarget(environment)
	} else if err != nil {
		return "", errors.Wrap(err, "getting rollback target")
	}
	return caravel.Version(previous), nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

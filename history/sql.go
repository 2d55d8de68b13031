package history

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/caraveld/caravel"
)

// A deployment log that uses a SQL database.
type DB struct {
	mtx  sync.Mutex // sequence assignment per environment must be serialized
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
	_, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS deployments (
		id          TEXT PRIMARY KEY,
		environment TEXT NOT NULL,
		version     TEXT NOT NULL,
		image       TEXT NOT NULL DEFAULT '',
		cause       TEXT NOT NULL,
		sequence    INTEGER NOT NULL,
		status      TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		progress    INTEGER NOT NULL DEFAULT 0,
		rollback_to TEXT NOT NULL DEFAULT '',
		started_at  TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		transitions TEXT NOT NULL DEFAULT '[]',
		UNIQUE (environment, sequence)
	)`)
	return errors.Wrap(err, "creating deployments table")
}

func (db *DB) Create(d *caravel.Deployment) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning create")
	}

	var last sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(sequence) FROM deployments
	                        WHERE environment = ?`, d.Environment).Scan(&last); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "assigning sequence")
	}
	d.Sequence = uint64(last.Int64) + 1

	transitions, err := json.Marshal(d.Transitions)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "encoding transitions")
	}

	if _, err := tx.Exec(`INSERT INTO deployments
		(id, environment, version, image, cause, sequence, status, reason, progress, rollback_to, started_at, finished_at, transitions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(d.ID), d.Environment, string(d.Version), d.Image, string(d.Cause),
		int64(d.Sequence), string(d.Status), d.Reason, d.Progress, string(d.RollbackTo),
		d.StartedAt, nullableTime(d.FinishedAt), string(transitions),
	); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "inserting deployment")
	}
	return errors.Wrap(tx.Commit(), "inserting deployment")
}

func (db *DB) Update(d caravel.Deployment) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	var status string
	err := db.conn.QueryRow(`SELECT status FROM deployments
	                          WHERE id = ?`, string(d.ID)).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNoSuchDeployment
	} else if err != nil {
		return errors.Wrap(err, "checking deployment status")
	}
	if caravel.Status(status).Terminal() {
		return ErrTerminalRecord
	}

	transitions, err := json.Marshal(d.Transitions)
	if err != nil {
		return errors.Wrap(err, "encoding transitions")
	}
	_, err = db.conn.Exec(`UPDATE deployments
	                          SET status = ?, reason = ?, progress = ?,
	                              finished_at = ?, transitions = ?
	                        WHERE id = ?`,
		string(d.Status), d.Reason, d.Progress,
		nullableTime(d.FinishedAt), string(transitions), string(d.ID))
	return errors.Wrap(err, "updating deployment")
}

func (db *DB) Get(id caravel.DeploymentID) (caravel.Deployment, error) {
	rows, err := db.queryDeployments(`SELECT `+deploymentColumns+`
	                                    FROM deployments
	                                   WHERE id = ?`, string(id))
	if err != nil {
		return caravel.Deployment{}, err
	}
	if len(rows) == 0 {
		return caravel.Deployment{}, ErrNoSuchDeployment
	}
	return rows[0], nil
}

func (db *DB) Latest(environment string) (caravel.Deployment, error) {
	rows, err := db.queryDeployments(`SELECT `+deploymentColumns+`
	                                    FROM deployments
	                                   WHERE environment = ?
	                                   ORDER BY sequence DESC
	                                   LIMIT 1`, environment)
	if err != nil {
		return caravel.Deployment{}, err
	}
	if len(rows) == 0 {
		return caravel.Deployment{}, ErrNoDeployments
	}
	return rows[0], nil
}

func (db *DB) List(environment string) ([]caravel.Deployment, error) {
	return db.queryDeployments(`SELECT `+deploymentColumns+`
	                              FROM deployments
	                             WHERE environment = ?
	                             ORDER BY sequence DESC`, environment)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

const deploymentColumns = `id, environment, version, image, cause, sequence, status, reason, progress, rollback_to, started_at, finished_at, transitions`

func (db *DB) queryDeployments(query string, args ...interface{}) ([]caravel.Deployment, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying deployments")
	}
	defer rows.Close()

	var deployments []caravel.Deployment
	for rows.Next() {
		var (
			d               caravel.Deployment
			sequence        int64
			finishedAt      sql.NullTime
			transitionBytes []byte
		)
		if err := rows.Scan(
			&d.ID, &d.Environment, &d.Version, &d.Image, &d.Cause, &sequence,
			&d.Status, &d.Reason, &d.Progress, &d.RollbackTo,
			&d.StartedAt, &finishedAt, &transitionBytes,
		); err != nil {
			return nil, errors.Wrap(err, "scanning deployment")
		}
		d.Sequence = uint64(sequence)
		if finishedAt.Valid {
			d.FinishedAt = finishedAt.Time
		}
		if err := json.Unmarshal(transitionBytes, &d.Transitions); err != nil {
			return nil, errors.Wrap(err, "decoding transitions")
		}
		deployments = append(deployments, d)
	}
	return deployments, errors.Wrap(rows.Err(), "querying deployments")
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

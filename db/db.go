package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrMetaNotInDB is returned when the meta row has not been initialized yet
var ErrMetaNotInDB = errors.New("meta not in db")

// SQLite represents the SQLite database
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a new *SQLite database
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{
		db: db,
	}
}

// Migrate creates the tables needed for the database
func (r *SQLite) Migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS meta(
		id INTEGER PRIMARY KEY CHECK (id = 0),
		genesisString TEXT NOT NULL
	);
	`
	_, err := r.db.Exec(query)
	if err != nil {
		return err
	}

	query = `
	CREATE TABLE IF NOT EXISTS verifications(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		credential TEXT NOT NULL,
		outcome TEXT NOT NULL,
		insertedDatetime DATETIME
	);
	`
	_, err = r.db.Exec(query)
	if err != nil {
		return err
	}

	query = `
	CREATE INDEX IF NOT EXISTS verificationsByAddress
	ON verifications(address);
	`
	_, err = r.db.Exec(query)
	if err != nil {
		return err
	}

	return nil
}

// InitMeta stores the genesis string of the chain the node verifies against.
// If it was already stored, it checks that it matches the given one, so that
// a data dir is never shared between chains.
func (r *SQLite) InitMeta(genesisString string) error {
	stored, err := r.GetGenesisString()
	if err == nil {
		if stored != genesisString {
			return fmt.Errorf("db belongs to chain %q, node is connected to %q",
				stored, genesisString)
		}
		return nil
	}
	if !errors.Is(err, ErrMetaNotInDB) {
		return err
	}

	sqlQuery := `
	INSERT INTO meta(
		id,
		genesisString
	) values(0, ?)
	`
	stmt, err := r.db.Prepare(sqlQuery)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	_, err = stmt.Exec(genesisString)
	return err
}

// GetGenesisString returns the genesis string stored by InitMeta
func (r *SQLite) GetGenesisString() (string, error) {
	row := r.db.QueryRow("SELECT genesisString FROM meta WHERE id = 0")
	var genesisString string
	err := row.Scan(&genesisString)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMetaNotInDB
	}
	if err != nil {
		return "", err
	}
	return genesisString, nil
}

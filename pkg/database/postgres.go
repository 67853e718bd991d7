package database

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// Connect opens the Postgres database used for durable client
// snapshots. The caller owns the handle.
func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

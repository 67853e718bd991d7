package persist

import (
	"database/sql"
	"encoding/json"
	"log"
)

// SQL keeps snapshots in a key/value table, one row per storage key.
// Written against Postgres (lib/pq placeholders).
type SQL struct {
	db      *sql.DB
	stmtGet *sql.Stmt
	stmtSet *sql.Stmt
}

func NewSQL(db *sql.DB) (*SQL, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS client_snapshots (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return nil, err
	}

	s := &SQL{db: db}

	s.stmtSet, err = db.Prepare(`
		INSERT INTO client_snapshots (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return nil, err
	}

	s.stmtGet, err = db.Prepare(`SELECT value FROM client_snapshots WHERE key = $1`)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SQL) Set(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[PERSIST] marshal %s: %v", key, err)
		return
	}
	if _, err := s.stmtSet.Exec(key, string(data)); err != nil {
		log.Printf("[PERSIST] sql set %s: %v", key, err)
	}
}

func (s *SQL) Get(key string, dest interface{}) bool {
	var raw string
	if err := s.stmtGet.QueryRow(key).Scan(&raw); err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), dest) == nil
}

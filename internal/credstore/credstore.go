package credstore

import (
	"database/sql"
	"errors"
	"fmt"

	"splitbook/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Fixed key names for the persisted token pair. They are stored and
// cleared together, never independently.
const (
	accessKey  = "access"
	refreshKey = "refresh"
)

// Store persists the session token pair across process restarts so a new
// invocation does not force re-login.
type Store struct {
	conn *sql.DB
}

// Open opens the credential database at path and runs migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	return err
}

// SaveTokens stores both tokens, replacing any previous pair.
func (s *Store) SaveTokens(pair models.TokenPair) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for name, value := range map[string]string{
		accessKey:  pair.Access,
		refreshKey: pair.Refresh,
	} {
		if _, err := tx.Exec(
			"INSERT INTO credentials (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
			name, value,
		); err != nil {
			return fmt.Errorf("save %s token: %w", name, err)
		}
	}

	return tx.Commit()
}

// Tokens returns the stored token pair. Both fields are empty when no
// pair has been saved.
func (s *Store) Tokens() (models.TokenPair, error) {
	var pair models.TokenPair

	read := func(name string) (string, error) {
		var value string
		err := s.conn.QueryRow("SELECT value FROM credentials WHERE name = ?", name).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return value, err
	}

	var err error
	if pair.Access, err = read(accessKey); err != nil {
		return models.TokenPair{}, err
	}
	if pair.Refresh, err = read(refreshKey); err != nil {
		return models.TokenPair{}, err
	}
	return pair, nil
}

// Clear removes both tokens. Clearing an already-empty store is not an
// error.
func (s *Store) Clear() error {
	_, err := s.conn.Exec("DELETE FROM credentials WHERE name IN (?, ?)", accessKey, refreshKey)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Package store holds the in-memory WiFi credentials shared between the
// radio callbacks, the main control loop and the status notifier, and
// mirrors them into a SQLite-backed key-value record.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

// Persisted key names. These match the companion app's expectations and the
// on-wire field names.
const (
	keySSIDPrim = "ssidPrim"
	keySSIDSec  = "ssidSec"
	keyPwPrim   = "pwPrim"
	keyPwSec    = "pwSec"
	keyValid    = "valid"
)

// Credentials is one atomic pair of primary/secondary network settings.
// Either all four fields are set together or the record is absent; the
// store never holds a half-configured pair.
type Credentials struct {
	SSIDPrim string
	PwPrim   string
	SSIDSec  string
	PwSec    string
}

// Complete reports whether all four fields are non-empty.
func (c Credentials) Complete() bool {
	return c.SSIDPrim != "" && c.PwPrim != "" && c.SSIDSec != "" && c.PwSec != ""
}

// Store mediates between the in-memory credential state and the persistent
// key-value record. All mutable fields are guarded by a single mutex; the
// write characteristic handler, the main loop and the notifier all go
// through it.
type Store struct {
	mu            sync.Mutex
	creds         Credentials
	available     bool // credentials available for connection attempts
	statusChanged bool // pending work for the main loop

	conn   *sql.DB
	path   string
	logger *logrus.Entry
}

// Open opens (or creates) the credential database at path and runs the
// schema migration.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger.WithField("component", "store"),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS wifi_credentials (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Load reads the persisted record into memory. It returns the credentials
// and whether a valid record was found. A record whose valid flag is set
// but with an empty field is treated as absent.
func (s *Store) Load() (Credentials, bool, error) {
	rows, err := s.conn.Query("SELECT key, value FROM wifi_credentials")
	if err != nil {
		return Credentials{}, false, fmt.Errorf("failed to read credentials: %w", err)
	}
	defer rows.Close()

	var creds Credentials
	valid := false
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Credentials{}, false, fmt.Errorf("failed to scan credential row: %w", err)
		}
		switch k {
		case keySSIDPrim:
			creds.SSIDPrim = v
		case keySSIDSec:
			creds.SSIDSec = v
		case keyPwPrim:
			creds.PwPrim = v
		case keyPwSec:
			creds.PwSec = v
		case keyValid:
			valid = v == "1"
		}
	}
	if err := rows.Err(); err != nil {
		return Credentials{}, false, err
	}

	if !valid {
		s.logger.Info("No persisted credentials, waiting for provisioning")
		return Credentials{}, false, nil
	}
	if !creds.Complete() {
		s.logger.Warn("Found persisted record but credentials are invalid")
		return Credentials{}, false, nil
	}

	s.mu.Lock()
	s.creds = creds
	s.available = true
	s.mu.Unlock()
	return creds, true, nil
}

// SetCredentials atomically overwrites the in-memory credentials, persists
// them with the valid flag set, marks credentials available and raises the
// status-changed signal. The in-memory update happens even if persistence
// fails; the error is returned for logging.
func (s *Store) SetCredentials(c Credentials) error {
	s.mu.Lock()
	s.creds = c
	s.available = true
	s.statusChanged = true
	s.mu.Unlock()

	return s.persist(c)
}

func (s *Store) persist(c Credentials) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT OR REPLACE INTO wifi_credentials (key, value) VALUES (?, ?)`
	pairs := map[string]string{
		keySSIDPrim: c.SSIDPrim,
		keySSIDSec:  c.SSIDSec,
		keyPwPrim:   c.PwPrim,
		keyPwSec:    c.PwSec,
		keyValid:    "1",
	}
	for k, v := range pairs {
		if _, err := tx.Exec(upsert, k, v); err != nil {
			return fmt.Errorf("failed to persist %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	return nil
}

// ClearCredentials empties the in-memory credentials, clears the available
// flag and raises the status-changed signal. The persisted record is not
// touched; see Erase and Wipe.
func (s *Store) ClearCredentials() {
	s.mu.Lock()
	s.creds = Credentials{}
	s.available = false
	s.statusChanged = true
	s.mu.Unlock()
}

// Erase removes the persisted record entirely.
func (s *Store) Erase() error {
	if _, err := s.conn.Exec("DELETE FROM wifi_credentials"); err != nil {
		return fmt.Errorf("failed to erase credentials: %w", err)
	}
	return nil
}

// Wipe re-initializes the underlying storage by dropping and recreating the
// schema. This is a deliberate low-level reset, distinct from Erase.
func (s *Store) Wipe() error {
	if _, err := s.conn.Exec("DROP TABLE IF EXISTS wifi_credentials"); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	return nil
}

// Credentials returns a copy of the current credentials and whether they
// are available for connection attempts.
func (s *Store) Credentials() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.available
}

// SetStatusChanged raises the signal consumed by the main loop.
func (s *Store) SetStatusChanged() {
	s.mu.Lock()
	s.statusChanged = true
	s.mu.Unlock()
}

// StatusChanged reports whether the signal is raised.
func (s *Store) StatusChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusChanged
}

// ClearStatusChanged lowers the signal. The main loop calls this after
// processing a change, regardless of the outcome.
func (s *Store) ClearStatusChanged() {
	s.mu.Lock()
	s.statusChanged = false
	s.mu.Unlock()
}

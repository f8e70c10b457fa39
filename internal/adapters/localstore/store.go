// Package localstore keeps the state that belongs to this device only:
// the current session, member profiles, settings and the mail log.
//
// Each of the four documents lives under its own key in a single SQLite
// key/value table. Documents are read once when the store opens and are
// rewritten whenever they change.
package localstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/ports"
)

const (
	keySession  = "session"
	keyProfiles = "profiles"
	keySettings = "settings"
	keyMailLog  = "mail_log"
)

// Store is the SQLite-backed device store.
type Store struct {
	db *sqlx.DB

	mu       sync.RWMutex
	session  *entities.Session
	profiles map[entities.Role]entities.Profile
	settings entities.Settings
	mailLog  []entities.MailLogEntry
}

var _ ports.LocalStore = (*Store)(nil)

// Open opens (creating if needed) the device store at path and loads its documents.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty local store path")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	s.profiles = entities.DefaultProfiles()
	s.settings = entities.DefaultSettings()

	var session entities.Session
	found, err := s.read(keySession, &session)
	if err != nil {
		return err
	}
	if found {
		s.session = &session
	}

	stored := map[entities.Role]entities.Profile{}
	if _, err := s.read(keyProfiles, &stored); err != nil {
		return err
	}
	for role, p := range stored {
		s.profiles[role] = p
	}

	if _, err := s.read(keySettings, &s.settings); err != nil {
		return err
	}
	s.settings = s.settings.Normalize()

	if _, err := s.read(keyMailLog, &s.mailLog); err != nil {
		return err
	}
	return nil
}

func (s *Store) read(key string, dest interface{}) (bool, error) {
	var raw string
	err := s.db.Get(&raw, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) write(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(raw))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Session returns the stored session, if any.
func (s *Store) Session() (entities.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return entities.Session{}, false
	}
	return *s.session, true
}

// SetSession persists the current session.
func (s *Store) SetSession(session entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(keySession, session); err != nil {
		return err
	}
	s.session = &session
	return nil
}

// ClearSession removes the current session.
func (s *Store) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, keySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.session = nil
	return nil
}

// Profiles returns a copy of every profile.
func (s *Store) Profiles() map[entities.Role]entities.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[entities.Role]entities.Profile, len(s.profiles))
	for k, v := range s.profiles {
		out[k] = v
	}
	return out
}

// Profile returns the profile for role.
func (s *Store) Profile(role entities.Role) entities.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[role]
}

// SetProfile overwrites the profile for role.
func (s *Store) SetProfile(role entities.Role, p entities.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[entities.Role]entities.Profile, len(s.profiles))
	for k, v := range s.profiles {
		next[k] = v
	}
	next[role] = p
	if err := s.write(keyProfiles, next); err != nil {
		return err
	}
	s.profiles = next
	return nil
}

// Settings returns the current settings.
func (s *Store) Settings() entities.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings normalizes and persists settings.
func (s *Store) SetSettings(settings entities.Settings) error {
	settings = settings.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(keySettings, settings); err != nil {
		return err
	}
	s.settings = settings
	return nil
}

// MailLog returns the log, newest first.
func (s *Store) MailLog() []entities.MailLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.MailLogEntry, len(s.mailLog))
	copy(out, s.mailLog)
	return out
}

// AppendMailLog prepends entry and keeps the newest entries only.
func (s *Store) AppendMailLog(entry entities.MailLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := entities.PrependMailLog(s.mailLog, entry)
	if err := s.write(keyMailLog, next); err != nil {
		return err
	}
	s.mailLog = next
	return nil
}

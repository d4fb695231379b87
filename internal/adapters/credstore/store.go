// Package credstore keeps the account credentials issued by the gateway in a
// single msgpack file.
package credstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/longregen/alicia-edge/internal/domain"
)

// record is the on-disk layout. Version lets a later format coexist.
type record struct {
	Version     int       `msgpack:"v"`
	UUID        string    `msgpack:"uuid"`
	AccessToken string    `msgpack:"access_token"`
	Serial      string    `msgpack:"serial,omitempty"`
	SavedAt     time.Time `msgpack:"saved_at"`
}

const recordVersion = 1

// Store is a file backed ports.CredentialStore. It also persists the device
// serial so it survives credential resets.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns domain.ErrNotFound when nothing has been saved or the saved
// credentials were cleared.
func (s *Store) Load() (domain.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return domain.Credentials{}, err
	}
	if rec.UUID == "" && rec.AccessToken == "" {
		return domain.Credentials{}, domain.ErrNotFound
	}
	creds := domain.Credentials{UUID: rec.UUID, AccessToken: rec.AccessToken}
	if !creds.Valid() {
		return domain.Credentials{}, fmt.Errorf("load credentials from %s: %w", s.path, domain.ErrInvalidCredential)
	}
	return creds, nil
}

// Save rejects malformed credentials without touching the file.
func (s *Store) Save(creds domain.Credentials) error {
	if !creds.Valid() {
		return fmt.Errorf("save credentials: %w", domain.ErrInvalidCredential)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("credstore: replacing unreadable record", "path", s.path, "error", err)
	}
	rec.UUID = creds.UUID
	rec.AccessToken = creds.AccessToken
	if err := s.write(rec); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	slog.Info("credstore: credentials saved", "path", s.path)
	return nil
}

// Clear drops the credentials and keeps the serial.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil || rec.Serial == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear credentials: %w", err)
		}
		slog.Info("credstore: credentials cleared", "path", s.path)
		return nil
	}

	rec.UUID, rec.AccessToken = "", ""
	if err := s.write(rec); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	slog.Info("credstore: credentials cleared", "path", s.path)
	return nil
}

// Serial returns the persisted device serial, or "" if none was stored.
func (s *Store) Serial() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Serial, nil
}

// SaveSerial stores the device serial alongside the credentials.
func (s *Store) SaveSerial(serial string) error {
	if serial == "" {
		return fmt.Errorf("save serial: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("credstore: replacing unreadable record", "path", s.path, "error", err)
		rec = record{}
	}
	rec.Serial = serial
	if err := s.write(rec); err != nil {
		return fmt.Errorf("save serial: %w", err)
	}
	return nil
}

func (s *Store) read() (record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return record{}, domain.ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if rec.Version > recordVersion {
		return record{}, fmt.Errorf("decode %s: unsupported record version %d", s.path, rec.Version)
	}
	return rec, nil
}

// write replaces the file atomically so a power cut never leaves half a record.
func (s *Store) write(rec record) error {
	rec.Version = recordVersion
	rec.SavedAt = time.Now().UTC()
	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

package party

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/asheshgoplani/party-deck/internal/logging"
)

var storeLog = logging.ForComponent(logging.CompStore)

// storeFile is the on-disk JSON representation. Sessions are a list (not a
// map) so that participant and session order survive the round trip
// byte-for-byte deterministically.
type storeFile struct {
	Sessions  []*Session `json:"sessions"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store persists the full session set as a single JSON snapshot file.
// Save writes to a temp file and renames it over the target, so a crash
// mid-write never leaves a half-written store.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the given file path. The file does not
// need to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the durable session set. A missing file yields an empty map.
// A corrupt file also yields an empty (usable) map plus a *CorruptStoreError
// so the caller can log and continue rather than crash.
func (s *Store) Load() (map[string]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]*Session)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sessions, nil
		}
		return sessions, &CorruptStoreError{Path: s.path, Err: err}
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return sessions, &CorruptStoreError{Path: s.path, Err: err}
	}

	for _, sess := range file.Sessions {
		if sess == nil || sess.ID == "" {
			continue
		}
		if sess.Reminder == "" {
			sess.Reminder = ReminderPending
		}
		sessions[sess.ID] = sess
	}

	storeLog.Debug("store_loaded",
		slog.String("path", s.path),
		slog.Int("sessions", len(sessions)))
	return sessions, nil
}

// Save writes the full snapshot atomically (write-to-temp-then-replace).
func (s *Store) Save(sessions map[string]*Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*Session, 0, len(sessions))
	for _, sess := range sessions {
		list = append(list, sess)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})

	data, err := json.MarshalIndent(storeFile{
		Sessions:  list,
		UpdatedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	storeLog.Debug("store_saved",
		slog.String("path", s.path),
		slog.Int("sessions", len(list)))
	return nil
}

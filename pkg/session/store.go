package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/jg-phare/goat/pkg/types"
)

const lockFile = ".lock"

// withSessionLock serializes writers to one session's directory with an
// OS-level advisory file lock: SaveMessages (from the main loop, after every
// turn) and UpdateMetadata (from forks and rewinds) can
// otherwise race on the same metadata.json if a fork is issued mid-turn.
func (s *Store) withSessionLock(sessionID string, fn func() error) error {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	defer lock.Unlock()
	return fn()
}

// SessionState is one session's full persisted content: its header plus the
// message buffer the executor resumes into types.AppState.Messages.
type SessionState struct {
	Metadata SessionMetadata
	Messages []types.Message
}

// Store persists GoldBot's session state: a workspace's AppState.Messages
// buffer plus a small metadata header, so an interrupted run can be resumed
// (SPEC_FULL.md's carry of the teacher's JSONL session store, repurposed for
// AppState rather than the teacher's own message-entry format).
type Store struct {
	baseDir        string
	persistEnabled bool // false = all writes are no-ops
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPersistEnabled controls whether the store actually writes to disk.
func WithPersistEnabled(enabled bool) StoreOption {
	return func(s *Store) { s.persistEnabled = enabled }
}

// NewStore creates a new session store rooted at baseDir (see DefaultBaseDir).
func NewStore(baseDir string, opts ...StoreOption) *Store {
	s := &Store{
		baseDir:        baseDir,
		persistEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID)
}

func (s *Store) messagesPath(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), messagesFile)
}

// Create persists a new session's metadata header.
func (s *Store) Create(meta SessionMetadata) error {
	if !s.persistEnabled {
		return nil
	}
	dir := s.sessionDir(meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return saveMetadata(dir, meta)
}

// Load retrieves a session by ID with its full message buffer.
func (s *Store) Load(sessionID string) (*SessionState, error) {
	dir := s.sessionDir(sessionID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, ErrSessionNotFound
	}

	meta, err := loadMetadata(dir)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	messages, err := loadMessages(s.messagesPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	return &SessionState{Metadata: meta, Messages: messages}, nil
}

// LoadLatest finds the most recently updated session for the given CWD.
func (s *Store) LoadLatest(cwd string) (*SessionState, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}

	var latest *SessionMetadata
	for i := range sessions {
		if sessions[i].CWD != cwd {
			continue
		}
		if latest == nil || sessions[i].UpdatedAt.After(latest.UpdatedAt) {
			latest = &sessions[i]
		}
	}

	if latest == nil {
		return nil, ErrSessionNotFound
	}
	return s.Load(latest.ID)
}

// Delete removes a session and all its files.
func (s *Store) Delete(sessionID string) error {
	dir := s.sessionDir(sessionID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrSessionNotFound
	}
	return os.RemoveAll(dir)
}

// List returns metadata for all sessions, most recently updated first.
func (s *Store) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []SessionMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := loadMetadata(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue // skip corrupt sessions
		}
		sessions = append(sessions, meta)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	return sessions, nil
}

// Fork creates a new session as a copy of an existing one.
func (s *Store) Fork(sourceID, newID string) (*SessionState, error) {
	source, err := s.Load(sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source session: %w", err)
	}

	now := time.Now()
	newMeta := source.Metadata
	newMeta.ID = newID
	newMeta.ParentSessionID = sourceID
	newMeta.CreatedAt = now
	newMeta.UpdatedAt = now

	if err := s.Create(newMeta); err != nil {
		return nil, fmt.Errorf("create forked session: %w", err)
	}
	if err := saveMessages(s.messagesPath(newID), source.Messages); err != nil {
		return nil, fmt.Errorf("copy messages to fork: %w", err)
	}

	return &SessionState{Metadata: newMeta, Messages: source.Messages}, nil
}

// SaveMessages atomically overwrites the session's persisted message buffer
// with the executor's current AppState.Messages and bumps UpdatedAt. Called
// after each turn (and on exit) rather than incrementally, since compaction
// rewrites the buffer in place rather than only ever appending to it.
func (s *Store) SaveMessages(sessionID string, messages []types.Message) error {
	if !s.persistEnabled {
		return nil
	}
	return s.withSessionLock(sessionID, func() error {
		if err := saveMessages(s.messagesPath(sessionID), messages); err != nil {
			return err
		}
		return s.updateMetadataLocked(sessionID, func(*SessionMetadata) {})
	})
}

// UpdateMetadata atomically updates the session's metadata using fn and
// bumps UpdatedAt, holding the session's file lock for the whole
// read-modify-write so a concurrent SaveMessages can't interleave.
func (s *Store) UpdateMetadata(sessionID string, fn func(*SessionMetadata)) error {
	if !s.persistEnabled {
		return nil
	}
	return s.withSessionLock(sessionID, func() error {
		return s.updateMetadataLocked(sessionID, fn)
	})
}

func (s *Store) updateMetadataLocked(sessionID string, fn func(*SessionMetadata)) error {
	dir := s.sessionDir(sessionID)
	meta, err := loadMetadata(dir)
	if err != nil {
		return fmt.Errorf("load metadata for update: %w", err)
	}

	fn(&meta)
	meta.UpdatedAt = time.Now()
	return saveMetadata(dir, meta)
}

// CreateCheckpoint snapshots the specified files under the given label
// (typically the triggering user turn's index) for later rewind.
func (s *Store) CreateCheckpoint(sessionID, label string, filePaths []string) error {
	if !s.persistEnabled {
		return nil
	}
	cm := newCheckpointManager(s.sessionDir(sessionID))
	return cm.CreateCheckpoint(label, filePaths)
}

// RewindFiles restores files to a previous checkpoint's state.
func (s *Store) RewindFiles(sessionID, label string, dryRun bool) (*RewindFilesResult, error) {
	cm := newCheckpointManager(s.sessionDir(sessionID))
	return cm.RewindFiles(label, dryRun)
}

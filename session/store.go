// Package session keeps per-upload state in memory: the extracted text, the
// learned schema hint, and the working table every analysis endpoint reads.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serisow/datalens/schema"
	"github.com/serisow/datalens/tabular"
)

// Session is one uploaded dataset and everything derived from it. Table is
// the working copy that transforms and masking mutate; Original preserves the
// parse result so a session can be reset.
type Session struct {
	ID           string         `json:"id"`
	SourceName   string         `json:"source_name"`
	MediaType    string         `json:"media_type"`
	RawText      string         `json:"-"`
	Hint         schema.Hint    `json:"schema_hint"`
	Table        *tabular.Table `json:"-"`
	Original     *tabular.Table `json:"-"`
	MaskedCols   []string       `json:"masked_columns,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`

	mu sync.RWMutex
}

// Lock takes the session's write lock. Callers that rewrite table cells,
// swap the table pointer, or append to MaskedCols hold this around the
// mutation.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the write lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// RLock takes the session's read lock. Analyzers and exports hold this
// while iterating the working table so an in-flight mutation cannot change
// cells under them.
func (s *Session) RLock() { s.mu.RLock() }

// RUnlock releases the read lock.
func (s *Session) RUnlock() { s.mu.RUnlock() }

// Store is a concurrency-safe in-memory session registry with background
// expiry of idle sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger

	timeProvider  TimeProvider
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		sessions:     make(map[string]*Session),
		logger:       logger,
		timeProvider: &realTimeProvider{},
	}
}

// Create registers a new session around a parsed table and returns it.
func (s *Store) Create(sourceName, mediaType, rawText string, hint schema.Hint, table *tabular.Table) *Session {
	now := s.timeProvider.Now()
	sess := &Session{
		ID:           uuid.New().String(),
		SourceName:   sourceName,
		MediaType:    mediaType,
		RawText:      rawText,
		Hint:         hint,
		Table:        table,
		Original:     table.Clone(),
		CreatedAt:    now,
		LastAccessed: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session created",
		slog.String("session_id", sess.ID),
		slog.String("source", sourceName),
		slog.Int("rows", table.NumRows()))
	return sess
}

// Get returns the session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.LastAccessed = s.timeProvider.Now()
	}
	return sess, ok
}

// Reset restores the session's working table to the original parse.
func (s *Store) Reset(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.mu.Lock()
	sess.Table = sess.Original.Clone()
	sess.mu.Unlock()
	sess.LastAccessed = s.timeProvider.Now()
	return true
}

// Delete drops a session.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartCleanup launches a goroutine that drops sessions idle longer than
// threshold, checking every cleanupInterval.
func (s *Store) StartCleanup(threshold, cleanupInterval time.Duration) {
	s.stopCleanup = make(chan struct{})
	s.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.performCleanup(threshold)
			case <-s.stopCleanup:
				s.cleanupTicker.Stop()
				return
			}
		}
	}()
}

// StopCleanup halts the background expiry goroutine.
func (s *Store) StopCleanup() {
	if s.stopCleanup != nil {
		close(s.stopCleanup)
	}
}

func (s *Store) performCleanup(threshold time.Duration) {
	now := s.timeProvider.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccessed) > threshold {
			delete(s.sessions, id)
			s.logger.Info("session expired", slog.String("session_id", id))
		}
	}
}

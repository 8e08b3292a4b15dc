package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
)

// MemorySource is an in-process Source holding client metrics and written
// scores. Failures can be injected per stage.
type MemorySource struct {
	mu         sync.Mutex
	clients    []model.ClientMetrics
	known      map[string]struct{}
	scores     map[string]model.ScoreResult
	writes     int
	open       int
	acquireErr error
	readErr    error
	writeErrs  map[string]error
	onWrite    func(model.ScoreResult)
}

// NewMemorySource returns a source seeded with clients in the given order.
func NewMemorySource(clients ...model.ClientMetrics) *MemorySource {
	s := &MemorySource{
		known:     make(map[string]struct{}, len(clients)),
		scores:    make(map[string]model.ScoreResult, len(clients)),
		writeErrs: make(map[string]error),
	}
	for _, c := range clients {
		s.clients = append(s.clients, c)
		s.known[c.ClientID] = struct{}{}
	}
	return s
}

// FailAcquire makes Acquire return err.
func (s *MemorySource) FailAcquire(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquireErr = err
}

// FailRead makes ReadMetrics return err.
func (s *MemorySource) FailRead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailWrite makes writes for clientID return err.
func (s *MemorySource) FailWrite(clientID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErrs[clientID] = err
}

// OnWrite registers a hook invoked before each write is applied.
func (s *MemorySource) OnWrite(fn func(model.ScoreResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = fn
}

// Scores returns a copy of the persisted results keyed by client ID.
func (s *MemorySource) Scores() map[string]model.ScoreResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.ScoreResult, len(s.scores))
	for k, v := range s.scores {
		out[k] = v
	}
	return out
}

// Writes returns the number of write attempts seen.
func (s *MemorySource) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// OpenSessions returns the number of acquired sessions not yet released.
func (s *MemorySource) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Acquire implements Source.
func (s *MemorySource) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquireErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataSource, s.acquireErr)
	}
	s.open++
	return &memorySession{src: s}, nil
}

type memorySession struct {
	src  *MemorySource
	once sync.Once
}

func (m *memorySession) ReadMetrics(ctx context.Context) ([]model.ClientMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	m.src.mu.Lock()
	defer m.src.mu.Unlock()
	if m.src.readErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataSource, m.src.readErr)
	}
	out := make([]model.ClientMetrics, len(m.src.clients))
	copy(out, m.src.clients)
	return out, nil
}

func (m *memorySession) WriteScore(ctx context.Context, res model.ScoreResult) error {
	m.src.mu.Lock()
	hook := m.src.onWrite
	m.src.mu.Unlock()
	if hook != nil {
		hook(res)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: client %s: %w", ErrPersistence, res.ClientID, err)
	}

	m.src.mu.Lock()
	defer m.src.mu.Unlock()
	m.src.writes++
	if err, ok := m.src.writeErrs[res.ClientID]; ok {
		return fmt.Errorf("%w: client %s: %w", ErrPersistence, res.ClientID, err)
	}
	if _, ok := m.src.known[res.ClientID]; !ok {
		return fmt.Errorf("%w: client %s: %w", ErrPersistence, res.ClientID, ErrNotFound)
	}
	m.src.scores[res.ClientID] = res
	return nil
}

func (m *memorySession) Release() {
	m.once.Do(func() {
		m.src.mu.Lock()
		m.src.open--
		m.src.mu.Unlock()
	})
}

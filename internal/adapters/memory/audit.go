package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

// AuditLog keeps audit entries in process
type AuditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	seq     map[domain.Target]int64
}

var _ ports.AuditLog = (*AuditLog)(nil)

// NewAuditLog creates an empty log
func NewAuditLog() *AuditLog {
	return &AuditLog{seq: make(map[domain.Target]int64)}
}

// Append implements ports.AuditLog
func (l *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuditEntry{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq[entry.Target]++
	entry.Seq = l.seq[entry.Target]
	entry.ID = uuid.NewString()
	l.entries = append(l.entries, entry)
	return entry, nil
}

// List implements ports.AuditLog, newest first
func (l *AuditLog) List(ctx context.Context, target domain.Target, limit int) ([]domain.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.AuditEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Target != target {
			continue
		}
		out = append(out, l.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Get implements ports.AuditLog
func (l *AuditLog) Get(ctx context.Context, id string) (*domain.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.ID == id {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

// StateStore keeps sync states in process
type StateStore struct {
	mu     sync.Mutex
	states map[domain.Target]domain.SyncState
}

var _ ports.StateStore = (*StateStore)(nil)

// NewStateStore creates an empty store
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[domain.Target]domain.SyncState)}
}

// Load implements ports.StateStore. A missing state is (nil, nil).
func (s *StateStore) Load(ctx context.Context, target domain.Target) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[target]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// Save implements ports.StateStore
func (s *StateStore) Save(ctx context.Context, state domain.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Target] = state
	return nil
}

// List implements ports.StateStore
func (s *StateStore) List(ctx context.Context) ([]domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SyncState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target.String() < out[j].Target.String() })
	return out, nil
}

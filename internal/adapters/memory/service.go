// Package memory is an in-process planning service. It backs tests and
// offline runs without an api_url, and lets callers inject failures per call.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/ports"
	"plansync/internal/remote"
)

// Call describes one request received by the service
type Call struct {
	Op   string // "release", "list", "create", "update", "delete"
	ID   string
	Seq  int // 1-based position among all calls
	Item domain.ItemRecord
}

// IsMutation reports whether the call changes state
func (c Call) IsMutation() bool {
	return c.Op == "create" || c.Op == "update" || c.Op == "delete"
}

// Service implements ports.PlanService in memory
type Service struct {
	mu       sync.Mutex
	clock    clock.Clock
	releases map[domain.Target]string
	items    map[string]domain.ItemRecord
	nextID   map[domain.ItemKind]int
	calls    []Call

	// hook, when set, runs before every call with mu held; a non-nil
	// error fails the call without side effects. It must not call back
	// into the service.
	hook func(Call) error
}

var _ ports.PlanService = (*Service)(nil)

// New creates an empty service
func New(clk clock.Clock) *Service {
	return &Service{
		clock:    clk,
		releases: make(map[domain.Target]string),
		items:    make(map[string]domain.ItemRecord),
		nextID:   make(map[domain.ItemKind]int),
	}
}

// AddRelease registers a release so GetRelease and ListItems succeed
func (s *Service) AddRelease(target domain.Target, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases[target] = name
}

// Put stores item as-is, assigning an id when missing, as if another
// client had written it. It returns the stored record.
func (s *Service) Put(item domain.ItemRecord) domain.ItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = s.allocateID(item.Kind)
	}
	item.UpdatedAt = s.clock.Now()
	s.items[item.ID] = item
	return item
}

// Get returns the stored item
func (s *Service) Get(id string) (domain.ItemRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}

// All returns every stored item sorted by id
func (s *Service) All() []domain.ItemRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ItemRecord, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Calls returns every call received so far
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountCalls returns how many calls of op were received
func (s *Service) CountCalls(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// SetHook installs a function consulted before every call
func (s *Service) SetHook(hook func(Call) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// FailMutation makes the n-th mutation (1-based, counted from now) fail
// with err. Later mutations succeed.
func (s *Service) FailMutation(n int, err error) {
	seen := 0
	s.SetHook(func(c Call) error {
		if !c.IsMutation() {
			return nil
		}
		seen++
		if seen == n {
			return err
		}
		return nil
	})
}

// record logs the call and runs the hook. Caller holds mu.
func (s *Service) record(c Call) error {
	c.Seq = len(s.calls) + 1
	s.calls = append(s.calls, c)
	if s.hook != nil {
		return s.hook(c)
	}
	return nil
}

func (s *Service) allocateID(kind domain.ItemKind) string {
	s.nextID[kind]++
	prefix := "OBJ"
	if kind == domain.KindEpic {
		prefix = "EP"
	}
	for {
		id := fmt.Sprintf("%s-%d", prefix, s.nextID[kind])
		if _, taken := s.items[id]; !taken {
			return id
		}
		s.nextID[kind]++
	}
}

func notFound(op, what string) error {
	return &remote.Error{Op: op, Reason: remote.ReasonNotFound, StatusCode: 404, Message: what + " not found"}
}

// GetRelease implements ports.PlanService
func (s *Service) GetRelease(ctx context.Context, target domain.Target) (ports.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: "release", ID: target.String()}); err != nil {
		return ports.Release{}, err
	}
	if err := ctx.Err(); err != nil {
		return ports.Release{}, err
	}
	name, ok := s.releases[target]
	if !ok {
		return ports.Release{}, notFound("get release", "release "+target.String())
	}
	return ports.Release{Team: target.Team, Slug: target.Release, Name: name}, nil
}

// ListItems implements ports.PlanService
func (s *Service) ListItems(ctx context.Context, q domain.Query) ([]domain.ItemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: "list", ID: q.Key()}); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := []domain.ItemRecord{}
	for _, item := range s.items {
		if q.Matches(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateItem implements ports.PlanService
func (s *Service) CreateItem(ctx context.Context, item domain.ItemRecord) (domain.ItemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: "create", Item: item}); err != nil {
		return domain.ItemRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ItemRecord{}, err
	}
	if err := validate(item); err != nil {
		return domain.ItemRecord{}, err
	}
	if item.Kind == domain.KindEpic {
		if _, ok := s.items[item.ParentID]; !ok {
			return domain.ItemRecord{}, notFound("create", "parent "+item.ParentID)
		}
	}

	item.ID = s.allocateID(item.Kind)
	item.UpdatedAt = s.clock.Now()
	s.items[item.ID] = item
	return item, nil
}

// UpdateItem implements ports.PlanService
func (s *Service) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.ItemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: "update", ID: id}); err != nil {
		return domain.ItemRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ItemRecord{}, err
	}

	item, ok := s.items[id]
	if !ok {
		return domain.ItemRecord{}, notFound("update", "item "+id)
	}
	updated, err := patch.Apply(item)
	if err != nil {
		return domain.ItemRecord{}, &remote.Error{Op: "update", Reason: remote.ReasonValidation, StatusCode: 422, Message: err.Error()}
	}
	if err := validate(updated); err != nil {
		return domain.ItemRecord{}, err
	}
	updated.UpdatedAt = s.clock.Now()
	s.items[id] = updated
	return updated, nil
}

// DeleteItem implements ports.PlanService
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(Call{Op: "delete", ID: id}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.items[id]; !ok {
		return notFound("delete", "item "+id)
	}
	delete(s.items, id)
	return nil
}

func validate(item domain.ItemRecord) error {
	switch {
	case strings.TrimSpace(item.Name) == "":
		return &remote.Error{Op: "validate", Reason: remote.ReasonValidation, StatusCode: 422, Message: "name is required"}
	case item.Kind == domain.KindUnknown:
		return &remote.Error{Op: "validate", Reason: remote.ReasonValidation, StatusCode: 422, Message: "kind is required"}
	case item.Effort != nil && *item.Effort < 0:
		return &remote.Error{Op: "validate", Reason: remote.ReasonValidation, StatusCode: 422, Message: "effort must not be negative"}
	}
	return nil
}

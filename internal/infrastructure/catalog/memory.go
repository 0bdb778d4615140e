package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// MemoryCatalog holds the product snapshot in memory. The snapshot is
// replaced wholesale on each import; detection passes read it in full.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog(products ...domain.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		c.products[p.ID] = p
	}
	return c
}

// FetchProducts returns the full snapshot ordered by product ID.
func (c *MemoryCatalog) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProduct returns one product by ID.
func (c *MemoryCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	out := p
	return &out, nil
}

// ReplaceProducts swaps the snapshot. Entries without an ID are dropped;
// duplicate IDs keep the last occurrence, matching import semantics.
func (c *MemoryCatalog) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	next := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		next[p.ID] = p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = next
	return nil
}

// MemoryGroupStore keeps variant groups in memory. It stamps CreatedAt on
// first save and UpdatedAt on every save, and returns defensive copies so
// callers cannot alias stored member slices.
type MemoryGroupStore struct {
	mu     sync.RWMutex
	groups map[string]domain.VariantGroup
}

// NewMemoryGroupStore creates an empty in-memory group store.
func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{groups: make(map[string]domain.VariantGroup)}
}

// SaveGroup inserts or updates a group and returns the stored state.
func (s *MemoryGroupStore) SaveGroup(ctx context.Context, group domain.VariantGroup) (*domain.VariantGroup, error) {
	group.MemberProductIDs = append([]string(nil), group.MemberProductIDs...)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.groups[group.ID]; ok {
		group.CreatedAt = existing.CreatedAt
	} else {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	s.groups[group.ID] = group

	return copyGroup(group), nil
}

// GetGroup returns one group by ID.
func (s *MemoryGroupStore) GetGroup(ctx context.Context, id string) (*domain.VariantGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return copyGroup(group), nil
}

// ListGroups returns all groups ordered by ID.
func (s *MemoryGroupStore) ListGroups(ctx context.Context) ([]domain.VariantGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.VariantGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, *copyGroup(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteGroup removes a group. Missing groups report domain.ErrGroupNotFound
// so callers can distinguish a repeat delete from a first one.
func (s *MemoryGroupStore) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return domain.ErrGroupNotFound
	}
	delete(s.groups, id)
	return nil
}

func copyGroup(g domain.VariantGroup) *domain.VariantGroup {
	out := g
	out.MemberProductIDs = append([]string(nil), g.MemberProductIDs...)
	return &out
}

// MemoryFeedbackLog is an append-only in-memory feedback journal.
type MemoryFeedbackLog struct {
	mu     sync.Mutex
	events []domain.FeedbackEvent
}

// NewMemoryFeedbackLog creates an empty in-memory feedback journal.
func NewMemoryFeedbackLog() *MemoryFeedbackLog {
	return &MemoryFeedbackLog{}
}

// Append records one event.
func (l *MemoryFeedbackLog) Append(ctx context.Context, event domain.FeedbackEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	return nil
}

// History returns all events in append order.
func (l *MemoryFeedbackLog) History(ctx context.Context) ([]domain.FeedbackEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]domain.FeedbackEvent(nil), l.events...), nil
}

// Clear drops the journal. Patterns suppressed by rejection history become
// eligible for suggestion again on the next pass.
func (l *MemoryFeedbackLog) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = nil
	return nil
}

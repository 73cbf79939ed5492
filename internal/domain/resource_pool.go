package domain

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type ResourceSnapshot struct {
	ID    string `json:"sku"`
	Stock int64  `json:"stock"`
}

// ResourcePool owns every Resource and hands out shared references by id.
//
// mu protects membership only. Stock is protected by each resource's own
// guard; the pool never holds a lock across resources.
type ResourcePool struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

func NewResourcePool() *ResourcePool {
	return &ResourcePool{resources: make(map[string]*Resource)}
}

// ResourceName is the id given to the i-th resource created by Initialize.
func ResourceName(i int) string {
	return "item" + strconv.Itoa(i)
}

// Initialize creates n resources named item0..item{n-1}. It must run
// before any reservation traffic and only once.
func (p *ResourcePool) Initialize(n int, initialStock int64) error {
	if n <= 0 {
		return errors.Errorf("pool size must be positive, got %d", n)
	}
	if initialStock < 0 {
		return ErrInvalidStock
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.resources) > 0 {
		return errors.New("pool already initialized")
	}
	for i := 0; i < n; i++ {
		id := ResourceName(i)
		p.resources[id] = NewResource(id, initialStock)
	}
	return nil
}

// Register adds a single resource after initialization.
func (p *ResourcePool) Register(id string, stock int64) (*Resource, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("resource id is empty")
	}
	if stock < 0 {
		return nil, ErrInvalidStock
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.resources[id]; ok {
		return nil, errors.Wrapf(ErrAlreadyExists, "sku %s", id)
	}
	r := NewResource(id, stock)
	p.resources[id] = r
	return r, nil
}

func (p *ResourcePool) Get(id string) (*Resource, error) {
	p.mu.RLock()
	r, ok := p.resources[id]
	p.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "sku %s", id)
	}
	return r, nil
}

func (p *ResourcePool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.resources)
}

// IDs returns every resource id in lock order.
func (p *ResourcePool) IDs() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.resources))
	for id := range p.resources {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// TotalStock sums stock without taking any guard. The result is not a
// consistent snapshot while reservations are in flight; never use it to
// make a reservation decision.
func (p *ResourcePool) TotalStock() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total int64
	for _, r := range p.resources {
		total += r.Stock()
	}
	return total
}

// Snapshot returns per-resource stock sorted by id. Same consistency
// caveat as TotalStock.
func (p *ResourcePool) Snapshot() []ResourceSnapshot {
	p.mu.RLock()
	out := make([]ResourceSnapshot, 0, len(p.resources))
	for _, r := range p.resources {
		out = append(out, ResourceSnapshot{ID: r.ID, Stock: r.Stock()})
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VerifyQuiescent tries every guard without blocking and reports the ones
// still held. Only meaningful when no reservation is in flight.
func (p *ResourcePool) VerifyQuiescent() error {
	var held []string
	for _, id := range p.IDs() {
		r, err := p.Get(id)
		if err != nil {
			return err
		}
		if !r.TryLock() {
			held = append(held, id)
			continue
		}
		r.Unlock()
	}
	if len(held) > 0 {
		return errors.Wrapf(ErrInvariantViolation, "guards still held: %s", strings.Join(held, ","))
	}
	return nil
}

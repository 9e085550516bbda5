// Package kb holds the in-memory region registry queried by the services.
package kb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/signalsfoundry/geopoly/core"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventRegionAdded EventType = iota
	EventRegionReplaced
	EventRegionRemoved
)

func (t EventType) String() string {
	switch t {
	case EventRegionAdded:
		return "added"
	case EventRegionReplaced:
		return "replaced"
	case EventRegionRemoved:
		return "removed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers after the store changes.
type Event struct {
	Type   EventType
	Region *core.Region
}

// MetricsRecorder receives the region count after every change.
type MetricsRecorder interface {
	SetRegionCount(n int)
}

// RegionStore is an in-memory, thread-safe registry of regions keyed by ID.
// Regions are treated as immutable once added.
type RegionStore struct {
	mu sync.RWMutex

	regions map[string]*core.Region

	subs    map[int]func(Event)
	nextSub int

	metrics MetricsRecorder
}

// NewRegionStore constructs an empty store. metrics may be nil.
func NewRegionStore(metrics MetricsRecorder) *RegionStore {
	return &RegionStore{
		regions: make(map[string]*core.Region),
		subs:    make(map[int]func(Event)),
		metrics: metrics,
	}
}

// Add inserts a region. It returns an error if the ID already exists.
func (s *RegionStore) Add(r *core.Region) error {
	if r == nil || r.Polygon == nil {
		return fmt.Errorf("region without a polygon")
	}
	s.mu.Lock()
	if _, exists := s.regions[r.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("region with ID %q already exists", r.ID)
	}
	s.regions[r.ID] = r
	s.publishLocked(Event{Type: EventRegionAdded, Region: r})
	return nil
}

// Replace stores r, overwriting any region with the same ID.
func (s *RegionStore) Replace(r *core.Region) error {
	if r == nil || r.Polygon == nil {
		return fmt.Errorf("region without a polygon")
	}
	s.mu.Lock()
	kind := EventRegionAdded
	if _, exists := s.regions[r.ID]; exists {
		kind = EventRegionReplaced
	}
	s.regions[r.ID] = r
	s.publishLocked(Event{Type: kind, Region: r})
	return nil
}

// Remove deletes the region with the given ID.
func (s *RegionStore) Remove(id string) error {
	s.mu.Lock()
	r, ok := s.regions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("region with ID %q not found", id)
	}
	delete(s.regions, id)
	s.publishLocked(Event{Type: EventRegionRemoved, Region: r})
	return nil
}

// publishLocked releases s.mu and then notifies subscribers, so callbacks
// may call back into the store.
func (s *RegionStore) publishLocked(ev Event) {
	subs := lo.Values(s.subs)
	count := len(s.regions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetRegionCount(count)
	}
	for _, sub := range subs {
		sub(ev)
	}
}

// Get returns the region with the given ID, or nil if not found.
func (s *RegionStore) Get(id string) *core.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions[id]
}

// Len returns the number of stored regions.
func (s *RegionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regions)
}

// List returns a snapshot of all regions sorted by ID.
func (s *RegionStore) List() []*core.Region {
	s.mu.RLock()
	res := lo.Values(s.regions)
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function.
func (s *RegionStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Locate returns the sorted IDs of the regions whose footprint contains x.
func (s *RegionStore) Locate(x r3.Vector) []string {
	regions := s.List()
	ids := lo.FilterMap(regions, func(r *core.Region, _ int) (string, bool) {
		return r.ID, r.Contains(x)
	})
	return ids
}

// Classify evaluates points against every stored region using the batch
// containment mode. The result maps region ID to per-point membership, in
// the order of points.
func (s *RegionStore) Classify(ctx context.Context, points []r3.Vector, opts ...core.BatchOption) (map[string][]bool, error) {
	regions := s.List()
	out := make(map[string][]bool, len(regions))
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.Polygon.ContainsBatch(ctx, points, opts...)
		if err != nil {
			return nil, fmt.Errorf("classify region %q: %w", r.ID, err)
		}
		out[r.ID] = res
	}
	return out, nil
}

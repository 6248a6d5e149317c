package gff3

import "fmt"

// TempStore holds in-flight Features and pending orphan references
// during one parse window (the span between start-of-stream, a "###"
// sync, a FASTA directive, or end-of-input). Both the in-memory and
// disk-backed implementations satisfy this same contract - see
// diskstore.go for the latter.
type TempStore interface {
	// OutPush enqueues an already-resolved Item for emission.
	OutPush(item Item)
	// OutPop dequeues the next emittable Item, if any.
	OutPop() (Item, bool)
	// OutLen reports how many Items are currently queued for emission.
	OutLen() int

	// UCGet retrieves the Feature currently under construction for id.
	UCGet(id string) (*Feature, bool)
	// UCPut binds id to f. If isTopLevel, id is also recorded in flush order.
	UCPut(id string, f *Feature, isTopLevel bool)
	// UCUpdate rebinds id to f without touching flush order.
	UCUpdate(id string, f *Feature)

	// OrphansGet retrieves the attr->Features waiting on id, if any.
	OrphansGet(id string) map[string][]*Feature
	// OrphansAdd records that f is waiting on id to resolve attr.
	OrphansAdd(id, attr string, f *Feature)

	// Flush moves every top-level under-construction Feature to the
	// output queue in first-seen order, then clears the ID index,
	// flush order and orphan table. It errors if any orphan remains.
	Flush() error

	// Close releases any resources (temp files, handles) held by the store.
	Close() error
}

// MemoryTempStore is the in-memory TempStore implementation: ordinary
// maps and slices, with Flush swapping the top-level order directly
// into the output queue to avoid copying Features.
type MemoryTempStore struct {
	out []Item

	ucIndex  map[string]*Feature
	topOrder []string

	orphans map[string]map[string][]*Feature
}

// NewMemoryTempStore returns a ready-to-use MemoryTempStore.
func NewMemoryTempStore() *MemoryTempStore {
	return &MemoryTempStore{
		ucIndex: make(map[string]*Feature),
		orphans: make(map[string]map[string][]*Feature),
	}
}

func (m *MemoryTempStore) OutPush(item Item) {
	m.out = append(m.out, item)
}

func (m *MemoryTempStore) OutPop() (Item, bool) {
	if len(m.out) == 0 {
		return Item{}, false
	}
	item := m.out[0]
	m.out = m.out[1:]
	return item, true
}

func (m *MemoryTempStore) OutLen() int {
	return len(m.out)
}

func (m *MemoryTempStore) UCGet(id string) (*Feature, bool) {
	f, ok := m.ucIndex[id]
	return f, ok
}

func (m *MemoryTempStore) UCPut(id string, f *Feature, isTopLevel bool) {
	m.ucIndex[id] = f
	if isTopLevel {
		m.topOrder = append(m.topOrder, id)
	}
}

func (m *MemoryTempStore) UCUpdate(id string, f *Feature) {
	m.ucIndex[id] = f
}

func (m *MemoryTempStore) OrphansGet(id string) map[string][]*Feature {
	b := m.orphans[id]
	delete(m.orphans, id)
	return b
}

func (m *MemoryTempStore) OrphansAdd(id, attr string, f *Feature) {
	if m.orphans[id] == nil {
		m.orphans[id] = make(map[string][]*Feature)
	}
	m.orphans[id][attr] = append(m.orphans[id][attr], f)
}

// Flush appends each currently top-level Feature, in insertion order,
// to the output queue. A Feature reachable via more than one top-level
// ID is only emitted once. It fails if any orphan bucket remains.
func (m *MemoryTempStore) Flush() error {
	if len(m.orphans) > 0 {
		return fmt.Errorf("Flush: %w", unresolvedOrphansError(m.orphans))
	}

	seen := make(map[*Feature]bool, len(m.topOrder))
	for _, id := range m.topOrder {
		f, ok := m.ucIndex[id]
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		m.out = append(m.out, Item{Feature: f})
	}

	m.ucIndex = make(map[string]*Feature)
	m.topOrder = nil
	m.orphans = make(map[string]map[string][]*Feature)
	return nil
}

func (m *MemoryTempStore) Close() error { return nil }

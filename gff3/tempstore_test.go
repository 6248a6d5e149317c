package gff3

import (
	"errors"
	"testing"
)

func TestMemoryTempStoreUCRoundTrip(t *testing.T) {
	m := NewMemoryTempStore()
	f := newFeature()
	m.UCPut(`g1`, f, true)

	got, ok := m.UCGet(`g1`)
	if !ok || got != f {
		t.Fatalf("UCGet(g1) = %v, %v; want original Feature, true", got, ok)
	}

	if _, ok := m.UCGet(`missing`); ok {
		t.Fatalf("UCGet(missing) returned ok=true for an unbound ID")
	}
}

func TestMemoryTempStoreUCUpdateDoesNotAffectFlushOrder(t *testing.T) {
	m := NewMemoryTempStore()
	f1 := newFeature()
	f2 := newFeature()
	m.UCPut(`g1`, f1, true)
	m.UCUpdate(`g1`, f2)

	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if m.OutLen() != 1 {
		t.Fatalf("OutLen() = %d, want 1", m.OutLen())
	}
	item, ok := m.OutPop()
	if !ok || item.Feature != f2 {
		t.Fatalf("flushed Feature = %v, want f2 (the rebound one)", item.Feature)
	}
}

func TestMemoryTempStoreFlushDedupesSharedTopLevelIds(t *testing.T) {
	m := NewMemoryTempStore()
	f := newFeature()
	m.UCPut(`g1`, f, true)
	m.UCPut(`g2`, f, true) // same Feature, second ID

	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if m.OutLen() != 1 {
		t.Fatalf("OutLen() = %d, want 1 (shared Feature must be emitted once)", m.OutLen())
	}
}

func TestMemoryTempStoreFlushFailsOnResidualOrphan(t *testing.T) {
	m := NewMemoryTempStore()
	m.OrphansAdd(`missing`, `Parent`, newFeature())

	err := m.Flush()
	if err == nil {
		t.Fatalf("expected Flush to fail with a residual orphan")
	}
	var oe *OrphanError
	if !errors.As(err, &oe) {
		t.Fatalf("expected error to wrap *OrphanError, got %v", err)
	}
	if _, ok := oe.Unresolved[`missing`]; !ok {
		t.Fatalf("OrphanError.Unresolved missing entry for %q: %v", `missing`, oe.Unresolved)
	}
}

func TestMemoryTempStoreFlushClearsState(t *testing.T) {
	m := NewMemoryTempStore()
	m.UCPut(`g1`, newFeature(), true)
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok := m.UCGet(`g1`); ok {
		t.Fatalf("UCGet(g1) still bound after Flush")
	}
	if m.OutLen() != 1 {
		t.Fatalf("OutLen() = %d, want 1", m.OutLen())
	}
}

func TestOrphansGetIsConsumedOnRetrieval(t *testing.T) {
	m := NewMemoryTempStore()
	waiting := newFeature()
	m.OrphansAdd(`g1`, `Parent`, waiting)

	got := m.OrphansGet(`g1`)
	if len(got[`Parent`]) != 1 || got[`Parent`][0] != waiting {
		t.Fatalf("OrphansGet(g1) = %v, want one waiting Feature under Parent", got)
	}

	again := m.OrphansGet(`g1`)
	if len(again) != 0 {
		t.Fatalf("OrphansGet(g1) returned entries on a second call: %v", again)
	}
}

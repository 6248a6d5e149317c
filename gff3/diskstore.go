package gff3

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var featuresBucket = []byte("features")

// BoltTempStore is the disk-backed TempStore implementation. It
// satisfies the exact same contract as MemoryTempStore (and embeds one
// for the output queue, orphan table and fast-path ID index) but also
// write-through persists every under-construction Feature's connected
// subgraph to a per-instance bbolt database, keyed by every ID the
// subgraph answers to. This is the "serialize the whole connected
// subgraph... when spilling" strategy from spec.md §4.3/§9: a Feature
// with multiple IDs is findable, and fully reconstructed with shared
// child/derived lists, from any one of them.
type BoltTempStore struct {
	*MemoryTempStore

	db   *bbolt.DB
	path string
}

// NewBoltTempStore creates a new disk-backed TempStore with its bbolt
// file in dir (e.g. os.TempDir()). The file is named with a fresh
// UUID, following the same per-instance identity convention as
// genome.NewGenome's uuid.New() use.
func NewBoltTempStore(dir string) (*BoltTempStore, error) {
	name := fmt.Sprintf("gff3-tempstore-%s.db", uuid.New().String())
	path := filepath.Join(dir, name)

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("NewBoltTempStore: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(featuresBucket)
		return err
	})
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("NewBoltTempStore: creating bucket: %w", err)
	}

	log.Debugf("gff3: disk-backed TempStore opened at %s", path)

	return &BoltTempStore{
		MemoryTempStore: NewMemoryTempStore(),
		db:              db,
		path:            path,
	}, nil
}

// UCGet first consults the fast in-memory index. On a miss it falls
// back to decoding the subgraph from bbolt and rehydrates the
// in-memory index with the reconstructed Features, so subsequent
// lookups for any ID in that subgraph hit the fast path and keep
// stable pointer identity from then on.
func (b *BoltTempStore) UCGet(id string) (*Feature, bool) {
	if f, ok := b.MemoryTempStore.UCGet(id); ok {
		return f, true
	}

	var found *Feature
	err := b.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(featuresBucket)
		raw := bkt.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var snap subgraphSnapshot
		dec := gob.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&snap); err != nil {
			return fmt.Errorf("decoding subgraph for %s: %w", id, err)
		}

		feats := decodeSubgraph(snap)
		for _, f := range feats {
			for fid := range f.ids {
				b.MemoryTempStore.UCUpdate(fid, f)
				if fid == id {
					found = f
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Debugf("gff3: BoltTempStore.UCGet(%s) decode error: %v", id, err)
		return nil, false
	}
	return found, found != nil
}

func (b *BoltTempStore) UCPut(id string, f *Feature, isTopLevel bool) {
	b.MemoryTempStore.UCPut(id, f, isTopLevel)
	b.persist(f)
}

func (b *BoltTempStore) UCUpdate(id string, f *Feature) {
	b.MemoryTempStore.UCUpdate(id, f)
	b.persist(f)
}

// persist encodes f's whole connected subgraph once and writes it
// under every ID any Feature in that subgraph answers to.
func (b *BoltTempStore) persist(f *Feature) {
	snap := encodeSubgraph(f)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		log.Debugf("gff3: BoltTempStore encode error: %v", err)
		return
	}
	raw := buf.Bytes()

	var ids []string
	for _, fs := range snap.Features {
		ids = append(ids, fs.IDs...)
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(featuresBucket)
		for _, id := range ids {
			if err := bkt.Put([]byte(id), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Debugf("gff3: BoltTempStore persist error: %v", err)
	}
}

// Flush delegates to the embedded MemoryTempStore (which enforces the
// no-orphans invariant and drains top-level Features to the output
// queue) then clears the on-disk bucket so the store is empty per
// invariant 6.
func (b *BoltTempStore) Flush() error {
	if err := b.MemoryTempStore.Flush(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(featuresBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(featuresBucket)
		return err
	})
}

// Close closes and removes the backing bbolt file.
func (b *BoltTempStore) Close() error {
	err := b.db.Close()
	if rerr := os.Remove(b.path); err == nil {
		err = rerr
	}
	return err
}

// ***** subgraph (de)serialization *****

type flSnapshot struct {
	SeqId, Source, Type  string
	Start, End           int
	StartSet, EndSet     bool
	Score, Strand, Phase string
	SourceName           string
	LineNumber           int
	AttrKeys             []string
	AttrVals             map[string][]string
}

type featSnapshot struct {
	IDs        []string
	Lines      []flSnapshot
	ChildIdx   []int
	DerivedIdx []int
}

type subgraphSnapshot struct {
	Features []featSnapshot
}

// encodeSubgraph walks f and everything reachable via ChildFeatures /
// DerivedFeatures, assigning each distinct *Feature a stable index so
// cross-links survive the round trip as plain integers.
func encodeSubgraph(f *Feature) subgraphSnapshot {
	index := make(map[*Feature]int)
	var order []*Feature

	var visit func(*Feature)
	visit = func(x *Feature) {
		if _, ok := index[x]; ok {
			return
		}
		index[x] = len(order)
		order = append(order, x)
		for _, c := range x.children {
			visit(c)
		}
		for _, c := range x.derived {
			visit(c)
		}
	}
	visit(f)

	feats := make([]featSnapshot, len(order))
	for i, x := range order {
		var ids []string
		for id := range x.ids {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		lines := make([]flSnapshot, len(x.Lines))
		for j, l := range x.Lines {
			attrVals := make(map[string][]string, l.Attributes.Len())
			for _, k := range l.Attributes.Keys() {
				attrVals[k] = append([]string(nil), l.Attributes.Get(k)...)
			}
			lines[j] = flSnapshot{
				SeqId: l.SeqId, Source: l.Source, Type: l.Type,
				Start: l.Start, End: l.End,
				StartSet: l.StartSet, EndSet: l.EndSet,
				Score: l.Score, Strand: l.Strand, Phase: l.Phase,
				SourceName: l.SourceName, LineNumber: l.LineNumber,
				AttrKeys: append([]string(nil), l.Attributes.Keys()...),
				AttrVals: attrVals,
			}
		}

		var childIdx []int
		for _, c := range x.children {
			childIdx = append(childIdx, index[c])
		}
		var derivedIdx []int
		for _, c := range x.derived {
			derivedIdx = append(derivedIdx, index[c])
		}

		feats[i] = featSnapshot{IDs: ids, Lines: lines, ChildIdx: childIdx, DerivedIdx: derivedIdx}
	}

	return subgraphSnapshot{Features: feats}
}

// decodeSubgraph is the inverse of encodeSubgraph: it reconstructs
// every *Feature in the subgraph with shared child/derived slices
// wired back up by index.
func decodeSubgraph(snap subgraphSnapshot) []*Feature {
	feats := make([]*Feature, len(snap.Features))
	for i, fs := range snap.Features {
		nf := newFeature()
		for _, id := range fs.IDs {
			nf.ids[id] = true
		}
		feats[i] = nf
	}

	for i, fs := range snap.Features {
		for _, li := range fs.Lines {
			attrs := NewAttributes()
			for _, k := range li.AttrKeys {
				for _, v := range li.AttrVals[k] {
					attrs.Add(k, v)
				}
			}
			fl := &FeatureLine{
				SeqId: li.SeqId, Source: li.Source, Type: li.Type,
				Start: li.Start, End: li.End,
				StartSet: li.StartSet, EndSet: li.EndSet,
				Score: li.Score, Strand: li.Strand, Phase: li.Phase,
				SourceName: li.SourceName, LineNumber: li.LineNumber,
				Attributes: attrs,
			}
			feats[i].addLine(fl)
		}
		for _, ci := range fs.ChildIdx {
			feats[i].children = append(feats[i].children, feats[ci])
		}
		for _, di := range fs.DerivedIdx {
			feats[i].derived = append(feats[i].derived, feats[di])
		}
	}

	return feats
}

package gff3

import (
	"fmt"
	"strings"
)

// ParserOptions configures a Parser. The zero value uses an in-memory
// TempStore, which is correct for any input that plausibly fits in
// memory and is what every caller should reach for first.
type ParserOptions struct {
	// NewTempStore, if set, is called once by Open to build the
	// under-construction store. Use NewBoltTempStore-backed factory
	// for inputs whose working set does not comfortably fit in memory.
	NewTempStore func() (TempStore, error)
}

// Parser turns a stream of GFF3 text into a sequence of Items,
// reconstructing the Feature hierarchy as it goes. A Parser is not
// safe for concurrent use.
type Parser struct {
	ls    *LineSource
	store TempStore

	retired bool // FASTA handoff has happened - no further reads permitted
	err     error
}

// Open constructs a Parser reading from ls.
func Open(ls *LineSource, opts ParserOptions) (*Parser, error) {
	var store TempStore
	if opts.NewTempStore != nil {
		s, err := opts.NewTempStore()
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		store = s
	} else {
		store = NewMemoryTempStore()
	}
	return &Parser{ls: ls, store: store}, nil
}

// NextItem returns the next fully-resolved Item - a Feature (with its
// whole hierarchy attached, invariant 1), a Directive, or a Comment.
// It returns (Item{}, false, nil) at end of input once every
// under-construction Feature has been flushed. A non-nil error
// (typically *ParseError or *OrphanError) ends the stream for good;
// NextItem returns that same error on every subsequent call.
func (p *Parser) NextItem() (Item, bool, error) {
	if p.err != nil {
		return Item{}, false, p.err
	}

	for {
		if item, ok := p.store.OutPop(); ok {
			return item, true, nil
		}
		if p.retired {
			return Item{}, false, nil
		}
		if err := p.pump(); err != nil {
			p.err = err
			return Item{}, false, err
		}
	}
}

// Close releases the Parser's TempStore.
func (p *Parser) Close() error {
	return p.store.Close()
}

// Err returns the fatal error that ended the stream, or nil if the
// Parser has not failed (including the ordinary case of a clean
// end-of-input drain). Safe to call after NextItem stops returning
// items, for callers that stopped pulling mid-stream and want to know
// whether that was a clean exhaustion or a fatal error.
func (p *Parser) Err() error {
	return p.err
}

// pump reads and dispatches the next physical line, or flushes and
// marks the stream retired at end of input. It returns without
// enqueueing anything for lines that only update internal state (a
// sync marker with nothing pending, a blank line); the caller's loop
// in NextItem keeps calling pump until something lands in the queue.
func (p *Parser) pump() error {
	line, ok, err := p.ls.NextLine()
	if err != nil {
		return err
	}
	if !ok {
		if err := p.store.Flush(); err != nil {
			return fmt.Errorf("pump: end of input: %w", err)
		}
		p.retired = true
		return nil
	}

	if strings.TrimSpace(line) == `` {
		return nil
	}

	if strings.HasPrefix(line, `>`) {
		return p.handleImplicitFasta(line)
	}

	if strings.HasPrefix(line, `#`) {
		return p.dispatchHash(line)
	}

	return p.dispatchFeatureLine(line)
}

// dispatchHash classifies a line starting with "#": a run of exactly
// three followed by nothing but whitespace is a sync marker; exactly
// two is a directive (FASTA directives trigger the handoff); anything
// else (one, or four or more) is a comment.
func (p *Parser) dispatchHash(line string) error {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	rest := line[n:]

	if n == 3 && strings.TrimSpace(rest) == `` {
		return p.store.Flush()
	}

	if n == 2 {
		d, err := ParseDirective(line)
		if err != nil {
			p.store.OutPush(Item{Comment: ParseComment(line)})
			return nil
		}
		if d.Directive == `FASTA` {
			return p.handleDirectiveFasta(d)
		}
		p.store.OutPush(Item{Directive: d})
		return nil
	}

	p.store.OutPush(Item{Comment: ParseComment(line)})
	return nil
}

// handleDirectiveFasta flushes the store, attaches the remainder of
// the current input stream to d, and retires the LineSource.
func (p *Parser) handleDirectiveFasta(d *Directive) error {
	if err := p.store.Flush(); err != nil {
		return fmt.Errorf("handleDirectiveFasta: %w", err)
	}
	d.Stream = p.ls.TakeRemainder()
	p.store.OutPush(Item{Directive: d})
	p.retired = true
	return nil
}

// handleImplicitFasta handles a FASTA payload with no preceding
// "##FASTA" directive - a bare ">" line. It is surfaced as a synthetic
// FASTA directive whose Stream includes the ">" line itself.
func (p *Parser) handleImplicitFasta(line string) error {
	if err := p.store.Flush(); err != nil {
		return fmt.Errorf("handleImplicitFasta: %w", err)
	}
	d := &Directive{Directive: `FASTA`, Implicit: true, Stream: p.ls.TakeRemainderWithLine(line)}
	p.store.OutPush(Item{Directive: d})
	p.retired = true
	return nil
}

// dispatchFeatureLine parses a tab-delimited feature line and runs it
// through the hierarchy step.
func (p *Parser) dispatchFeatureLine(line string) error {
	fl, err := ParseFeatureLine(line)
	if err != nil {
		return &ParseError{Source: p.ls.CurrentName(), Line: p.ls.CurrentLineNumber(), Text: line, Cause: err}
	}
	fl.SourceName = p.ls.CurrentName()
	fl.LineNumber = p.ls.CurrentLineNumber()
	p.hierarchyStep(fl)
	return nil
}

// hierarchyStep is the heart of the streaming reconstruction: it
// groups fl into the Feature its ID(s) belong to (merging distinct
// under-construction Features when fl's IDs collide), wires up any
// orphans that were waiting on one of those IDs, and resolves fl's own
// outgoing Parent/Derives_from references - attaching to an
// already-under-construction target, or else recording fl's Feature as
// an orphan waiting on that target.
func (p *Parser) hierarchyStep(fl *FeatureLine) {
	ids := fl.Attributes.Get(`ID`)
	parents := fl.Attributes.Get(`Parent`)
	derives := fl.Attributes.Get(`Derives_from`)

	if len(ids) == 0 && len(parents) == 0 && len(derives) == 0 {
		// No hierarchy participation at all - emit directly as a
		// singleton Feature so Item stays a uniform Feature|Directive|Comment.
		singleton := newFeature()
		singleton.addLine(fl)
		p.store.OutPush(Item{Feature: singleton})
		return
	}

	f := p.resolveFeature(fl, ids)

	for _, id := range ids {
		f.ids[id] = true
	}

	// A Feature is top-level once every outgoing Parent/Derives_from
	// target turns out to be itself (invariant 3 drops those links, so
	// a purely self-referencing Feature has no real parent at all).
	isTopLevel := true
	for _, target := range parents {
		if !f.ids[target] {
			isTopLevel = false
		}
	}
	for _, target := range derives {
		if !f.ids[target] {
			isTopLevel = false
		}
	}
	for _, id := range ids {
		p.store.UCPut(id, f, isTopLevel)
	}

	for _, id := range ids {
		for attr, waiters := range p.store.OrphansGet(id) {
			for _, w := range waiters {
				attachByAttr(f, attr, w)
			}
		}
	}

	p.resolveOutgoing(f, `Parent`, parents)
	p.resolveOutgoing(f, `Derives_from`, derives)
}

// resolveFeature determines the single Feature that fl's line belongs
// to, merging together any distinct under-construction Features that
// fl's IDs collide with.
func (p *Parser) resolveFeature(fl *FeatureLine, ids []string) *Feature {
	var f *Feature
	for _, id := range ids {
		existing, ok := p.store.UCGet(id)
		if !ok {
			continue
		}
		if f == nil {
			f = existing
			continue
		}
		if existing != f {
			mergeInto(f, existing, p.store)
		}
	}
	if f == nil {
		f = newFeature()
	}
	f.addLine(fl)
	return f
}

// resolveOutgoing attaches f to each of its targets under attr, or
// records f as an orphan waiting on any target not yet under
// construction. A (attr, target) pair already acted on for f is
// skipped, so a multi-line, multi-ID Feature does not attach twice.
func (p *Parser) resolveOutgoing(f *Feature, attr string, targets []string) {
	for _, target := range targets {
		key := attr + "\x00" + target
		if f.resolved[key] {
			continue
		}
		f.resolved[key] = true

		if t, ok := p.store.UCGet(target); ok {
			attachByAttr(t, attr, f)
		} else {
			p.store.OrphansAdd(target, attr, f)
		}
	}
}

// attachByAttr appends other to owner's child list named by attr:
// Parent -> child_features, Derives_from -> derived_features, any
// other attribute name -> its lowercased generic list.
func attachByAttr(owner *Feature, attr string, other *Feature) {
	switch attr {
	case `Parent`:
		owner.addChild(other)
	case `Derives_from`:
		owner.addDerived(other)
	default:
		owner.addGeneric(attr, other)
	}
}

// mergeInto absorbs source into target: target keeps its own lines and
// gains source's (reordered so source's file-order-earlier lines come
// first), its IDs (rebound in the store to point at target), its
// child/derived/generic lists, and its already-resolved outgoing-
// reference set.
func mergeInto(target, source *Feature, store TempStore) {
	if target == source {
		return
	}

	merged := make([]*FeatureLine, 0, len(source.Lines)+len(target.Lines))
	merged = append(merged, source.Lines...)
	merged = append(merged, target.Lines...)
	target.Lines = nil
	for _, fl := range merged {
		target.addLine(fl)
	}

	for id := range source.ids {
		target.ids[id] = true
		store.UCUpdate(id, target)
	}

	for _, c := range source.children {
		target.addChild(c)
	}
	for _, c := range source.derived {
		target.addDerived(c)
	}
	for name, cs := range source.generic {
		for _, c := range cs {
			target.addGeneric(name, c)
		}
	}
	for k := range source.resolved {
		target.resolved[k] = true
	}
}

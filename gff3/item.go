package gff3

import "strings"

// Attributes is an ordered name->values mapping, preserving both
// first-encounter key order and within-key value order. The zero value
// is an empty mapping; Add allocates its storage on first use.
type Attributes struct {
	keys   []string
	values map[string][]string
}

// NewAttributes returns an empty, ready-to-use Attributes.
func NewAttributes() Attributes {
	return Attributes{values: make(map[string][]string)}
}

// Add appends value to the list for name, recording name in key order
// the first time it is seen.
func (a *Attributes) Add(name, value string) {
	if a.values == nil {
		a.values = make(map[string][]string)
	}
	if _, ok := a.values[name]; !ok {
		a.keys = append(a.keys, name)
	}
	a.values[name] = append(a.values[name], value)
}

// Get returns the value list for name, or nil if name is absent.
func (a Attributes) Get(name string) []string {
	return a.values[name]
}

// First returns the first value for name, or "" if name is absent or
// its value list is empty.
func (a Attributes) First(name string) string {
	vs := a.values[name]
	if len(vs) == 0 {
		return ``
	}
	return vs[0]
}

// Keys returns the attribute names in first-encounter order.
func (a Attributes) Keys() []string {
	return a.keys
}

// Len returns the count of distinct attribute names.
func (a Attributes) Len() int {
	return len(a.keys)
}

// FeatureLine is one physical row of a GFF3 file.
type FeatureLine struct {
	SeqId      string
	Source     string
	Type       string
	Start      int
	StartSet   bool
	End        int
	EndSet     bool
	Score      string
	Strand     string
	Phase      string
	Attributes Attributes

	// SourceName and LineNumber are diagnostic provenance, set by the
	// Parser from its LineSource at the moment this line was read.
	SourceName string
	LineNumber int

	feature *Feature
}

// String renders the FeatureLine back to wire format via FormatFeatureLine.
func (fl *FeatureLine) String() string {
	return FormatFeatureLine(fl)
}

// ChildFeatures returns the Feature's shared child-feature list - the
// same slice is returned for every FeatureLine that belongs to the
// same Feature (invariant 2 of the GFF3 hierarchy contract).
func (fl *FeatureLine) ChildFeatures() []*Feature {
	if fl.feature == nil {
		return nil
	}
	return fl.feature.children
}

// DerivedFeatures returns the Feature's shared derived-feature list,
// with the same sharing guarantee as ChildFeatures.
func (fl *FeatureLine) DerivedFeatures() []*Feature {
	if fl.feature == nil {
		return nil
	}
	return fl.feature.derived
}

// Feature is the logical entity formed by one or more FeatureLines that
// share at least one ID attribute value. All of a Feature's lines view
// the same child_features/derived_features lists by reference - see
// spec.md §9 for the rationale (this avoids per-line list duplication
// and the bookkeeping that would otherwise require to keep them in
// sync).
type Feature struct {
	Lines []*FeatureLine

	children []*Feature
	derived  []*Feature

	// ids is the set of ID values this Feature currently answers to,
	// used by the Parser to detect and drop self-references (invariant 3).
	ids map[string]bool

	// generic holds child lists for any hierarchy-establishing attribute
	// other than Parent/Derives_from, keyed by its lowercased name. The
	// Parser's outgoing-reference resolution only ever produces Parent
	// and Derives_from links today, so this is an extension point more
	// than a load-bearing path.
	generic map[string][]*Feature

	// resolved records which (attr, target ID) outgoing references this
	// Feature has already acted on, so a Feature spanning several lines
	// that repeat the same reference under a different one of its IDs
	// is not attached to the same target twice.
	resolved map[string]bool
}

func newFeature() *Feature {
	return &Feature{ids: make(map[string]bool), resolved: make(map[string]bool)}
}

// addLine appends a FeatureLine to the Feature and wires its back
// pointer so ChildFeatures/DerivedFeatures resolve correctly.
func (f *Feature) addLine(fl *FeatureLine) {
	fl.feature = f
	f.Lines = append(f.Lines, fl)
}

// ChildFeatures returns the Feature's shared child-feature list.
func (f *Feature) ChildFeatures() []*Feature {
	return f.children
}

// DerivedFeatures returns the Feature's shared derived-feature list.
func (f *Feature) DerivedFeatures() []*Feature {
	return f.derived
}

// GenericFeatures returns the shared child list for a hierarchy
// attribute other than Parent/Derives_from, keyed by its lowercased name.
func (f *Feature) GenericFeatures(name string) []*Feature {
	return f.generic[strings.ToLower(name)]
}

// addGeneric appends child to the named generic list, with the same
// self-reference/duplicate guards as addChild.
func (f *Feature) addGeneric(name string, child *Feature) {
	if child == f {
		return
	}
	if f.generic == nil {
		f.generic = make(map[string][]*Feature)
	}
	key := strings.ToLower(name)
	for _, c := range f.generic[key] {
		if c == child {
			return
		}
	}
	f.generic[key] = append(f.generic[key], child)
}

// addChild appends child unless child is f itself (a self-reference,
// silently dropped per invariant 3) or already present.
func (f *Feature) addChild(child *Feature) {
	if child == f {
		return
	}
	for _, c := range f.children {
		if c == child {
			return
		}
	}
	f.children = append(f.children, child)
}

// addDerived appends derived unless it is f itself or already present.
func (f *Feature) addDerived(derived *Feature) {
	if derived == f {
		return
	}
	for _, c := range f.derived {
		if c == derived {
			return
		}
	}
	f.derived = append(f.derived, derived)
}

// String renders every line of the Feature, one per line, via
// FormatFeatureLine.
func (f *Feature) String() string {
	var b strings.Builder
	for _, fl := range f.Lines {
		b.WriteString(FormatFeatureLine(fl))
	}
	return b.String()
}

// Directive is a "##name value" line, with sequence-region and
// genome-build getting additional structured fields and FASTA getting
// a Stream handoff (attached by the Parser, not by ParseDirective).
type Directive struct {
	Directive string
	Value     string

	// sequence-region
	SeqId string
	Start int
	End   int

	// genome-build
	Source    string
	BuildName string

	// FASTA - populated by the Parser at the moment of handoff.
	Stream FastaStream

	// Implicit is true when this FASTA directive was synthesized from
	// a bare ">" line rather than an explicit "##FASTA" line, in which
	// case Stream already contains that ">" line and re-emitting
	// Directive.String() first would duplicate it.
	Implicit bool
}

func (d *Directive) String() string {
	if d.Value == `` {
		return `##` + d.Directive
	}
	return `##` + d.Directive + ` ` + d.Value
}

// Comment is a "#..." line with the leading '#' characters and
// trailing whitespace stripped.
type Comment struct {
	Text string
}

func (c *Comment) String() string {
	return `#` + c.Text
}

// Item is the sum type yielded by Parser.NextItem: exactly one of
// Feature, Directive or Comment is non-nil.
type Item struct {
	Feature   *Feature
	Directive *Directive
	Comment   *Comment
}

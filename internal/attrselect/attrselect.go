// Package attrselect defines operation:subject:pattern triples used to
// keep or drop GFF3 attribute keys when reformatting. See the teacher's
// selector package for the shape this is adapted from.
package attrselect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/grendeloz/gff3stream/gff3"
)

// A Selector defines a keep/drop operation, a subject, and the compiled
// pattern used to match an attribute key. The subject is recorded but
// not checked: patterns are always matched against attribute keys.
type Selector struct {
	Operation string
	Subject   string
	Pattern   string

	re *regexp.Regexp
}

func (s Selector) String() string {
	return s.Operation + ":" + s.Subject + ":" + s.Pattern
}

// NewFromString takes a string in the format operation:subject:pattern,
// parses it into a Selector and compiles its pattern.
func NewFromString(s string) (*Selector, error) {
	ss := strings.SplitN(s, `:`, 3)
	if len(ss) != 3 {
		return nil, fmt.Errorf("incorrectly formed selector: %s", s)
	}
	re, err := regexp.Compile(ss[2])
	if err != nil {
		return nil, fmt.Errorf("incorrectly formed selector: %s: %w", s, err)
	}
	return &Selector{Operation: ss[0], Subject: ss[1], Pattern: ss[2], re: re}, nil
}

// NewFromStrings parses a list of operation:subject:pattern strings
// into a list of Selectors, in order.
func NewFromStrings(selects []string) ([]*Selector, error) {
	var sels []*Selector
	for _, s := range selects {
		sel, err := NewFromString(s)
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	return sels, nil
}

// Apply returns a copy of attrs with every key admitted by sels; with
// no selectors it returns attrs itself, not a copy. A key
// not matched by any selector's pattern passes through unchanged; the
// first selector whose pattern matches the key decides whether it is
// kept ("keep") or dropped ("drop").
func Apply(sels []*Selector, attrs gff3.Attributes) gff3.Attributes {
	if len(sels) == 0 {
		return attrs
	}

	out := gff3.NewAttributes()
	for _, key := range attrs.Keys() {
		if !admit(sels, key) {
			continue
		}
		for _, v := range attrs.Get(key) {
			out.Add(key, v)
		}
	}
	return out
}

// admit reports whether key survives sels: the first matching selector
// wins, "keep" admitting and "drop" rejecting; a key no selector
// matches is admitted by default.
func admit(sels []*Selector, key string) bool {
	for _, s := range sels {
		if s.re.MatchString(key) {
			return strings.EqualFold(s.Operation, `keep`)
		}
	}
	return true
}

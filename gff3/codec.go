package gff3

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// attrKeyOrder is the stable attribute-key emission order required by
// the format invariant: ID, Name, Alias, Parent first (in that
// sequence), then the remaining keys in lexicographic order. Kept as
// data, not control flow, so it stays easy to audit.
var attrKeyOrder = []string{`ID`, `Name`, `Alias`, `Parent`}

// reserved bytes that must be percent-encoded when formatting GFF3
// text: NUL-0x1F, 0x7F-0xFF, tab, LF, CR, ; = % & ,
func mustEscape(b byte) bool {
	switch b {
	case '\t', '\n', '\r', ';', '=', '%', '&', ',':
		return true
	}
	if b < 0x20 || b >= 0x7F {
		return true
	}
	return false
}

// Escape percent-encodes the reserved byte set from the GFF3 spec.
// All other printable ASCII passes through unchanged.
func Escape(s string) string {
	var needsEscape bool
	for i := 0; i < len(s); i++ {
		if mustEscape(s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if mustEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unescape is the inverse of Escape. Malformed %-sequences (not
// followed by two hex digits) are passed through unchanged - this is
// best-effort, not a strict decoder.
func Unescape(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ParseFeatureLine splits a single GFF3 feature line into its 9
// tab-separated fields. A field equal to "." becomes an absent value
// (represented by the empty string in the returned FeatureLine, with
// StartSet/EndSet false for an absent Start/End).
// Lines with fewer than 9 fields are a parse error.
func ParseFeatureLine(line string) (*FeatureLine, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("ParseFeatureLine: %d fields supplied - 9 are required", len(fields))
	}

	fl := &FeatureLine{}

	if fields[0] != `.` {
		fl.SeqId = Unescape(fields[0])
	}
	if fields[1] != `.` {
		fl.Source = Unescape(fields[1])
	}
	if fields[2] != `.` {
		fl.Type = Unescape(fields[2])
	}
	if fields[3] != `.` {
		i, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("ParseFeatureLine: start %q: %w", fields[3], err)
		}
		fl.Start = i
		fl.StartSet = true
	}
	if fields[4] != `.` {
		i, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("ParseFeatureLine: end %q: %w", fields[4], err)
		}
		fl.End = i
		fl.EndSet = true
	}
	if fields[5] != `.` {
		fl.Score = Unescape(fields[5])
	}
	if fields[6] != `.` {
		fl.Strand = Unescape(fields[6])
	}
	if fields[7] != `.` {
		fl.Phase = Unescape(fields[7])
	}

	attrs, err := ParseAttributes(fields[8])
	if err != nil {
		return nil, fmt.Errorf("ParseFeatureLine: %w", err)
	}
	fl.Attributes = attrs

	return fl, nil
}

// ParseAttributes parses the raw column-9 text into an ordered
// name->values mapping. "." or empty input yields an empty mapping.
// Tokens with no "=" are discarded. Duplicate names accumulate into the
// same value list in encounter order.
func ParseAttributes(col string) (Attributes, error) {
	attrs := NewAttributes()

	col = strings.TrimSpace(col)
	if col == `` || col == `.` {
		return attrs, nil
	}

	for _, tok := range strings.Split(col, `;`) {
		if tok == `` {
			continue
		}
		parts := strings.SplitN(tok, `=`, 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[0]
		for _, v := range strings.Split(parts[1], `,`) {
			attrs.Add(name, Unescape(v))
		}
	}

	return attrs, nil
}

// FormatFeatureLine renders a FeatureLine back to wire format: 8
// percent-escaped (or ".") fields followed by the formatted attribute
// column, terminated with a single LF.
func FormatFeatureLine(fl *FeatureLine) string {
	fields := []string{
		formatOrDot(fl.SeqId),
		formatOrDot(fl.Source),
		formatOrDot(fl.Type),
		formatIntOrDot(fl.Start, fl.StartSet),
		formatIntOrDot(fl.End, fl.EndSet),
		formatOrDot(fl.Score),
		formatOrDot(fl.Strand),
		formatOrDot(fl.Phase),
		FormatAttributes(fl.Attributes),
	}
	return strings.Join(fields, "\t") + "\n"
}

func formatOrDot(s string) string {
	if s == `` {
		return `.`
	}
	return Escape(s)
}

func formatIntOrDot(i int, set bool) string {
	if !set {
		return `.`
	}
	return strconv.Itoa(i)
}

// FormatAttributes renders an Attributes mapping as column-9 text:
// ID, Name, Alias, Parent first (in that order), then the remaining
// keys lexicographically. Keys whose value list is empty are omitted.
// An empty mapping renders as ".".
func FormatAttributes(attrs Attributes) string {
	if attrs.Len() == 0 {
		return `.`
	}

	var tokens []string
	seen := make(map[string]bool, len(attrKeyOrder))
	for _, k := range attrKeyOrder {
		seen[k] = true
		if tok, ok := formatAttrToken(attrs, k); ok {
			tokens = append(tokens, tok)
		}
	}

	var rest []string
	for _, k := range attrs.Keys() {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		if tok, ok := formatAttrToken(attrs, k); ok {
			tokens = append(tokens, tok)
		}
	}

	if len(tokens) == 0 {
		return `.`
	}
	return strings.Join(tokens, `;`)
}

func formatAttrToken(attrs Attributes, key string) (string, bool) {
	vals := attrs.Get(key)
	if len(vals) == 0 {
		return ``, false
	}
	escaped := make([]string, len(vals))
	for i, v := range vals {
		escaped[i] = Escape(v)
	}
	return key + `=` + strings.Join(escaped, `,`), true
}

// ParseDirective parses a "##name value" line. A line that does not
// begin with exactly two "#" is not a directive. sequence-region and
// genome-build get additional structured fields per the GFF3 spec.
func ParseDirective(line string) (*Directive, error) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, `##`) {
		return nil, fmt.Errorf("ParseDirective: %w: %q", ErrNotADirective, line)
	}
	rest := strings.TrimPrefix(trimmed, `##`)
	rest = strings.TrimRight(rest, " \t\r\n")
	if rest == `` || strings.HasPrefix(rest, `#`) {
		return nil, fmt.Errorf("ParseDirective: %w: %q", ErrNotADirective, line)
	}

	fields := strings.SplitN(rest, " ", 2)
	name := fields[0]
	name = strings.SplitN(name, "\t", 2)[0]

	// Recover the payload irrespective of whether the name/value
	// separator was a space or a tab.
	value := strings.TrimPrefix(rest, name)
	value = strings.TrimLeft(value, " \t")

	d := &Directive{Directive: name, Value: value}

	switch name {
	case `sequence-region`:
		parts := strings.Fields(value)
		if len(parts) > 0 {
			d.SeqId = parts[0]
		}
		if len(parts) > 1 {
			d.Start = stripToInt(parts[1])
		}
		if len(parts) > 2 {
			d.End = stripToInt(parts[2])
		}
	case `genome-build`:
		parts := strings.Fields(value)
		if len(parts) > 0 {
			d.Source = parts[0]
		}
		if len(parts) > 1 {
			d.BuildName = strings.Join(parts[1:], " ")
		}
	}

	return d, nil
}

// stripToInt strips non-digit characters and parses the remainder as
// an int, returning 0 if nothing digit-like remains.
func stripToInt(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	i, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return i
}

// ParseComment strips the leading '#' characters and trailing
// whitespace from a comment line.
func ParseComment(line string) *Comment {
	text := strings.TrimLeft(line, `#`)
	text = strings.TrimRight(text, " \t\r\n")
	return &Comment{Text: text}
}

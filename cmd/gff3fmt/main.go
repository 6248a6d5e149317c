// Command gff3fmt re-emits one or more GFF3 files through the codec:
// every feature line is reparsed and reformatted with the stable
// attribute-key order and percent-escaping gff3.FormatFeatureLine
// guarantees. Directives are re-emitted as "##name value" and comments
// with a single leading '#'; "###" sync markers are not written to the
// output; any trailing FASTA payload is copied through unchanged. It
// does not alter the Feature hierarchy - per
// spec.md's Non-goals this is a line-level normalizer, not a tree
// writer.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grendeloz/gff3stream/gff3"
	"github.com/grendeloz/gff3stream/internal/attrselect"
	log "github.com/sirupsen/logrus"
)

// selectFlag accumulates repeated -select flags into an ordered list,
// the way flag.Value is meant to be extended for multi-valued options.
type selectFlag []string

func (s *selectFlag) String() string { return fmt.Sprint([]string(*s)) }

func (s *selectFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var selects selectFlag
	flag.Var(&selects, `select`, `operation:key:pattern attribute selector (keep|drop), repeatable`)
	verbose := flag.Bool(`verbose`, false, `log debug detail to stderr`)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-select op:key:pattern ...] file.gff3 [file2.gff3 ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "gff3fmt: at least one input file is required")
		flag.Usage()
		os.Exit(2)
	}

	sels, err := attrselect.NewFromStrings(selects)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gff3fmt: %v\n", err)
		os.Exit(2)
	}

	if err := run(files, sels, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gff3fmt: %v\n", err)
		os.Exit(1)
	}
}

func run(files []string, sels []*attrselect.Selector, w io.Writer) error {
	ls, err := gff3.OpenFiles(files...)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	p, err := gff3.Open(ls, gff3.ParserOptions{})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer p.Close()

	for {
		item, ok, err := p.NextItem()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if !ok {
			return nil
		}

		switch {
		case item.Feature != nil:
			if err := writeFeatureTree(w, item.Feature, sels, make(map[*gff3.Feature]bool)); err != nil {
				return err
			}
		case item.Directive != nil:
			if !item.Directive.Implicit {
				if _, err := fmt.Fprintln(w, item.Directive.String()); err != nil {
					return fmt.Errorf("run: writing directive: %w", err)
				}
			}
			if item.Directive.Directive == `FASTA` {
				if _, err := io.Copy(w, item.Directive.Stream); err != nil {
					return fmt.Errorf("run: copying FASTA payload: %w", err)
				}
				return item.Directive.Stream.Close()
			}
		case item.Comment != nil:
			if _, err := fmt.Fprintln(w, item.Comment.String()); err != nil {
				return fmt.Errorf("run: writing comment: %w", err)
			}
		}
	}
}

// writeFeatureTree writes f's own lines, reformatted, then recurses
// into its child and derived Features. NextItem only ever yields
// top-level Features - everything else hangs off ChildFeatures/
// DerivedFeatures - so without this walk every non-top-level line
// would be silently dropped from the output. seen guards against
// emitting a Feature twice when more than one parent shares it (e.g.
// trans-spliced exons).
func writeFeatureTree(w io.Writer, f *gff3.Feature, sels []*attrselect.Selector, seen map[*gff3.Feature]bool) error {
	if f == nil || seen[f] {
		return nil
	}
	seen[f] = true

	for _, fl := range f.Lines {
		fl.Attributes = attrselect.Apply(sels, fl.Attributes)
		if _, err := io.WriteString(w, gff3.FormatFeatureLine(fl)); err != nil {
			return fmt.Errorf("run: writing feature line: %w", err)
		}
	}
	for _, child := range f.ChildFeatures() {
		if err := writeFeatureTree(w, child, sels, seen); err != nil {
			return err
		}
	}
	for _, d := range f.DerivedFeatures() {
		if err := writeFeatureTree(w, d, sels, seen); err != nil {
			return err
		}
	}
	return nil
}

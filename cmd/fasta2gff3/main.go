// Command fasta2gff3 is a deliberately minimal FASTA-to-GFF3 stub: it
// reads one or more FASTA files and emits a "##gff-version 3" header
// followed by one "##sequence-region" directive per record (seq_id,
// start=1, end=record length). It never emits feature lines - this is
// not a real annotator, just the scaffold a downstream pipeline stage
// can build on.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/grendeloz/gff3stream/gff3"
)

var headerPattern = regexp.MustCompile(`^>(\S*)`)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s file.fasta [file2.fasta ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "fasta2gff3: at least one input file is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(files, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fasta2gff3: %v\n", err)
		os.Exit(1)
	}
}

func run(files []string, w io.Writer) error {
	ls, err := gff3.OpenFiles(files...)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Fprintln(w, `##gff-version 3`)

	var curId string
	var curLen int
	haveRecord := false

	emit := func() {
		if haveRecord {
			fmt.Fprintf(w, "##sequence-region %s 1 %d\n", curId, curLen)
		}
	}

	for {
		line, ok, err := ls.NextLine()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if !ok {
			break
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			emit()
			curId = m[1]
			curLen = 0
			haveRecord = true
			continue
		}
		if haveRecord {
			curLen += len(line)
		}
	}
	emit()

	return nil
}

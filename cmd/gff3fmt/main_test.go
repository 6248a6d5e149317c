package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/grendeloz/gff3stream/internal/attrselect"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), `input.gff3`)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestRunReformatsAndPassesDirectivesThrough(t *testing.T) {
	path := writeFixture(t, "##gff-version 3\n"+
		"chr1\ttest\tgene\t1\t100\t.\t+\t.\tName=Gene1;ID=gene1\n")

	var buf bytes.Buffer
	if err := run([]string{path}, nil, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "##gff-version 3\n" +
		"chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1;Name=Gene1\n"
	if buf.String() != want {
		t.Fatalf("run() output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRunEmitsNonTopLevelFeaturesInHierarchy(t *testing.T) {
	path := writeFixture(t, "chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1\n"+
		"chr1\ttest\tmRNA\t1\t100\t.\t+\t.\tID=mrna1;Parent=gene1\n"+
		"chr1\ttest\texon\t1\t50\t.\t+\t.\tID=exon1;Parent=mrna1\n"+
		"chr1\ttest\texon\t60\t100\t.\t+\t.\tID=exon2;Parent=mrna1\n")

	var buf bytes.Buffer
	if err := run([]string{path}, nil, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1\n" +
		"chr1\ttest\tmRNA\t1\t100\t.\t+\t.\tID=mrna1;Parent=gene1\n" +
		"chr1\ttest\texon\t1\t50\t.\t+\t.\tID=exon1;Parent=mrna1\n" +
		"chr1\ttest\texon\t60\t100\t.\t+\t.\tID=exon2;Parent=mrna1\n"
	if buf.String() != want {
		t.Fatalf("run() output =\n%s\nwant\n%s (mRNA/exon lines must not be dropped)", buf.String(), want)
	}
}

func TestRunAppliesAttributeSelectors(t *testing.T) {
	path := writeFixture(t, "chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1;Alias=g1\n")

	sels, err := attrselect.NewFromStrings([]string{`drop:attr:^Alias$`})
	if err != nil {
		t.Fatalf("NewFromStrings: %v", err)
	}

	var buf bytes.Buffer
	if err := run([]string{path}, sels, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1\n"
	if buf.String() != want {
		t.Fatalf("run() output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRunDoesNotDuplicateImplicitFastaDirective(t *testing.T) {
	path := writeFixture(t, "chr1\ttest\tgene\t1\t10\t.\t+\t.\tID=gene1\n>seq1\nACTG\n")

	var buf bytes.Buffer
	if err := run([]string{path}, nil, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "chr1\ttest\tgene\t1\t10\t.\t+\t.\tID=gene1\n>seq1\nACTG\n"
	if buf.String() != want {
		t.Fatalf("run() output =\n%s\nwant\n%s (no synthetic ##FASTA line)", buf.String(), want)
	}
}

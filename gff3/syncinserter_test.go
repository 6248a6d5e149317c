package gff3

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const unsyncedFixture = "##gff-version 3\n" +
	"chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1\n" +
	"chr1\ttest\tmRNA\t1\t100\t.\t+\t.\tID=mrna1;Parent=gene1\n" +
	"chr1\ttest\tgene\t200\t300\t.\t-\t.\tID=gene2\n"

const wantSynced = "##gff-version 3\n" +
	"chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1\n" +
	"chr1\ttest\tmRNA\t1\t100\t.\t+\t.\tID=mrna1;Parent=gene1\n" +
	"###\n" +
	"chr1\ttest\tgene\t200\t300\t.\t-\t.\tID=gene2\n"

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func TestSyncInserterInsertsMarkerAtSafePoint(t *testing.T) {
	path := writeFixture(t, `unsynced.gff3`, unsyncedFixture)

	var buf bytes.Buffer
	if err := NewSyncInserter().InsertOne(path, &buf); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	if diff := cmp.Diff(wantSynced, buf.String()); diff != "" {
		t.Fatalf("synced output mismatch (-want +got):\n%s", diff)
	}
}

// A "###" placed between a parent and its not-yet-seen child is not a
// safe sync point (flushing there would orphan the child's Parent
// reference); SyncInserter must drop it and recompute the marker at
// the position that is actually safe, not merely preserve it in place.
func TestSyncInserterDropsUnsafeExistingMarker(t *testing.T) {
	const unsafe = "##gff-version 3\n" +
		"chr1\ttest\tgene\t1\t100\t.\t+\t.\tID=gene1\n" +
		"###\n" +
		"chr1\ttest\tmRNA\t1\t100\t.\t+\t.\tID=mrna1;Parent=gene1\n" +
		"chr1\ttest\tgene\t200\t300\t.\t-\t.\tID=gene2\n"

	path := writeFixture(t, `unsafe.gff3`, unsafe)

	var buf bytes.Buffer
	if err := NewSyncInserter().InsertOne(path, &buf); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	if diff := cmp.Diff(wantSynced, buf.String()); diff != "" {
		t.Fatalf("synced output mismatch (-want +got):\n%s", diff)
	}
}

// Running the inserter on its own output must reproduce that output
// exactly (invariant 5): a file that is already correctly synced has
// nothing further to recompute.
func TestSyncInserterIdempotent(t *testing.T) {
	first := writeFixture(t, `unsynced.gff3`, unsyncedFixture)

	var buf1 bytes.Buffer
	if err := NewSyncInserter().InsertOne(first, &buf1); err != nil {
		t.Fatalf("InsertOne (first pass): %v", err)
	}

	second := writeFixture(t, `resynced.gff3`, buf1.String())

	var buf2 bytes.Buffer
	if err := NewSyncInserter().InsertOne(second, &buf2); err != nil {
		t.Fatalf("InsertOne (second pass): %v", err)
	}

	if diff := cmp.Diff(buf1.String(), buf2.String()); diff != "" {
		t.Fatalf("second pass changed already-synced output (-first +second):\n%s", diff)
	}
}

func TestSyncInserterInsertAllProcessesFilesIndependentlyInOrder(t *testing.T) {
	a := writeFixture(t, `a.gff3`, "chr1\ttest\tgene\t1\t10\t.\t+\t.\tID=a1\n")
	b := writeFixture(t, `b.gff3`, "chr1\ttest\tgene\t1\t10\t.\t+\t.\tID=b1\n")

	var buf bytes.Buffer
	if err := NewSyncInserter().InsertAll([]string{a, b}, &buf); err != nil {
		t.Fatalf("InsertAll: %v", err)
	}

	want := "chr1\ttest\tgene\t1\t10\t.\t+\t.\tID=a1\n" +
		"chr1\ttest\tgene\t1\t10\t.\t+\t.\tID=b1\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("InsertAll output mismatch (-want +got):\n%s", diff)
	}
}

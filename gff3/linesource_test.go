package gff3

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLineSourceMultipleEntries(t *testing.T) {
	ls := NewLineSource(
		NamedReader{Name: `a`, Reader: strings.NewReader("line1\nline2\n")},
		NamedReader{Name: `b`, Reader: strings.NewReader("line3\n")},
	)

	var got []string
	var names []string
	for {
		line, ok, err := ls.NextLine()
		if err != nil {
			t.Fatalf("NextLine: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, line)
		names = append(names, ls.CurrentName())
	}

	wantLines := []string{`line1`, `line2`, `line3`}
	if diff := cmp.Diff(wantLines, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	wantNames := []string{`a`, `a`, `b`}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Fatalf("source names mismatch (-want +got):\n%s", diff)
	}
}

func TestLineSourceCRLF(t *testing.T) {
	ls := NewLineSource(NamedReader{Name: `a`, Reader: strings.NewReader("one\r\ntwo\r\n")})
	line1, ok, err := ls.NextLine()
	if err != nil || !ok {
		t.Fatalf("NextLine: %v, %v", ok, err)
	}
	if line1 != `one` {
		t.Fatalf("line1 = %q, want %q", line1, `one`)
	}
	line2, ok, err := ls.NextLine()
	if err != nil || !ok {
		t.Fatalf("NextLine: %v, %v", ok, err)
	}
	if line2 != `two` {
		t.Fatalf("line2 = %q, want %q", line2, `two`)
	}
}

func TestLineSourceTakeRemainder(t *testing.T) {
	ls := NewLineSource(NamedReader{Name: `a`, Reader: strings.NewReader("header\nrest of the bytes")})

	line, ok, err := ls.NextLine()
	if err != nil || !ok || line != `header` {
		t.Fatalf("NextLine = %q, %v, %v", line, ok, err)
	}

	fs := ls.TakeRemainder()
	got, err := io.ReadAll(fs)
	if err != nil {
		t.Fatalf("reading remainder: %v", err)
	}
	if string(got) != `rest of the bytes` {
		t.Fatalf("remainder = %q, want %q", got, `rest of the bytes`)
	}

	// The LineSource must not serve any more lines from a retired entry.
	if _, ok, _ := ls.NextLine(); ok {
		t.Fatalf("NextLine returned a line after TakeRemainder retired the stream")
	}
}

func TestLineSourceTakeRemainderWithLine(t *testing.T) {
	ls := NewLineSource(NamedReader{Name: `a`, Reader: strings.NewReader(">seq1\nACTG\n")})

	line, ok, err := ls.NextLine()
	if err != nil || !ok {
		t.Fatalf("NextLine: %v, %v", ok, err)
	}

	fs := ls.TakeRemainderWithLine(line)
	got, err := io.ReadAll(fs)
	if err != nil {
		t.Fatalf("reading remainder: %v", err)
	}
	want := ">seq1\nACTG\n"
	if string(got) != want {
		t.Fatalf("remainder = %q, want %q", got, want)
	}
}

func TestOpenFilesGzipTransparent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, `input.gff3.gz`)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte("##gff-version 3\nline two\n")); err != nil {
		t.Fatalf("writing gzip fixture: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}

	ls, err := OpenFiles(path)
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}

	line1, ok, err := ls.NextLine()
	if err != nil || !ok || line1 != `##gff-version 3` {
		t.Fatalf("line1 = %q, %v, %v", line1, ok, err)
	}
	line2, ok, err := ls.NextLine()
	if err != nil || !ok || line2 != `line two` {
		t.Fatalf("line2 = %q, %v, %v", line2, ok, err)
	}
}

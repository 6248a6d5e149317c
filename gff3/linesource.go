package gff3

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// gzipPattern mirrors the file-extension sniffing the teacher uses in
// gff3.NewFromFile / genome.ParseFastaFile to decide whether to wrap a
// path in a gzip.Reader before handing it to bufio.
var gzipPattern = regexp.MustCompile(`\.[gG][zZ]$`)

// FastaStream is the byte stream handed to the caller when the parser
// reaches a FASTA payload. It is the literal remainder of the current
// input - any bytes the LineSource had already buffered ahead,
// followed by whatever is left of the underlying reader. The parser
// performs no further reads against this source once it is handed off.
type FastaStream struct {
	io.Reader
	closer io.Closer
}

// Close releases the underlying resource (file handle, gzip reader)
// backing the stream, if any.
func (fs FastaStream) Close() error {
	if fs.closer == nil {
		return nil
	}
	return fs.closer.Close()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// lineSourceEntry is one input stream within a LineSource, retired and
// dropped once exhausted or handed off as a FastaStream.
type lineSourceEntry struct {
	name   string
	raw    io.Reader
	br     *bufio.Reader
	closer io.Closer
	lineNo int
}

// LineSource presents an ordered concatenation of input streams as a
// lazy line iterator. It remembers the current source name and line
// number for diagnostics and retires each stream as it is exhausted.
type LineSource struct {
	entries []*lineSourceEntry
	idx     int

	curName   string
	curLineNo int
}

// NamedReader pairs an io.Reader with a diagnostic name (and an
// optional Closer, for callers handing over an already-open file).
type NamedReader struct {
	Name   string
	Reader io.Reader
	Closer io.Closer
}

// NewLineSource builds a LineSource over already-open readers, read in
// the order given.
func NewLineSource(inputs ...NamedReader) *LineSource {
	ls := &LineSource{}
	for _, in := range inputs {
		ls.entries = append(ls.entries, &lineSourceEntry{
			name:   in.Name,
			raw:    in.Reader,
			br:     bufio.NewReader(in.Reader),
			closer: in.Closer,
		})
	}
	return ls
}

// OpenFiles builds a LineSource over the named files, opened in the
// order given. Files ending in .gz (case-insensitive) are transparently
// gunzipped, following the same sniff-then-wrap idiom used throughout
// this module's teacher lineage for FASTA and GFF3 files alike.
func OpenFiles(paths ...string) (*LineSource, error) {
	ls := &LineSource{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("OpenFiles: %w", err)
		}

		var raw io.Reader = f
		var closer io.Closer = f
		if gzipPattern.MatchString(path) {
			gz, err := gzip.NewReader(f)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("OpenFiles: opening gzip file %s: %w", path, err)
			}
			raw = gz
			closer = closerFunc(func() error {
				gz.Close()
				return f.Close()
			})
		}

		ls.entries = append(ls.entries, &lineSourceEntry{
			name:   path,
			raw:    raw,
			br:     bufio.NewReader(raw),
			closer: closer,
		})
	}
	return ls, nil
}

// CurrentName returns the name of the stream the most recently
// returned line came from.
func (ls *LineSource) CurrentName() string {
	return ls.curName
}

// CurrentLineNumber returns the 1-based line number, within its
// source, of the most recently returned line.
func (ls *LineSource) CurrentLineNumber() int {
	return ls.curLineNo
}

// NextLine returns the next newline-terminated line (terminator
// stripped) from the current stream. On EOF it drops the stream,
// advances to the next, and repeats. ok is false once every stream is
// exhausted; err is non-nil only on a genuine read failure.
func (ls *LineSource) NextLine() (line string, ok bool, err error) {
	for ls.idx < len(ls.entries) {
		e := ls.entries[ls.idx]
		text, rerr := e.br.ReadString('\n')
		if len(text) > 0 {
			e.lineNo++
			ls.curName = e.name
			ls.curLineNo = e.lineNo
			text = strings.TrimSuffix(text, "\n")
			text = strings.TrimSuffix(text, "\r")
			return text, true, nil
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return "", false, fmt.Errorf("LineSource: reading %s line %d: %w", e.name, e.lineNo+1, rerr)
		}
		// Exhausted - retire this entry and move on.
		if e.closer != nil {
			e.closer.Close()
		}
		ls.idx++
	}
	return "", false, nil
}

// TakeRemainder retires the current stream and returns everything left
// of it - any bytes already buffered ahead, followed by the rest of
// the underlying reader - as a FastaStream. Used after a "##FASTA"
// directive line has been consumed.
func (ls *LineSource) TakeRemainder() FastaStream {
	return ls.takeRemainder(``)
}

// TakeRemainderWithLine is TakeRemainder but prepends prefixLine (plus
// a trailing newline) to the handed-off bytes. Used for an implicit
// FASTA start, where the ">" line itself is part of the FASTA payload.
func (ls *LineSource) TakeRemainderWithLine(prefixLine string) FastaStream {
	return ls.takeRemainder(prefixLine + "\n")
}

func (ls *LineSource) takeRemainder(prefix string) FastaStream {
	if ls.idx >= len(ls.entries) {
		return FastaStream{Reader: strings.NewReader(prefix)}
	}
	e := ls.entries[ls.idx]
	ls.idx++ // retire - the parser must not read from it again

	var buffered []byte
	if n := e.br.Buffered(); n > 0 {
		buffered, _ = e.br.Peek(n)
	}

	readers := make([]io.Reader, 0, 3)
	if prefix != `` {
		readers = append(readers, strings.NewReader(prefix))
	}
	if len(buffered) > 0 {
		readers = append(readers, bytes.NewReader(buffered))
	}
	readers = append(readers, e.raw)

	return FastaStream{Reader: io.MultiReader(readers...), closer: e.closer}
}

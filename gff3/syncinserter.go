package gff3

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SyncInserter rewrites GFF3 input with "###" synchronization markers
// inserted at every point it can prove safe - a point where nothing
// remaining in that file still awaits a Parent or Derives_from
// reference seen earlier. Any "###" lines already present in the
// input are dropped; fresh ones are computed from scratch.
type SyncInserter struct{}

// NewSyncInserter returns a ready-to-use SyncInserter. It holds no
// state of its own - every file is processed independently, since
// sync markers never span files.
func NewSyncInserter() *SyncInserter {
	return &SyncInserter{}
}

// InsertAll drives each file in files through InsertOne, one at a
// time, writing each file's rewritten content to w in argument order -
// so the output matches what running InsertOne file-by-file and
// concatenating the results would produce.
func (si *SyncInserter) InsertAll(files []string, w io.Writer) error {
	for _, path := range files {
		if err := si.InsertOne(path, w); err != nil {
			return fmt.Errorf("InsertAll: %s: %w", path, err)
		}
	}
	return nil
}

// InsertOne rewrites a single file's content with fresh sync markers
// and writes it to w.
//
// It works backwards, in two passes through one temp file: reading
// column 9 of each feature line right-to-left lets it track, at every
// position, the set of IDs some later line is still waiting on -
// exactly the condition a safe sync point must satisfy. See spec.md
// §4.5 for the full argument.
func (si *SyncInserter) InsertOne(path string, w io.Writer) error {
	lines, err := readAllLines(path)
	if err != nil {
		return fmt.Errorf("InsertOne: %w", err)
	}

	tmpPath, err := writeBackwardPass(lines)
	if err != nil {
		return fmt.Errorf("InsertOne: %w", err)
	}
	defer os.Remove(tmpPath)

	restored, err := readAllLines(tmpPath)
	if err != nil {
		return fmt.Errorf("InsertOne: reading temp file: %w", err)
	}

	bw := bufio.NewWriter(w)
	suppressedLeadingSync := false
	for i := len(restored) - 1; i >= 0; i-- {
		line := restored[i]
		if line == `###` && !suppressedLeadingSync {
			suppressedLeadingSync = true
			log.Debugf("gff3: %s: suppressing leading synthetic sync marker", path)
			continue
		}
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("InsertOne: writing output: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("InsertOne: writing output: %w", err)
		}
	}
	return bw.Flush()
}

// writeBackwardPass performs the first pass: it walks lines in reverse,
// maintains the open-reference set, and writes the result (still in
// reverse order) to a fresh temp file, whose path it returns.
func writeBackwardPass(lines []string) (string, error) {
	tmp, err := os.CreateTemp(``, `gff3-sync-*.tmp`)
	if err != nil {
		return ``, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	open := make(map[string]bool)

	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if isSyncLine(line) {
			continue
		}

		feature := isFeatureLine(line)
		if feature {
			updateOpenRefs(open, line)
		}

		if _, err := bw.WriteString(line); err != nil {
			tmp.Close()
			return ``, fmt.Errorf("writing temp file: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			tmp.Close()
			return ``, fmt.Errorf("writing temp file: %w", err)
		}

		if feature && len(open) == 0 {
			if _, err := bw.WriteString("###\n"); err != nil {
				tmp.Close()
				return ``, fmt.Errorf("writing temp file: %w", err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		tmp.Close()
		return ``, fmt.Errorf("flushing temp file: %w", err)
	}
	return tmpPath, tmp.Close()
}

// isSyncLine reports whether line is an existing "###" marker:
// exactly three '#' followed by nothing but whitespace.
func isSyncLine(line string) bool {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n == 3 && strings.TrimSpace(line[n:]) == ``
}

// isFeatureLine reports whether line looks like a tab-delimited
// 9-column feature row, as opposed to a directive, comment, blank
// line, or FASTA payload - none of which carry column-9 references.
func isFeatureLine(line string) bool {
	if line == `` || strings.HasPrefix(line, `#`) || strings.HasPrefix(line, `>`) {
		return false
	}
	return strings.Count(line, "\t") >= 8
}

// updateOpenRefs folds one feature line's column 9 into the
// open-reference set: every Parent/Derives_from value is added
// (something later in the backward walk is awaiting it), every ID
// value is removed (this line supplies it).
func updateOpenRefs(open map[string]bool, line string) {
	fields := strings.SplitN(line, "\t", 9)
	if len(fields) < 9 {
		return
	}
	attrs, err := ParseAttributes(fields[8])
	if err != nil {
		return
	}
	for _, id := range attrs.Get(`Parent`) {
		open[id] = true
	}
	for _, id := range attrs.Get(`Derives_from`) {
		open[id] = true
	}
	for _, id := range attrs.Get(`ID`) {
		delete(open, id)
	}
}

// readAllLines reads path line by line (LF or CRLF, terminator
// stripped), transparently gunzipping a .gz path the same way
// OpenFiles does.
func readAllLines(path string) ([]string, error) {
	ls, err := OpenFiles(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for {
		line, ok, err := ls.NextLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	return lines, nil
}

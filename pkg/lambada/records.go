package lambada

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode/utf8"
)

// Record is a single passage of the dataset.
type Record struct {
	Index int    `json:"index"` // 0-based line offset in the source file
	Text  string `json:"text"`
}

// ContextAndTarget splits the passage at its last space. The target keeps
// its leading space, which is how the last word is scored. Passages without
// a space have an empty context.
func (r Record) ContextAndTarget() (string, string) {
	i := strings.LastIndexByte(r.Text, ' ')
	if i < 0 {
		return "", r.Text
	}
	return r.Text[:i], r.Text[i:]
}

const maxLineSize = 16 << 20 // 16 MiB

// Generate lazily reads newline-delimited JSON records from the file at path.
//
// The file is opened when iteration starts and closed when it finishes, fails,
// or is abandoned by the caller. Ranging over the sequence again reopens the file.
// After an error is yielded the sequence ends.
func Generate(path string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Record{}, fmt.Errorf("%w: %w", ErrFilesystem, err))
			return
		}
		defer f.Close()

		for rec, err := range Decode(f) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// Decode lazily reads newline-delimited JSON records from r.
// Blank lines are skipped but still count towards the index of later records.
func Decode(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for idx := 0; scanner.Scan(); idx++ {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			rec, err := parseLine(idx, line)
			if !yield(rec, err) || err != nil {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Record{}, fmt.Errorf("%w: %w", ErrFilesystem, err))
		}
	}
}

func parseLine(idx int, line []byte) (Record, error) {
	// encoding/json would quietly replace invalid bytes with U+FFFD.
	if !utf8.Valid(line) {
		return Record{}, &ParseError{Index: idx, Err: ErrInvalidUTF8}
	}
	var row struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(line, &row); err != nil {
		return Record{}, &ParseError{Index: idx, Err: err}
	}
	if row.Text == nil {
		return Record{}, &ParseError{Index: idx, Err: ErrMissingText}
	}
	return Record{Index: idx, Text: *row.Text}, nil
}

// Package csvstore reads and writes the flat CSV tables the application keeps
// its data in. Every call opens, uses and closes the file; nothing is cached.
package csvstore

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrHeaderMismatch is returned when a file's header is not the expected field set.
var ErrHeaderMismatch = errors.New("header mismatch")

// Row is one data record with the line it started on.
type Row struct {
	Line   int
	Fields []string
}

// Table is a parsed CSV file. Rows keep their raw fields so a rewrite never
// loses a record the caller could not interpret.
type Table struct {
	Header []string
	Rows   []Row

	// Unparsed lists the lines the CSV tokenizer rejected. Those lines cannot be
	// reproduced, so callers must not rewrite a table that has any.
	Unparsed []int
}

// New returns an empty table with the given header.
func New(header []string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

// Index returns the position of column col, or -1.
func (t *Table) Index(col string) int {
	for i, h := range t.Header {
		if h == col {
			return i
		}
	}
	return -1
}

// Complete reports whether r has exactly one field per header column.
func (t *Table) Complete(r Row) bool {
	return len(r.Fields) == len(t.Header)
}

// Get returns column col of r, or "" when the row is short or the column is unknown.
func (t *Table) Get(r Row, col string) string {
	i := t.Index(col)
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Set replaces column col of r. It reports false if the row has no such field.
func (t *Table) Set(r *Row, col, value string) bool {
	i := t.Index(col)
	if i < 0 || i >= len(r.Fields) {
		return false
	}
	r.Fields[i] = value
	return true
}

// Record lays values out in header order. Missing columns become "".
func (t *Table) Record(values map[string]string) []string {
	rec := make([]string, len(t.Header))
	for i, h := range t.Header {
		rec[i] = values[h]
	}
	return rec
}

// Add appends a record built with Record.
func (t *Table) Add(values map[string]string) {
	t.Rows = append(t.Rows, Row{Fields: t.Record(values)})
}

// CheckHeader verifies that header holds exactly the columns in want, in any order.
func CheckHeader(header, want []string) error {
	if len(header) != len(want) {
		return fmt.Errorf("%w: got %v, want %v", ErrHeaderMismatch, header, want)
	}
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[h] = true
	}
	for _, w := range want {
		if !seen[w] {
			return fmt.Errorf("%w: got %v, want %v", ErrHeaderMismatch, header, want)
		}
	}
	return nil
}

// Read parses the file at path. A missing file returns an error matching
// os.ErrNotExist; an empty or blank file returns a table with no header.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if lead, _ := br.Peek(len(bom)); bytes.Equal(lead, bom) {
		br.Discard(len(bom))
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.Unparsed = append(t.Unparsed, pe.StartLine)
				continue
			}
			return nil, err
		}
		line, _ := r.FieldPos(0)
		t.Rows = append(t.Rows, Row{Line: line, Fields: rec})
	}
	return t, nil
}

// WriteAtomic replaces the file at path with t. The table is written to a
// temporary file in the same directory and renamed over the original.
func WriteAtomic(path string, t *Table) error {
	if len(t.Header) == 0 {
		return errors.New("write table: empty header")
	}
	if len(t.Unparsed) > 0 {
		return fmt.Errorf("write table: %d unparsed lines would be lost", len(t.Unparsed))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row.Fields); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Append adds records to the end of the file at path. A missing, empty or blank file
// is (re)written with header first; otherwise header must be the file's own header
// and records must already be laid out in that order.
func Append(path string, header []string, records ...[]string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	empty := info.Size() == 0
	if !empty {
		if empty, err = blank(f, info.Size()); err != nil {
			f.Close()
			return err
		}
		if empty {
			if err := f.Truncate(0); err != nil {
				f.Close()
				return err
			}
		}
	}

	w := csv.NewWriter(f)
	if empty {
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}
	} else {
		// A hand-edited file may lack the final newline.
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			f.Close()
			return err
		}
		if last[0] != '\n' {
			if _, err := f.Write([]byte{'\n'}); err != nil {
				f.Close()
				return err
			}
		}
	}

	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var bom = []byte("\ufeff")

// blank reports whether the first size bytes of f hold nothing but a byte
// order mark and line breaks, which Read treats as a file without a header.
func blank(f *os.File, size int64) (bool, error) {
	r := bufio.NewReader(io.NewSectionReader(f, 0, size))
	data, err := r.Peek(len(bom))
	if err != nil && err != io.EOF {
		return false, err
	}
	if bytes.Equal(data, bom) {
		r.Discard(len(bom))
	}
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if b != '\n' && b != '\r' {
			return false, nil
		}
	}
}

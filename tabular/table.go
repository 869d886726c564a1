// Package tabular holds exported database tables as rows of string cells and
// reads/writes them as CSV artifacts.
package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Ext is the file extension of every exported table artifact.
const Ext = ".csv"

// Table is one exported table. Rows never include the header.
type Table struct {
	// Identifier is the content identifier of the database the table came from.
	Identifier string
	// Name is the table name as declared in the database catalog.
	Name string
	// Origin is the original path of the database file.
	Origin string
	// Source is the artifact file name used in provenance (e.g. "<id>_users.csv").
	Source string

	Header []string
	Rows   [][]string
}

// ArtifactName returns "<identifier>_<table>.csv" with path separators removed
// from the table name.
func ArtifactName(identifier string, table string) string {
	return identifier + "_" + sanitizeName(table) + Ext
}

// ParseArtifactName splits an artifact base name back into identifier and table.
// Identifiers are hex strings, so the first underscore is the separator.
func ParseArtifactName(base string) (identifier string, table string, ok bool) {
	if !strings.HasSuffix(base, Ext) {
		return "", "", false
	}
	stem := strings.TrimSuffix(base, Ext)
	idx := strings.Index(stem, "_")
	if idx <= 0 || idx == len(stem)-1 {
		return "", "", false
	}
	return stem[:idx], stem[idx+1:], true
}

func sanitizeName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")
	return r.Replace(name)
}

// NumRows is the number of data rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Writer streams rows into a CSV artifact. The header is written on Create.
type Writer struct {
	path string
	f    *os.File
	w    *csv.Writer
	rows int
}

// Create truncates path and writes header as the first record.
func Create(path string, header []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	w := &Writer{path: path, f: f, w: csv.NewWriter(f)}
	if err := w.w.Write(header); err != nil {
		w.Abort()
		return nil, errors.Wrapf(err, "write header %s", path)
	}
	return w, nil
}

func (w *Writer) Write(row []string) error {
	if err := w.w.Write(row); err != nil {
		return errors.Wrapf(err, "write row %s", w.path)
	}
	w.rows++
	return nil
}

// Rows is the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

func (w *Writer) Path() string { return w.path }

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.w.Flush()
	flushErr := w.w.Error()
	closeErr := w.f.Close()
	if flushErr != nil {
		return errors.Wrapf(flushErr, "flush %s", w.path)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "close %s", w.path)
	}
	return nil
}

// Abort closes and removes a partially written artifact.
func (w *Writer) Abort() {
	_ = w.f.Close()
	_ = os.Remove(w.path)
}

// WriteCSV writes the header followed by every row. The file is truncated first.
func WriteCSV(path string, t *Table) error {
	w, err := Create(path, t.Header)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}

// ReadCSV loads an artifact. The first record is the header; an empty file
// yields a table with no header and no rows.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	base := filepath.Base(path)
	t := &Table{Source: base}
	if id, name, ok := ParseArtifactName(base); ok {
		t.Identifier = id
		t.Name = name
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return t, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read header %s", path)
	}
	t.Header = header

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

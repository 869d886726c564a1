// Package report renders pipeline logs and entity indexes into CSV documents.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"pii-harvester/entity"
)

var (
	DatabaseLogHeader = []string{"Original Filename", "Original Path", "Renamed Filename"}
	TableLogHeader    = []string{"CSV Filename", "Table Name", "Original Database Filename", "Original Database Path"}
	AddressHeader     = []string{"Location", "SourceFiles", "TotalOccurrences"}
	NameHeader        = []string{"Name", "Email", "Row/Column Info"}
	PhoneHeader       = []string{"Phone", "Name", "Messages", "Row/Column Info"}
	EmailHeader       = []string{"Email", "SourceFiles", "TotalOccurrences"}
)

// Write creates (or truncates) path and writes header plus rows. Parent
// directories are created as needed.
func Write(path string, header []string, rows [][]string) (err error) {
	if strings.TrimSpace(path) == "" {
		return errors.New("report path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create report dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create report %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close report %s", path)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrapf(err, "write report %s", path)
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "write report %s", path)
	}
	return nil
}

// AddressRows renders one row per address:
// Location, "<file>:\nColumn number: c, Row number: r\n..." blocks, total.
func AddressRows(ix *entity.Index, order entity.Order) [][]string {
	recs := ix.Ordered(order)
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{rec.Value, sourceFilesCell(rec), strconv.Itoa(rec.Total)})
	}
	return rows
}

// EmailRows uses the same shape as AddressRows.
func EmailRows(ix *entity.Index, order entity.Order) [][]string {
	return AddressRows(ix, order)
}

// NameRows renders Name, comma-joined emails, per-file row/column blocks.
func NameRows(ix *entity.Index, order entity.Order) [][]string {
	recs := ix.Ordered(order)
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			rec.Value,
			strings.Join(entity.SortedSet(rec.Emails), ", "),
			rowColumnCell(rec),
		})
	}
	return rows
}

// PhoneRows renders Phone, comma-joined names, blank-line separated messages
// and per-file row/column blocks.
func PhoneRows(ix *entity.Index, order entity.Order) [][]string {
	recs := ix.Ordered(order)
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			rec.Value,
			strings.Join(entity.SortedSet(rec.Names), ", "),
			strings.Join(entity.SortedSet(rec.Messages), "\n\n"),
			rowColumnCell(rec),
		})
	}
	return rows
}

func sourceFilesCell(rec *entity.Record) string {
	blocks := make([]string, 0, len(rec.Sources()))
	for _, src := range rec.Sources() {
		occ := rec.Occurrences(src)
		lines := make([]string, 0, len(occ))
		for _, o := range occ {
			lines = append(lines, fmt.Sprintf("Column number: %d, Row number: %d", o.Column, o.Row))
		}
		blocks = append(blocks, src+":\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func rowColumnCell(rec *entity.Record) string {
	blocks := make([]string, 0, len(rec.Sources()))
	for _, src := range rec.Sources() {
		occ := rec.Occurrences(src)
		lines := make([]string, 0, len(occ))
		for _, o := range occ {
			lines = append(lines, fmt.Sprintf("Column number: %d\nRow number: %d", o.Column, o.Row))
		}
		blocks = append(blocks, src+"\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// RunMetadataLayout matches the timestamp shape of the legacy run log.
const RunMetadataLayout = "2006-01-02 15:04:05.000000"

// RunMetadataLine formats "<label>,  <files>,  <timestamp>,  <seconds>\n".
func RunMetadataLine(label string, files int, at time.Time, elapsed time.Duration) string {
	return fmt.Sprintf("%s,  %d,  %s,  %s\n",
		label,
		files,
		at.Format(RunMetadataLayout),
		strconv.FormatFloat(elapsed.Seconds(), 'f', -1, 64),
	)
}

// AppendRunMetadata appends one run line to path, creating it if needed.
func AppendRunMetadata(path string, label string, files int, at time.Time, elapsed time.Duration) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open run log %s", path)
	}
	if _, err := f.WriteString(RunMetadataLine(label, files, at, elapsed)); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "append run log %s", path)
	}
	return f.Close()
}

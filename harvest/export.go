package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pii-harvester/tabular"
)

// SourceFile is one classified database file and the identifier its copy and
// artifacts are named after.
type SourceFile struct {
	Path       string
	Identifier string
}

// TableArtifact is one non-empty table written to disk.
type TableArtifact struct {
	Table string
	Path  string
	Rows  int
}

// Filename is the artifact base name used as provenance.
func (a TableArtifact) Filename() string { return filepath.Base(a.Path) }

// FileExport is the outcome of exporting one database file. CopyPath is set
// as soon as the copy succeeded, even if the database could not be decoded.
type FileExport struct {
	Source    SourceFile
	CopyPath  string
	SizeBytes int64
	Tables    int
	Artifacts []TableArtifact
	// TableErrors holds per-table failures marked ErrTableScan.
	TableErrors []error
	// Overwritten lists tables whose artifact was replaced by a later table
	// mapping to the same artifact name.
	Overwritten []string
}

func (fe *FileExport) OriginalFilename() string { return filepath.Base(fe.Source.Path) }

func (fe *FileExport) RenamedFilename() string {
	if fe.CopyPath == "" {
		return ""
	}
	return filepath.Base(fe.CopyPath)
}

// tableSource reads the catalog and rows of one opened database.
type tableSource interface {
	Tables(ctx context.Context) ([]string, error)
	// Scan calls fn once per row. header is the column list of the table.
	Scan(ctx context.Context, table string, fn func(header []string, row []string) error) error
	Close() error
}

type Exporter struct {
	DBOutBase  string
	CSVOutBase string
	HashHexLen int

	log  *zap.SugaredLogger
	open func(path string) (tableSource, error)
}

func NewExporter(dbOutBase string, csvOutBase string, hashHexLen int, log *zap.SugaredLogger) *Exporter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Exporter{
		DBOutBase:  dbOutBase,
		CSVOutBase: csvOutBase,
		HashHexLen: hashHexLen,
		log:        log,
		open:       openGormSource,
	}
}

// Source builds the SourceFile for path using the exporter's identifier length.
func (e *Exporter) Source(path string) SourceFile {
	return SourceFile{Path: path, Identifier: Identifier(path, e.HashHexLen)}
}

// ExportFile copies src into DBOutBase and writes one artifact per non-empty
// table into CSVOutBase. A non-nil error means the file as a whole failed
// (unreadable, undecodable or setup); per-table failures are reported in
// FileExport.TableErrors. A failure to write into CSVOutBase is marked
// ErrSetup and stops the file.
func (e *Exporter) ExportFile(ctx context.Context, src SourceFile) (*FileExport, error) {
	fe := &FileExport{Source: src}
	if err := ctx.Err(); err != nil {
		return fe, err
	}

	copyPath, n, err := CopyFileToDir(src.Path, e.DBOutBase, src.Identifier)
	if err != nil {
		return fe, err
	}
	fe.CopyPath = copyPath
	fe.SizeBytes = n
	e.log.Infow("copied database", "path", src.Path, "copy", copyPath, "size", humanize.Bytes(uint64(n)))

	db, err := e.open(copyPath)
	if err != nil {
		return fe, markf(err, ErrDecode, "open database %s", src.Path)
	}
	defer func() {
		if err := db.Close(); err != nil {
			e.log.Warnw("close database failed", "copy", copyPath, "error", err)
		}
	}()

	tables, err := db.Tables(ctx)
	if err != nil {
		return fe, markf(err, ErrDecode, "list tables %s", src.Path)
	}
	fe.Tables = len(tables)

	written := make(map[string]int, len(tables))
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return fe, errors.Wrapf(err, "export %s", src.Path)
		}
		art, err := e.exportTable(ctx, db, src, table)
		if IsFatal(err) {
			return fe, err
		}
		if err != nil {
			e.log.Warnw("table export failed", "path", src.Path, "table", table, "error", err)
			fe.TableErrors = append(fe.TableErrors, err)
			continue
		}
		if art.Rows == 0 {
			e.log.Warnw("table is empty, skipped", "path", src.Path, "table", table)
			continue
		}
		e.log.Debugw("table exported", "table", table, "artifact", art.Path, "rows", art.Rows)
		if i, ok := written[art.Path]; ok {
			prev := fe.Artifacts[i].Table
			e.log.Warnw("artifact name collision, earlier table overwritten",
				"path", src.Path, "artifact", art.Filename(), "table", table, "overwritten", prev)
			fe.Overwritten = append(fe.Overwritten, prev)
			fe.Artifacts[i] = art
			continue
		}
		written[art.Path] = len(fe.Artifacts)
		fe.Artifacts = append(fe.Artifacts, art)
	}
	return fe, nil
}

// exportTable streams one table into its artifact. The file is only created
// once the first row arrives, so empty tables leave nothing behind.
func (e *Exporter) exportTable(ctx context.Context, db tableSource, src SourceFile, table string) (TableArtifact, error) {
	path := filepath.Join(e.CSVOutBase, tabular.ArtifactName(src.Identifier, table))
	art := TableArtifact{Table: table, Path: path}

	var w *tabular.Writer
	err := db.Scan(ctx, table, func(header []string, row []string) error {
		if w == nil {
			var err error
			if w, err = tabular.Create(path, header); err != nil {
				return markf(err, ErrSetup, "create artifact %s", path)
			}
		}
		if err := w.Write(row); err != nil {
			return markf(err, ErrSetup, "write artifact %s", path)
		}
		return nil
	})
	if err != nil {
		if w != nil {
			w.Abort()
		}
		if IsFatal(err) {
			return art, err
		}
		return art, markf(err, ErrTableScan, "table %q in %s", table, src.Path)
	}
	if w == nil {
		return art, nil
	}
	art.Rows = w.Rows()
	if err := w.Close(); err != nil {
		return TableArtifact{Table: table, Path: path}, markf(err, ErrSetup, "close artifact %s", path)
	}
	return art, nil
}

type gormSource struct {
	db *gorm.DB
}

func openGormSource(path string) (tableSource, error) {
	db, err := OpenQueryDB(path)
	if err != nil {
		return nil, err
	}
	return &gormSource{db: db}, nil
}

func (s *gormSource) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.WithContext(ctx).Raw("SELECT name FROM sqlite_master WHERE type = 'table'").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *gormSource) Scan(ctx context.Context, table string, fn func(header []string, row []string) error) error {
	rows, err := s.db.WithContext(ctx).Raw("SELECT * FROM " + quoteIdent(table)).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = renderCell(v)
		}
		if err := fn(cols, rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *gormSource) Close() error { return closeDB(s.db) }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

const cellTimeLayout = "2006-01-02 15:04:05"

func renderCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(cellTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}

package harvest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"pii-harvester/entity"
	"pii-harvester/report"
	"pii-harvester/tabular"
)

// DefaultFormatLabel names the supported format in the run log.
const DefaultFormatLabel = "SQLite 3.x database"

// RunLogName is the run-metadata log kept in the database output directory.
const RunLogName = "report.txt"

type ReportPaths struct {
	Dir       string
	Databases string
	Tables    string
	Addresses string
	Names     string
	Phones    string
	// Optional.
	Emails  string
	Metrics string
}

type Orders struct {
	Addresses entity.Order
	Names     entity.Order
	Phones    entity.Order
}

type RunnerConfig struct {
	InputRoot  string
	DBOutBase  string
	CSVOutBase string
	Reports    ReportPaths
	Orders     Orders

	// Workers bounds how many files are processed at once. 1 is fully sequential.
	Workers     int
	FileTimeout time.Duration
	// Timeout bounds one whole run.
	Timeout    time.Duration
	HashHexLen int
	// LedgerPath "" defaults to <DBOutBase>/ledger.db; "-" disables the ledger.
	LedgerPath  string
	FormatLabel string
	Debug       bool
}

type Runner struct {
	cfg       RunnerConfig
	log       *zap.SugaredLogger
	exporter  *Exporter
	extractor *entity.Extractor
	ledger    *gorm.DB
	metrics   *Metrics
}

func (r *Runner) debugf(format string, args ...any) {
	if r == nil || !r.cfg.Debug {
		return
	}
	r.log.Debugf(format, args...)
}

func NewRunner(cfg RunnerConfig, log *zap.SugaredLogger) (*Runner, error) {
	if strings.TrimSpace(cfg.DBOutBase) == "" {
		return nil, errors.New("DBOutBase is required")
	}
	if strings.TrimSpace(cfg.CSVOutBase) == "" {
		return nil, errors.New("CSVOutBase is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.HashHexLen < 0 || cfg.HashHexLen > 40 {
		return nil, errors.Newf("HashHexLen must be between 0 and 40, got %d", cfg.HashHexLen)
	}
	if cfg.FileTimeout < 0 || cfg.Timeout < 0 {
		return nil, errors.New("timeouts must not be negative")
	}
	if strings.TrimSpace(cfg.FormatLabel) == "" {
		cfg.FormatLabel = DefaultFormatLabel
	}
	if cfg.Orders.Addresses == "" {
		cfg.Orders.Addresses = entity.OrderFirstSeen
	}
	if cfg.Orders.Names == "" {
		cfg.Orders.Names = entity.OrderOccurrences
	}
	if cfg.Orders.Phones == "" {
		cfg.Orders.Phones = entity.OrderFirstSeen
	}
	cfg.Reports = cfg.Reports.withDefaults()
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = filepath.Join(cfg.DBOutBase, "ledger.db")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	for _, dir := range []string{cfg.DBOutBase, cfg.CSVOutBase} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, markf(err, ErrSetup, "create output dir %s", dir)
		}
	}

	r := &Runner{
		cfg:       cfg,
		log:       log,
		exporter:  NewExporter(cfg.DBOutBase, cfg.CSVOutBase, cfg.HashHexLen, log),
		extractor: entity.NewExtractor(),
		metrics:   NewMetrics(),
	}
	if cfg.LedgerPath != "-" {
		db, err := OpenLedger(cfg.LedgerPath)
		if err != nil {
			return nil, markf(err, ErrSetup, "open ledger %s", cfg.LedgerPath)
		}
		r.ledger = db
	}
	return r, nil
}

func (p ReportPaths) withDefaults() ReportPaths {
	if strings.TrimSpace(p.Dir) == "" {
		p.Dir = "reports"
	}
	def := func(v *string, name string) {
		if strings.TrimSpace(*v) == "" {
			*v = filepath.Join(p.Dir, name)
		}
	}
	def(&p.Databases, "databases.csv")
	def(&p.Tables, "tables.csv")
	def(&p.Addresses, "addresses.csv")
	def(&p.Names, "names.csv")
	def(&p.Phones, "phones.csv")
	return p
}

func (r *Runner) Close() error {
	if r == nil || r.ledger == nil {
		return nil
	}
	err := closeDB(r.ledger)
	r.ledger = nil
	return err
}

func (r *Runner) Config() RunnerConfig { return r.cfg }

func (r *Runner) Metrics() *Metrics { return r.metrics }

// ExportResult is the outcome of stage 1 over one input root. RunID keys the
// ledger rows written for it.
type ExportResult struct {
	RunID   string
	Files   []string
	Exports []*FileExport
	Errors  []error
}

// Artifacts lists every artifact of the run in file order.
func (er *ExportResult) Artifacts() []TableArtifact {
	var out []TableArtifact
	for _, fe := range er.Exports {
		out = append(out, fe.Artifacts...)
	}
	return out
}

type RunResult struct {
	Started time.Time
	Elapsed time.Duration
	ExportResult
	Corpus *entity.Corpus
}

type fileResult struct {
	export *FileExport
	corpus *entity.Corpus
	errs   []error
}

// Export classifies InputRoot, copies every database and writes its table
// artifacts and the databases/tables logs.
func (r *Runner) Export(ctx context.Context) (*ExportResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, _, err := r.export(ctx, uuid.NewString(), false)
	if err != nil {
		return res, err
	}
	if err := r.writeExportReports(res); err != nil {
		return res, err
	}
	r.recordExports(res)
	return res, nil
}

// Extract scans artifacts in the given order and returns the merged corpus.
// Artifacts that cannot be read are reported and skipped.
func (r *Runner) Extract(ctx context.Context, artifacts []string) (*entity.Corpus, []error) {
	corpus := entity.NewCorpus()
	var errs []error
	for _, path := range artifacts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, errors.Wrap(err, "extract"))
			break
		}
		c, err := r.extractArtifact(path, "")
		if err != nil {
			r.log.Warnw("artifact skipped", "artifact", path, "error", err)
			r.metrics.observeError(err)
			errs = append(errs, err)
			continue
		}
		corpus.Merge(c)
	}
	r.metrics.observeCorpus(corpus)
	return corpus, errs
}

// ExtractDir scans every *.csv artifact in dir in name order and writes the
// entity reports.
func (r *Runner) ExtractDir(ctx context.Context, dir string) (*entity.Corpus, []error, error) {
	artifacts, err := ListArtifacts(dir)
	if err != nil {
		return nil, nil, err
	}
	corpus, errs := r.Extract(ctx, artifacts)
	if err := r.writeEntityReports(corpus); err != nil {
		return corpus, errs, err
	}
	return corpus, errs, nil
}

// ListArtifacts returns the *.csv files directly inside dir, sorted.
func ListArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, markf(err, ErrUnreadableFile, "list artifacts in %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), tabular.Ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// RunOnce runs the full pipeline: export, extraction, reports, run log,
// ledger and metrics.
func (r *Runner) RunOnce(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	runID := uuid.NewString()
	out := &RunResult{Started: start, ExportResult: ExportResult{RunID: runID}}
	r.debugf("run_once start: run=%s input=%q dbOut=%q csvOut=%q workers=%d timeout=%s fileTimeout=%s",
		out.RunID, r.cfg.InputRoot, r.cfg.DBOutBase, r.cfg.CSVOutBase, r.cfg.Workers, r.cfg.Timeout, r.cfg.FileTimeout)

	res, results, err := r.export(ctx, runID, true)
	if res != nil {
		out.ExportResult = *res
	}
	if err != nil {
		return out, err
	}

	corpus := entity.NewCorpus()
	for _, fr := range results {
		corpus.Merge(fr.corpus)
	}
	out.Corpus = corpus
	r.metrics.observeCorpus(corpus)

	if err := r.writeExportReports(res); err != nil {
		return out, err
	}
	if err := r.writeEntityReports(corpus); err != nil {
		return out, err
	}

	end := time.Now()
	out.Elapsed = end.Sub(start)
	runLog := filepath.Join(r.cfg.DBOutBase, RunLogName)
	if err := report.AppendRunMetadata(runLog, r.cfg.FormatLabel, len(res.Files), end, out.Elapsed); err != nil {
		return out, markf(err, ErrSetup, "run log")
	}

	r.recordExports(res)
	r.recordRun(out)
	r.metrics.LastRunSeconds.Set(out.Elapsed.Seconds())
	if r.cfg.Reports.Metrics != "" {
		if err := r.metrics.WriteTextfile(r.cfg.Reports.Metrics); err != nil {
			r.log.Warnw("write metrics failed", "path", r.cfg.Reports.Metrics, "error", err)
		}
	}

	r.log.Infow("run complete",
		"run", out.RunID,
		"files", len(res.Files),
		"artifacts", len(res.Artifacts()),
		"addresses", corpus.Addresses.Len(),
		"names", corpus.Names.Len(),
		"emails", corpus.Emails.Len(),
		"phones", corpus.Phones.Len(),
		"errors", len(res.Errors),
		"elapsed", out.Elapsed,
	)
	return out, nil
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// outputDirs are never descended into while classifying.
func (r *Runner) outputDirs() []string {
	dirs := []string{r.cfg.DBOutBase, r.cfg.CSVOutBase, r.cfg.Reports.Dir}
	if r.ledger != nil {
		dirs = append(dirs, filepath.Dir(r.cfg.LedgerPath))
	}
	return dirs
}

func (r *Runner) export(ctx context.Context, runID string, extract bool) (*ExportResult, []fileResult, error) {
	if strings.TrimSpace(r.cfg.InputRoot) == "" {
		return nil, nil, markf(errors.New("InputRoot is required"), ErrSetup, "classify")
	}
	info, err := os.Stat(r.cfg.InputRoot)
	if err != nil {
		return nil, nil, markf(err, ErrSetup, "input root %s", r.cfg.InputRoot)
	}
	if !info.IsDir() {
		return nil, nil, markf(errors.Newf("%s is not a directory", r.cfg.InputRoot), ErrSetup, "input root")
	}

	files, walkErrs := ClassifyTree(r.cfg.InputRoot, ClassifyOptions{Skip: r.outputDirs()})
	res := &ExportResult{RunID: runID, Files: files}
	for _, err := range walkErrs {
		r.log.Warnw("file skipped", "error", err)
		r.metrics.observeError(err)
	}
	res.Errors = append(res.Errors, walkErrs...)
	r.metrics.FilesClassified.Add(float64(len(files)))
	r.debugf("classified %d database files under %q", len(files), r.cfg.InputRoot)

	results, err := r.processAll(ctx, files, extract)
	for _, fr := range results {
		if fr.export != nil {
			res.Exports = append(res.Exports, fr.export)
		}
		res.Errors = append(res.Errors, fr.errs...)
	}
	if err != nil {
		return res, results, err
	}
	if err := ctx.Err(); err != nil {
		return res, results, errors.Wrap(err, "timeout exceeded")
	}
	return res, results, nil
}

// processAll runs files through at most Workers goroutines. Results keep the
// order of files so the reduction is independent of scheduling.
func (r *Runner) processAll(ctx context.Context, files []string, extract bool) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			fr := r.process(gctx, path, extract)
			results[i] = fr
			for _, err := range fr.errs {
				if IsFatal(err) {
					return err
				}
			}
			return nil
		})
	}
	return results, g.Wait()
}

func (r *Runner) process(ctx context.Context, path string, extract bool) fileResult {
	start := time.Now()
	if r.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.FileTimeout)
		defer cancel()
	}
	defer func() { r.metrics.FileSeconds.Observe(time.Since(start).Seconds()) }()

	r.debugf("process path=%q", path)
	fe, err := r.exporter.ExportFile(ctx, r.exporter.Source(path))
	fr := fileResult{export: fe}
	r.metrics.observeExport(fe)
	if err != nil {
		r.log.Warnw("database skipped", "path", path, "type", errorType(err), "error", err)
		r.metrics.observeError(err)
		fr.errs = append(fr.errs, err)
	}
	for _, terr := range fe.TableErrors {
		r.metrics.observeError(terr)
	}
	fr.errs = append(fr.errs, fe.TableErrors...)

	if extract {
		fr.corpus = entity.NewCorpus()
		for _, art := range fe.Artifacts {
			c, err := r.extractArtifact(art.Path, path)
			if err != nil {
				r.log.Warnw("artifact skipped", "artifact", art.Path, "error", err)
				r.metrics.observeError(err)
				fr.errs = append(fr.errs, err)
				continue
			}
			fr.corpus.Merge(c)
		}
	}
	r.log.Infow("processed database",
		"path", path,
		"identifier", fe.Source.Identifier,
		"tables", fe.Tables,
		"artifacts", len(fe.Artifacts),
		"elapsed", time.Since(start),
	)
	return fr
}

func (r *Runner) extractArtifact(path string, origin string) (*entity.Corpus, error) {
	t, err := tabular.ReadCSV(path)
	if err != nil {
		return nil, markf(err, ErrUnreadableFile, "read artifact")
	}
	t.Origin = origin
	return r.extractor.Extract(t), nil
}

func (r *Runner) writeExportReports(res *ExportResult) error {
	var dbRows, tableRows [][]string
	for _, fe := range res.Exports {
		if fe.CopyPath == "" {
			continue
		}
		dbRows = append(dbRows, []string{fe.OriginalFilename(), fe.Source.Path, fe.RenamedFilename()})
		for _, art := range fe.Artifacts {
			tableRows = append(tableRows, []string{art.Filename(), art.Table, fe.OriginalFilename(), fe.Source.Path})
		}
	}
	if err := report.Write(r.cfg.Reports.Databases, report.DatabaseLogHeader, dbRows); err != nil {
		return errors.Mark(err, ErrSetup)
	}
	if err := report.Write(r.cfg.Reports.Tables, report.TableLogHeader, tableRows); err != nil {
		return errors.Mark(err, ErrSetup)
	}
	return nil
}

func (r *Runner) writeEntityReports(c *entity.Corpus) error {
	type doc struct {
		path   string
		header []string
		rows   [][]string
	}
	docs := []doc{
		{r.cfg.Reports.Addresses, report.AddressHeader, report.AddressRows(c.Addresses, r.cfg.Orders.Addresses)},
		{r.cfg.Reports.Names, report.NameHeader, report.NameRows(c.Names, r.cfg.Orders.Names)},
		{r.cfg.Reports.Phones, report.PhoneHeader, report.PhoneRows(c.Phones, r.cfg.Orders.Phones)},
	}
	if r.cfg.Reports.Emails != "" {
		docs = append(docs, doc{r.cfg.Reports.Emails, report.EmailHeader, report.EmailRows(c.Emails, entity.OrderFirstSeen)})
	}
	for _, d := range docs {
		if err := report.Write(d.path, d.header, d.rows); err != nil {
			return errors.Mark(err, ErrSetup)
		}
		r.debugf("report written path=%q rows=%d", d.path, len(d.rows))
	}
	return nil
}

func (r *Runner) recordExports(res *ExportResult) {
	if r.ledger == nil || res == nil {
		return
	}
	now := time.Now().UTC()
	var dbs []DatabaseRecord
	var tables []TableExportRecord
	for _, fe := range res.Exports {
		rec := DatabaseRecord{
			RunID:            res.RunID,
			OriginalFilename: fe.OriginalFilename(),
			OriginalPath:     fe.Source.Path,
			Identifier:       fe.Source.Identifier,
			CopyPath:         fe.CopyPath,
			SizeBytes:        fe.SizeBytes,
			Tables:           len(fe.Artifacts),
			CopiedAt:         now,
		}
		if len(fe.TableErrors) > 0 {
			rec.LastError = fe.TableErrors[len(fe.TableErrors)-1].Error()
		}
		dbs = append(dbs, rec)
		for _, art := range fe.Artifacts {
			tables = append(tables, TableExportRecord{
				RunID:            res.RunID,
				ArtifactFilename: art.Filename(),
				SourceTable:      art.Table,
				OriginalFilename: fe.OriginalFilename(),
				OriginalPath:     fe.Source.Path,
				Identifier:       fe.Source.Identifier,
				Rows:             art.Rows,
				ExportedAt:       now,
			})
		}
	}
	err := r.ledger.Transaction(func(tx *gorm.DB) error {
		if len(dbs) > 0 {
			if err := tx.CreateInBatches(dbs, 200).Error; err != nil {
				return err
			}
		}
		if len(tables) > 0 {
			if err := tx.CreateInBatches(tables, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Warnw("ledger write failed", "run", res.RunID, "error", err)
	}
}

func (r *Runner) recordRun(out *RunResult) {
	if r.ledger == nil {
		return
	}
	rec := RunRecord{
		RunID:          out.RunID,
		FormatLabel:    r.cfg.FormatLabel,
		StartedAt:      out.Started.UTC(),
		ElapsedSeconds: out.Elapsed.Seconds(),
		Files:          len(out.Files),
		Databases:      len(out.Exports),
		Tables:         len(out.Artifacts()),
		Errors:         len(out.Errors),
	}
	if out.Corpus != nil {
		rec.Addresses = out.Corpus.Addresses.Len()
		rec.Names = out.Corpus.Names.Len()
		rec.Emails = out.Corpus.Emails.Len()
		rec.Phones = out.Corpus.Phones.Len()
	}
	if err := r.ledger.Create(&rec).Error; err != nil {
		r.log.Warnw("ledger write failed", "run", out.RunID, "error", err)
	}
}

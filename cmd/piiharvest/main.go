package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pii-harvester/harvest"
)

type options struct {
	configPath   string
	inputRoot    string
	dbOut        string
	csvOut       string
	reportDir    string
	emailsReport string
	metricsPath  string
	ledger       string
	workers      int
	hashHexLen   int
	fileTimeout  time.Duration
	timeout      time.Duration
	debug        bool
	jsonLogs     bool
	namesOrder   string

	once         bool
	pollInterval time.Duration
	csvDir       string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "piiharvest",
	Short: "Find embedded SQLite databases and report the personal data they hold",
	Long: `piiharvest walks a directory tree, copies every SQLite 3 database it finds
under a path-derived identifier, exports each non-empty table to CSV and scans
the cells for addresses, names, emails and phone numbers.

Examples:
  piiharvest run --input ./evidence --db-out ./out/db --csv-out ./out/csv
  piiharvest run --config harvest.yaml --workers 4
  piiharvest export --config harvest.toml
  piiharvest extract --csv-dir ./out/csv --report-dir ./reports`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Export every database and write all reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(ctx context.Context, r *harvest.Runner, log *zap.SugaredLogger) error {
			if opts.once {
				_, err := r.RunOnce(ctx)
				return err
			}
			for {
				if _, err := r.RunOnce(ctx); err != nil {
					if harvest.IsFatal(err) {
						return err
					}
					log.Errorw("run once error", "error", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(opts.pollInterval):
				}
			}
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy databases, export tables to CSV and write the database/table logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(ctx context.Context, r *harvest.Runner, log *zap.SugaredLogger) error {
			res, err := r.Export(ctx)
			if err != nil {
				return err
			}
			log.Infow("export complete", "run", res.RunID, "files", len(res.Files), "artifacts", len(res.Artifacts()), "errors", len(res.Errors))
			return nil
		})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Scan an existing directory of CSV artifacts and write the entity reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(ctx context.Context, r *harvest.Runner, log *zap.SugaredLogger) error {
			dir := opts.csvDir
			if dir == "" {
				dir = r.Config().CSVOutBase
			}
			corpus, errs, err := r.ExtractDir(ctx, dir)
			if err != nil {
				return err
			}
			log.Infow("extract complete",
				"dir", dir,
				"addresses", corpus.Addresses.Len(),
				"names", corpus.Names.Len(),
				"emails", corpus.Emails.Len(),
				"phones", corpus.Phones.Len(),
				"errors", len(errs),
			)
			return nil
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML or TOML config file path.")
	pf.StringVar(&opts.inputRoot, "input", "", "Root directory to search for databases.")
	pf.StringVar(&opts.dbOut, "db-out", "", "Directory receiving database copies and the run log.")
	pf.StringVar(&opts.csvOut, "csv-out", "", "Directory receiving table CSV artifacts.")
	pf.StringVar(&opts.reportDir, "report-dir", "", "Directory for reports without an explicit path.")
	pf.StringVar(&opts.emailsReport, "emails-report", "", "Optional email report path.")
	pf.StringVar(&opts.metricsPath, "metrics", "", "Optional Prometheus textfile path.")
	pf.StringVar(&opts.ledger, "ledger", "", "Run ledger path ('-' disables).")
	pf.IntVar(&opts.workers, "workers", 1, "Databases processed concurrently.")
	pf.IntVar(&opts.hashHexLen, "hash-hex-len", 0, "Identifier hex length (0 keeps all 40).")
	pf.DurationVar(&opts.fileTimeout, "file-timeout", 0, "Deadline for one database (e.g. 30s).")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Overall timeout for one run (e.g. 10m).")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logs.")
	pf.BoolVar(&opts.jsonLogs, "json-logs", false, "Emit JSON logs.")
	pf.StringVar(&opts.namesOrder, "names-order", "", "Names report order: occurrences or first_seen.")

	runCmd.Flags().BoolVar(&opts.once, "once", true, "Run once and exit.")
	runCmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", time.Minute, "Interval between runs with --once=false.")
	extractCmd.Flags().StringVar(&opts.csvDir, "csv-dir", "", "Artifact directory to scan (defaults to --csv-out).")

	rootCmd.AddCommand(runCmd, exportCmd, extractCmd)
}

// loadConfig reads the optional config file and applies explicitly set flags
// on top of it.
func loadConfig(cmd *cobra.Command) (*harvest.FileConfig, error) {
	fileCfg := &harvest.FileConfig{}
	if opts.configPath != "" {
		cfg, err := harvest.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		fileCfg = cfg
	}

	changed := cmd.Flags().Changed
	if changed("input") {
		fileCfg.InputRoot = opts.inputRoot
	}
	if changed("db-out") {
		fileCfg.DBOutBase = opts.dbOut
	}
	if changed("csv-out") {
		fileCfg.CSVOutBase = opts.csvOut
	}
	if changed("report-dir") {
		fileCfg.Reports.Dir = opts.reportDir
	}
	if changed("emails-report") {
		fileCfg.Reports.Emails = opts.emailsReport
	}
	if changed("metrics") {
		fileCfg.Reports.Metrics = opts.metricsPath
	}
	if changed("ledger") {
		fileCfg.Ledger = opts.ledger
	}
	if changed("workers") {
		fileCfg.Workers = opts.workers
	}
	if changed("hash-hex-len") {
		fileCfg.HashHexLen = opts.hashHexLen
	}
	if changed("file-timeout") {
		fileCfg.FileTimeout = harvest.Duration(opts.fileTimeout)
	}
	if changed("timeout") {
		fileCfg.Timeout = harvest.Duration(opts.timeout)
	}
	if changed("debug") {
		fileCfg.Debug = opts.debug
	}
	if changed("json-logs") {
		fileCfg.JSONLogs = opts.jsonLogs
	}
	if changed("names-order") {
		if err := fileCfg.Order.Names.UnmarshalText([]byte(opts.namesOrder)); err != nil {
			return nil, err
		}
	}
	return fileCfg, nil
}

func withRunner(cmd *cobra.Command, fn func(context.Context, *harvest.Runner, *zap.SugaredLogger) error) error {
	fileCfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := harvest.NewLogger(fileCfg.Debug, fileCfg.JSONLogs)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	runner, err := harvest.NewRunner(fileCfg.RunnerConfig(), log)
	if err != nil {
		return fmt.Errorf("init runner: %w", err)
	}
	defer runner.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, runner, log)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package harvest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-harvester/entity"
)

func TestLoadConfig_YAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "harvest.yaml")
	writeFile(t, p, []byte(`
input_root: /evidence
db_out_base: /out/db
csv_out_base: /out/csv
reports:
  dir: /out/reports
  names: /out/reports/people.csv
  emails: /out/reports/emails.csv
  metrics: /out/harvest.prom
order:
  names: First_Seen
  phones: occurrences
workers: 4
file_timeout: 45s
timeout: 10m
hash_hex_len: 16
ledger: "-"
debug: true
json_logs: true
`))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "/evidence", cfg.InputRoot)
	assert.Equal(t, "/out/reports/people.csv", cfg.Reports.Names)
	assert.Equal(t, entity.OrderFirstSeen, cfg.Order.Names)
	assert.Equal(t, entity.OrderOccurrences, cfg.Order.Phones)
	assert.Equal(t, entity.Order(""), cfg.Order.Addresses)
	assert.Equal(t, 45*time.Second, cfg.FileTimeout.Std())
	assert.True(t, cfg.JSONLogs)

	rc := cfg.RunnerConfig()
	assert.Equal(t, 4, rc.Workers)
	assert.Equal(t, 10*time.Minute, rc.Timeout)
	assert.Equal(t, 16, rc.HashHexLen)
	assert.Equal(t, "-", rc.LedgerPath)
	assert.Equal(t, "/out/harvest.prom", rc.Reports.Metrics)
	assert.True(t, rc.Debug)
}

func TestLoadConfig_TOML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "harvest.toml")
	writeFile(t, p, []byte(`
input_root = "/evidence"
db_out_base = "/out/db"
csv_out_base = "/out/csv"
workers = 2
timeout = "90s"

[reports]
dir = "/out/reports"

[order]
addresses = "occurrences"
`))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "/out/csv", cfg.CSVOutBase)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 90*time.Second, cfg.Timeout.Std())
	assert.Equal(t, "/out/reports", cfg.Reports.Dir)
	assert.Equal(t, entity.OrderOccurrences, cfg.Order.Addresses)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, bad, []byte("timeout: soon\n"))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	badOrder := filepath.Join(t.TempDir(), "order.toml")
	writeFile(t, badOrder, []byte("[order]\nnames = \"alphabetical\"\n"))
	_, err = LoadConfig(badOrder)
	assert.Error(t, err)
}

func TestNewRunner_Validation(t *testing.T) {
	tmp := t.TempDir()
	_, err := NewRunner(RunnerConfig{CSVOutBase: tmp}, nil)
	assert.Error(t, err)
	_, err = NewRunner(RunnerConfig{DBOutBase: tmp}, nil)
	assert.Error(t, err)
	_, err = NewRunner(RunnerConfig{DBOutBase: tmp, CSVOutBase: tmp, HashHexLen: 41}, nil)
	assert.Error(t, err)
	_, err = NewRunner(RunnerConfig{DBOutBase: tmp, CSVOutBase: tmp, Timeout: -time.Second}, nil)
	assert.Error(t, err)

	blocker := filepath.Join(tmp, "file")
	writeFile(t, blocker, []byte("x"))
	_, err = NewRunner(RunnerConfig{DBOutBase: filepath.Join(blocker, "db"), CSVOutBase: tmp}, nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestNewRunner_Defaults(t *testing.T) {
	tmp := t.TempDir()
	r, err := NewRunner(RunnerConfig{
		DBOutBase:  filepath.Join(tmp, "db"),
		CSVOutBase: filepath.Join(tmp, "csv"),
		Reports:    ReportPaths{Dir: filepath.Join(tmp, "reports")},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	cfg := r.Config()
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, DefaultFormatLabel, cfg.FormatLabel)
	assert.Equal(t, entity.OrderFirstSeen, cfg.Orders.Addresses)
	assert.Equal(t, entity.OrderOccurrences, cfg.Orders.Names)
	assert.Equal(t, entity.OrderFirstSeen, cfg.Orders.Phones)
	assert.Equal(t, filepath.Join(tmp, "reports", "names.csv"), cfg.Reports.Names)
	assert.Empty(t, cfg.Reports.Emails)
	assert.Equal(t, filepath.Join(tmp, "db", "ledger.db"), cfg.LedgerPath)
	assert.DirExists(t, filepath.Join(tmp, "csv"))
	assert.FileExists(t, cfg.LedgerPath)
}

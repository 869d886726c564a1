package harvest

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"pii-harvester/entity"
)

// Duration decodes "30s", "2m" style strings from YAML and TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ReportsConfig holds report destinations. Empty emails/metrics disable those
// outputs; the others fall back to <dir>/<name>.csv.
type ReportsConfig struct {
	Dir       string `yaml:"dir" toml:"dir"`
	Databases string `yaml:"databases" toml:"databases"`
	Tables    string `yaml:"tables" toml:"tables"`
	Addresses string `yaml:"addresses" toml:"addresses"`
	Names     string `yaml:"names" toml:"names"`
	Phones    string `yaml:"phones" toml:"phones"`
	Emails    string `yaml:"emails" toml:"emails"`
	Metrics   string `yaml:"metrics" toml:"metrics"`
}

type OrderConfig struct {
	Addresses entity.Order `yaml:"addresses" toml:"addresses"`
	Names     entity.Order `yaml:"names" toml:"names"`
	Phones    entity.Order `yaml:"phones" toml:"phones"`
}

type FileConfig struct {
	InputRoot  string `yaml:"input_root" toml:"input_root"`
	DBOutBase  string `yaml:"db_out_base" toml:"db_out_base"`
	CSVOutBase string `yaml:"csv_out_base" toml:"csv_out_base"`

	Reports ReportsConfig `yaml:"reports" toml:"reports"`
	Order   OrderConfig   `yaml:"order" toml:"order"`

	Workers     int      `yaml:"workers" toml:"workers"`
	FileTimeout Duration `yaml:"file_timeout" toml:"file_timeout"`
	Timeout     Duration `yaml:"timeout" toml:"timeout"`
	HashHexLen  int      `yaml:"hash_hex_len" toml:"hash_hex_len"`

	// Ledger is the run ledger path. Empty means <db_out_base>/ledger.db,
	// "-" disables it.
	Ledger      string `yaml:"ledger" toml:"ledger"`
	FormatLabel string `yaml:"format_label" toml:"format_label"`

	Debug    bool `yaml:"debug" toml:"debug"`
	JSONLogs bool `yaml:"json_logs" toml:"json_logs"`
}

// LoadConfig reads a YAML file, or TOML when the extension is .toml.
func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var cfg FileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return nil, errors.Wrapf(err, "decode toml config %s", path)
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decode yaml config %s", path)
	}
	return &cfg, nil
}

// RunnerConfig converts file values into runner settings. Defaults are applied
// by NewRunner.
func (c *FileConfig) RunnerConfig() RunnerConfig {
	return RunnerConfig{
		InputRoot:  c.InputRoot,
		DBOutBase:  c.DBOutBase,
		CSVOutBase: c.CSVOutBase,
		Reports: ReportPaths{
			Dir:       c.Reports.Dir,
			Databases: c.Reports.Databases,
			Tables:    c.Reports.Tables,
			Addresses: c.Reports.Addresses,
			Names:     c.Reports.Names,
			Phones:    c.Reports.Phones,
			Emails:    c.Reports.Emails,
			Metrics:   c.Reports.Metrics,
		},
		Orders: Orders{
			Addresses: c.Order.Addresses,
			Names:     c.Order.Names,
			Phones:    c.Order.Phones,
		},
		Workers:     c.Workers,
		FileTimeout: c.FileTimeout.Std(),
		Timeout:     c.Timeout.Std(),
		HashHexLen:  c.HashHexLen,
		LedgerPath:  c.Ledger,
		FormatLabel: c.FormatLabel,
		Debug:       c.Debug,
	}
}

package harvest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveExport(t *testing.T) {
	m := NewMetrics()
	m.observeExport(&FileExport{
		CopyPath:    "/out/db/abc",
		Tables:      4,
		Artifacts:   []TableArtifact{{Table: "a"}, {Table: "b"}},
		TableErrors: []error{errors.New("boom")},
	})
	m.observeExport(&FileExport{})
	m.observeExport(nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DatabasesCopied))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TablesExported.WithLabelValues("exported")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TablesExported.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TablesExported.WithLabelValues("empty")))
}

func TestMetrics_ErrorTypes(t *testing.T) {
	m := NewMetrics()
	m.observeError(markf(errors.New("x"), ErrUnreadableFile, "walk"))
	m.observeError(markf(errors.New("x"), ErrTableScan, "table"))
	m.observeError(errors.Wrap(context.DeadlineExceeded, "export"))
	m.observeError(nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Errors.WithLabelValues("unreadable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Errors.WithLabelValues("table")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Errors.WithLabelValues("timeout")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.Errors))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.FilesClassified.Add(3)
	path := filepath.Join(t.TempDir(), "harvest.prom")
	require.NoError(t, m.WriteTextfile(path))
	assert.Contains(t, readFile(t, path), "piiharvest_files_classified_total 3")
}

func TestNewLogger(t *testing.T) {
	for _, jsonOut := range []bool{false, true} {
		log, err := NewLogger(true, jsonOut)
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.True(t, log.Desugar().Core().Enabled(-1), "debug level enabled")
	}
}

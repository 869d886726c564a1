package harvest

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Recoverable failures. They are logged and collected; the run goes on.
var (
	// ErrUnreadableFile marks a file or directory that could not be opened or
	// read, including files that vanished mid-walk.
	ErrUnreadableFile = errors.New("unreadable file")
	// ErrDecode marks a classified file that could not be opened or read as a
	// database.
	ErrDecode = errors.New("database decode failure")
	// ErrTableScan marks a single table that could not be read or exported.
	ErrTableScan = errors.New("table scan failure")
)

// ErrSetup marks resource setup failures (output directories, report
// destinations, ledger). These abort the run.
var ErrSetup = errors.New("setup failure")

// IsFatal reports whether err must terminate the pipeline.
func IsFatal(err error) bool {
	return err != nil && errors.Is(err, ErrSetup)
}

func markf(err error, mark error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), mark)
}

// errorType is a short label for logs and metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrSetup):
		return "setup"
	case errors.Is(err, ErrUnreadableFile):
		return "unreadable"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrTableScan):
		return "table"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "other"
	}
}

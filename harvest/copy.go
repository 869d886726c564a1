package harvest

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// CopyFileToDir copies srcPath to dstDir/name, replacing any existing file,
// and returns the destination path and number of bytes copied. The source is
// only ever read.
func CopyFileToDir(srcPath string, dstDir string, name string) (string, int64, error) {
	if strings.TrimSpace(dstDir) == "" {
		return "", 0, errors.New("dstDir is empty")
	}
	if strings.TrimSpace(name) == "" {
		return "", 0, errors.New("destination name is empty")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", 0, markf(err, ErrSetup, "create %s", dstDir)
	}
	dstPath := filepath.Join(dstDir, name)

	in, err := os.Open(srcPath)
	if err != nil {
		return "", 0, markf(err, ErrUnreadableFile, "open %s", srcPath)
	}
	defer in.Close()

	// The final name only ever holds a complete copy.
	tmp, err := os.CreateTemp(dstDir, "."+name+".*")
	if err != nil {
		return "", 0, markf(err, ErrSetup, "create temp in %s", dstDir)
	}
	tmpPath := tmp.Name()

	n, copyErr := io.Copy(tmp, in)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return "", 0, markf(copyErr, ErrUnreadableFile, "copy %s", srcPath)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", 0, errors.Wrapf(closeErr, "close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, errors.Wrapf(err, "rename %s", dstPath)
	}
	return dstPath, n, nil
}

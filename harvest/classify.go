package harvest

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// SQLiteMagic is the 16-byte header every SQLite 3 database starts with.
var SQLiteMagic = []byte("SQLite format 3\x00")

// IsSQLiteFile reports whether the first 16 bytes of path equal SQLiteMagic.
// Files shorter than the signature are not databases.
func IsSQLiteFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, markf(err, ErrUnreadableFile, "open %s", path)
	}
	defer f.Close()
	return hasSignature(f)
}

func hasSignature(r io.Reader) (bool, error) {
	head := make([]byte, len(SQLiteMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, markf(err, ErrUnreadableFile, "read header")
	}
	return bytes.Equal(head, SQLiteMagic), nil
}

type ClassifyOptions struct {
	// Skip lists directories that are never descended into (typically the
	// run's own output directories).
	Skip []string
}

// ClassifyTree walks root and returns every regular file carrying the SQLite
// signature, sorted. A symlinked root is followed; found paths stay under root
// as given. Unreadable entries are returned as errors marked
// ErrUnreadableFile; they never stop the walk.
func ClassifyTree(root string, opts ClassifyOptions) ([]string, []error) {
	walkRoot, ok := resolvePath(root)
	if !ok {
		walkRoot = root
	}

	skip := make(map[string]struct{}, len(opts.Skip))
	for _, s := range opts.Skip {
		if s == "" {
			continue
		}
		if abs, ok := resolvePath(s); ok {
			skip[abs] = struct{}{}
		}
	}

	var found []string
	var errs []error
	walkErr := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, markf(err, ErrUnreadableFile, "walk %s", underRoot(root, walkRoot, p)))
			if d != nil && d.IsDir() && p != walkRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, ok := skip[p]; ok && p != walkRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ok, err := IsSQLiteFile(p)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if ok {
			found = append(found, underRoot(root, walkRoot, p))
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, markf(walkErr, ErrUnreadableFile, "walk %s", root))
	}
	sort.Strings(found)
	return found, errs
}

// resolvePath returns the absolute, symlink-free form of p. Paths that do not
// exist yet fall back to their absolute form.
func resolvePath(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, true
	}
	return abs, true
}

// underRoot maps p, found below walkRoot, back under the root the caller gave.
func underRoot(root, walkRoot, p string) string {
	if walkRoot == root {
		return p
	}
	rel, err := filepath.Rel(walkRoot, p)
	if err != nil {
		return p
	}
	return filepath.Join(root, rel)
}

package harvest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeSQLiteDB creates a database at path by running stmts in order.
func makeSQLiteDB(t *testing.T, path string, stmts ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	db, err := OpenQueryDB(path)
	require.NoError(t, err)
	for _, s := range stmts {
		require.NoError(t, db.Exec(s).Error, s)
	}
	require.NoError(t, closeDB(db))
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

var customersDB = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT, contact TEXT, address TEXT)`,
	`INSERT INTO customers (id, name, contact, address) VALUES
		(1, 'John Smith', 'john@x.com', '123 Main Street, Springfield, IL 62704'),
		(2, 'Jane Doe', 'Call 555-123-4567 now', NULL)`,
	`CREATE TABLE empty_audit (id INTEGER, note TEXT)`,
}

var ordersDB = []string{
	`CREATE TABLE orders (id INTEGER, buyer TEXT, amount REAL)`,
	`INSERT INTO orders (id, buyer, amount) VALUES (7, 'Product Alpha for John Smith', 12.5)`,
}

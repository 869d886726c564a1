package harvest

import (
	"crypto/sha1"
	"encoding/hex"
)

// Identifier derives the rename key of a classified database from its path
// string. Same path, same identifier. The file bytes are not hashed, so two
// byte-identical files at different paths get different identifiers and a
// moved file gets a new one.
//
// hexLen truncates the hex digest; values <= 0 or past the digest length keep
// all 40 characters.
func Identifier(path string, hexLen int) string {
	sum := sha1.Sum([]byte(path))
	full := hex.EncodeToString(sum[:])
	if hexLen <= 0 || hexLen >= len(full) {
		return full
	}
	return full[:hexLen]
}

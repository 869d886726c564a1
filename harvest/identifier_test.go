package harvest

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier_HashesPathString(t *testing.T) {
	sum := sha1.Sum([]byte("/evidence/phone/contacts.db"))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, Identifier("/evidence/phone/contacts.db", 0))
	assert.Equal(t, Identifier("/evidence/phone/contacts.db", 0), Identifier("/evidence/phone/contacts.db", 0))
	assert.NotEqual(t, Identifier("/evidence/a.db", 0), Identifier("/evidence/b.db", 0))
	assert.Len(t, Identifier("x", 0), 40)
}

func TestIdentifier_Truncation(t *testing.T) {
	full := Identifier("x", 0)
	assert.Equal(t, full[:12], Identifier("x", 12))
	assert.Equal(t, full, Identifier("x", 40))
	assert.Equal(t, full, Identifier("x", 99))
	assert.Equal(t, full, Identifier("x", -1))
}

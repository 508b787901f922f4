package verification

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for national id hashing. The input space of national id
// numbers is small, so a fast hash would be trivially brute-forced.
const (
	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
	argonKeyLen  = 32
)

// NationalIDHasher derives a deterministic one-way hash of a national id number.
type NationalIDHasher interface {
	Hash(raw string) string
}

// Argon2Hasher hashes national ids with argon2id keyed by a secret pepper.
type Argon2Hasher struct {
	pepper []byte
}

func NewArgon2Hasher(pepper string) *Argon2Hasher {
	return &Argon2Hasher{pepper: []byte(pepper)}
}

// Hash normalises raw (formatting separators and case are ignored) and returns
// the hex digest. An input with no digits or letters hashes to "".
func (h *Argon2Hasher) Hash(raw string) string {
	norm := normalizeNationalID(raw)
	if norm == "" {
		return ""
	}
	sum := argon2.IDKey([]byte(norm), h.pepper, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(sum)
}

func normalizeNationalID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

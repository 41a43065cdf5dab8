package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes a stable identity for a headline. Case is folded and
// whitespace runs collapse to single spaces before hashing, so cosmetic
// variations of the same headline map to the same fingerprint. Collisions are
// treated as duplicates, not distinct stories.
func Fingerprint(headline string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(headline)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

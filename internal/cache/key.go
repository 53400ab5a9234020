package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"etfcli/pkg/contracts/domain"
)

// Key derives the cache key for a ticker and field set. The field set is
// normalized first so requests for the same fields in any order share one
// entry. Format: TICKER:<12 hex chars of sha256 over the field list>.
func Key(ticker string, fields []domain.Field) string {
	normalized := domain.NormalizeFieldSet(fields)

	names := make([]string, len(normalized))
	for i, f := range normalized {
		names[i] = string(f)
	}

	sum := sha256.Sum256([]byte(strings.Join(names, ",")))
	return strings.ToUpper(ticker) + ":" + hex.EncodeToString(sum[:])[:12]
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Key derives a cache key from normalized query text and parameters.
//
// The query text is trimmed, lowercased, and whitespace-collapsed before
// hashing; parameters are serialized with sorted keys. Identical requests
// therefore map to identical keys regardless of formatting or parameter
// insertion order.
func Key(query string, params map[string]any) string {
	queryDigest := digest(NormalizeQuery(query))

	if len(params) == 0 {
		return queryDigest
	}

	return queryDigest + ":" + digest(serializeParams(params))
}

// NormalizeQuery trims, lowercases, and collapses internal whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
}

func serializeParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}

		fmt.Fprintf(&sb, "%s=%v", k, params[k])
	}

	return sb.String()
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))

	return hex.EncodeToString(sum[:])
}

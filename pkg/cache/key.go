package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// GenerateKey builds a deterministic cache key from an endpoint and its
// parameters. Parameter order never matters: keys and the values under each
// key are sorted before hashing, so any two parameter sets with the same
// key/value pairs produce the same cache key.
//
// Format: <last path segment>_<sha256 hex, 16 chars>, e.g. "orders_9f2b4c...".
// The segment prefix keeps keys readable in logs and Redis listings.
func GenerateKey(endpoint string, params map[string][]string) string {
	var b strings.Builder
	b.WriteString(endpoint)

	if len(params) > 0 {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), params[name]...)
			sort.Strings(values)
			for _, v := range values {
				b.WriteByte('|')
				b.WriteString(name)
				b.WriteByte('=')
				b.WriteString(v)
			}
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s_%s", lastSegment(endpoint), hex.EncodeToString(sum[:])[:16])
}

// keyForPayload hashes a namespace plus an opaque serialized payload. Used
// by the memoizing wrapper, where arguments are serialized by the caller.
func keyForPayload(namespace string, payload []byte) string {
	sum := sha256.Sum256(append([]byte(namespace+"|"), payload...))
	return fmt.Sprintf("%s_%s", lastSegment(namespace), hex.EncodeToString(sum[:])[:16])
}

// lastSegment returns the final non-empty path segment of endpoint, or
// "root" for bare or slash-only endpoints.
func lastSegment(endpoint string) string {
	trimmed := strings.Trim(endpoint, "/")
	if trimmed == "" {
		return "root"
	}
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

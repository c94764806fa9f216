package cache

import "time"

// Entry is a single cached value with its expiration time. Entries are
// immutable once created; Set replaces them wholesale.
type Entry struct {
	// Value is the cached payload. May be nil (a cached JSON null).
	Value any `json:"value"`

	// ExpiresAt is when the entry becomes stale.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.ExpiresAt)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Package cache stores model responses by request hash so repeated runs do
// not pay for the same round-trip twice.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is the stored envelope. Times are unix seconds and are fixed at
// write time, so later TTL changes do not affect existing entries.
type Entry struct {
	CreatedAt int64           `json:"created_at"`
	ExpiresAt int64           `json:"expires_at"`
	Data      json.RawMessage `json:"data"`
}

// Expired reports whether the entry is no longer valid at now.
func (e Entry) Expired(now time.Time) bool {
	return now.Unix() >= e.ExpiresAt
}

// Store is a TTL key/value store partitioned into buckets.
type Store interface {
	Get(ctx context.Context, bucket, key string) (Entry, bool)
	Set(ctx context.Context, bucket, key string, data []byte) error
}

func newEntry(now time.Time, ttl time.Duration, data []byte) Entry {
	return Entry{
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Data:      json.RawMessage(data),
	}
}

// Package jobstore holds short-lived job state keyed by string with per-entry expiry.
package jobstore

import (
	"context"
	"time"
)

// Store is a key/value store whose entries expire after a TTL.
// Expired entries are never returned.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the counter at key and returns the new value.
	// A missing or expired counter starts at 1 and expires after ttl; later
	// increments keep the original expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// DefaultTTL applies when Set is called with a non-positive ttl.
const DefaultTTL = time.Hour

// Key namespaces.
const (
	StatusPrefix   = "status:"
	ResultPrefix   = "result:"
	OTPPrefix      = "otp:"
	OTPTriesPrefix = "otp-tries:"
)

// StatusKey returns the key holding a job's status record.
func StatusKey(id string) string { return StatusPrefix + id }

// ResultKey returns the key holding a job's report.
func ResultKey(id string) string { return ResultPrefix + id }

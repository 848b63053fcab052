package jobstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return s.Set(ctx, key, data, ttl)
}

// GetJSON loads key into v. It reports false when the key is absent or expired.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

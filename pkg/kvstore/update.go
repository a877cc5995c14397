package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RetryConfig bounds the optimistic-update loop. The zero value is not
// usable; callers take it from configuration.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetry() RetryConfig {
	return RetryConfig{Attempts: 3, Backoff: 25 * time.Millisecond}
}

// Update is the shared read-modify-write primitive: read the JSON record
// at key with its version, apply fn, and write back conditionally on the
// version being unchanged. On a version mismatch the whole cycle reruns,
// up to retry.Attempts times with retry.Backoff between attempts; when
// the budget is exhausted it returns ErrConflict.
//
// fn receives the decoded record, with found=false and a zero value when
// the key is absent. An error from fn stops the loop immediately and is
// returned as is.
func Update[T any](ctx context.Context, s Store, key string, retry RetryConfig, fn func(v *T, found bool) error) error {
	if retry.Attempts <= 0 {
		return fmt.Errorf("kvstore: non-positive retry attempts %d", retry.Attempts)
	}

	for attempt := 0; attempt < retry.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retry.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var (
			v       T
			version int64
			found   bool
		)

		rec, err := s.Get(ctx, key)
		switch {
		case err == nil:
			if err := json.Unmarshal(rec.Value, &v); err != nil {
				return fmt.Errorf("decode record %s: %w", key, err)
			}
			version = rec.Version
			found = true
		case errors.Is(err, ErrNotFound):
			// version 0: the conditional write requires the key to
			// still be absent.
		default:
			return err
		}

		if err := fn(&v, found); err != nil {
			return err
		}

		data, err := json.Marshal(&v)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", key, err)
		}

		err = s.CompareAndSet(ctx, key, data, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionMismatch) {
			return err
		}
	}

	return ErrConflict
}

// GetJSON reads and decodes the record at key.
func GetJSON[T any](ctx context.Context, s Store, key string, v *T) (int64, error) {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}

	if err := json.Unmarshal(rec.Value, v); err != nil {
		return 0, fmt.Errorf("decode record %s: %w", key, err)
	}

	return rec.Version, nil
}

// SetJSON encodes v and writes it unconditionally.
func SetJSON[T any](ctx context.Context, s Store, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}

	return s.Set(ctx, key, data)
}

package tool

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times while retryable(err) holds, backing off
// linearly from base between tries. It returns the last error.
func Retry(ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base * time.Duration(i+1)):
		}
	}
	return err
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/airbusgeo/s2angles/internal/log"
	"go.uber.org/zap"
)

// Retry calls f until it succeeds or fails with an error that temporary rejects.
// f is called at most MaxTries times and the delay between two calls doubles.
// Retry returns as soon as ctx is done.
func (o option) Retry(ctx context.Context, name string, temporary func(error) bool, f func() error) error {
	d := o.Delay
	var err error
	for try := 0; try < o.MaxTries; try++ {
		if try > 0 {
			log.Logger(ctx).Debug("retrying "+name, zap.Int("try", try), zap.Error(err))
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), err)
			}
			d *= 2
		}
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%s: %w", name, cerr)
		}
		if err = f(); err == nil || !temporary(err) {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d tries: %w", name, o.MaxTries, err)
}

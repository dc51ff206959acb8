// Package sweeper periodically drops expired session states from stores
// that do not expire entries on their own.
package sweeper

import (
	"context"
	"time"

	"github.com/patric-chuzhbe/signup/internal/logger"
)

type purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type Sweeper struct {
	store        purger
	interval     time.Duration
	errorChannel chan error
}

func New(store purger, interval time.Duration, errorsCapacity int) *Sweeper {
	return &Sweeper{
		store:        store,
		interval:     interval,
		errorChannel: make(chan error, errorsCapacity),
	}
}

// ListenErrors calls callback for every purge error until Run's context is done.
func (s *Sweeper) ListenErrors(callback func(error)) {
	go func() {
		for err := range s.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the sweeping loop in its own goroutine. It stops when ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		defer close(s.errorChannel)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := s.store.PurgeExpired(ctx)
				if err != nil {
					select {
					case s.errorChannel <- err:
					default:
						logger.Log.Warnln("sweeper error dropped, the errors channel is full:", err)
					}
					continue
				}
				if purged > 0 {
					logger.Log.Debugf("purged %d expired sessions", purged)
				}
			}
		}
	}()
}

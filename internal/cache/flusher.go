package cache

import (
	"github.com/robfig/cron/v3"
)

// Flusher periodically calls Cache.FlushDirty on a robfig/cron/v3 schedule.
// Write-back caches with a long session lifetime use this to bound the
// amount of dirty data at risk between explicit IntoSource calls;
// write-through caches have no use for it since there is never anything
// dirty to flush.
type Flusher struct {
	cache *Cache
	cron  *cron.Cron
	errCh chan error
}

// NewFlusher schedules periodic flushes of c on the given cron spec (the
// standard 5-field format, or a descriptor such as "@every 1h"). A non-nil
// error is only ever returned for a malformed spec.
func NewFlusher(c *Cache, spec string) (*Flusher, error) {
	f := &Flusher{
		cache: c,
		cron:  cron.New(),
		errCh: make(chan error, 1),
	}
	_, err := f.cron.AddFunc(spec, func() {
		if err := c.FlushDirty(); err != nil {
			c.logger.Printf("periodic flush failed: %v", err)
			select {
			case f.errCh <- err:
			default:
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Start begins the cron schedule. It is safe to call Stop without ever
// calling Start.
func (f *Flusher) Start() { f.cron.Start() }

// Stop halts the schedule and waits for any in-flight flush to finish.
func (f *Flusher) Stop() { <-f.cron.Stop().Done() }

// Err returns the channel on which flush failures are delivered. It holds
// at most one pending failure; failures that occur while one is pending
// are dropped.
func (f *Flusher) Err() <-chan error { return f.errCh }

package services

import (
	"time"

	"github.com/adcraft-ai/adcraft-backend/internal/observability"
	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/envutil"
)

// RateLimitRegistry is a bounded fixed-window limiter. Per-key state is
// capped so high-cardinality keys cannot grow memory without bound: expired
// windows are evicted on access, a background sweep catches idle keys, and
// at capacity the least-recently-used key is evicted before a new one is
// admitted.
type RateLimitRegistry struct {
	log        *logger.Logger
	store      *memStore
	limit      int
	window     time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	stop       chan struct{}
	done       chan struct{}
}

type rateLimitEntry struct {
	count   int
	resetAt time.Time
}

type RateLimitConfig struct {
	Limit      int
	Window     time.Duration
	Capacity   int
	SweepEvery time.Duration
	Now        func() time.Time
}

func NewRateLimitRegistry(log *logger.Logger, cfg RateLimitConfig) *RateLimitRegistry {
	if cfg.Limit <= 0 {
		cfg.Limit = envutil.Int("SUGGEST_RATE_LIMIT", 20)
	}
	if cfg.Window <= 0 {
		cfg.Window = envutil.Duration("SUGGEST_RATE_WINDOW", 60*time.Second)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = envutil.Int("SUGGEST_RATE_CAPACITY", 10000)
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RateLimitRegistry{
		log:        log.With("service", "RateLimitRegistry"),
		store:      newMemStore(cfg.Capacity, cfg.Now),
		limit:      cfg.Limit,
		window:     cfg.Window,
		sweepEvery: cfg.SweepEvery,
		now:        cfg.Now,
	}
}

// Allow charges one request against key's current window and reports whether
// it is still within the limit. The first request in a window creates the
// entry; the window never slides. The increment runs under the store lock and
// count is snapshotted there, so concurrent callers cannot lose charges or
// read a half-updated entry.
func (r *RateLimitRegistry) Allow(key string) (bool, int) {
	var count int
	r.store.Update(key, r.window, func(prev any) any {
		entry, ok := prev.(*rateLimitEntry)
		if !ok {
			entry = &rateLimitEntry{resetAt: r.now().Add(r.window)}
		}
		entry.count++
		count = entry.count
		return entry
	})

	if count > r.limit {
		if m := observability.Current(); m != nil {
			m.ObserveRateLimitRejection("suggestions")
		}
		return false, 0
	}
	return true, r.limit - count
}

// ResetAt reports when key's current window ends, if a window is open.
func (r *RateLimitRegistry) ResetAt(key string) (time.Time, bool) {
	v, ok := r.store.Get(key)
	if !ok {
		return time.Time{}, false
	}
	entry, ok := v.(*rateLimitEntry)
	if !ok {
		return time.Time{}, false
	}
	return entry.resetAt, true
}

// Start launches the background sweep. Safe to call once.
func (r *RateLimitRegistry) Start() {
	if r.stop != nil {
		return
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				if n := r.store.Sweep(); n > 0 {
					r.log.Debug("rate limit sweep", "evicted", n)
				}
			}
		}
	}()
}

func (r *RateLimitRegistry) Stop() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.stop = nil
	r.done = nil
}

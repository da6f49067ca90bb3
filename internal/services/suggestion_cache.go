package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adcraft-ai/adcraft-backend/internal/clients/redis"
	"github.com/adcraft-ai/adcraft-backend/internal/observability"
	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/envutil"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

// ResponseCache is the two-tier cache for freestyle suggestion responses.
// The fast tier is in-process; the durable tier is redis. Cache failures are
// never surfaced to callers, a broken cache degrades to recomputation.
type ResponseCache struct {
	log     *logger.Logger
	fast    *memStore
	durable redis.Cache
	ttl     time.Duration
	now     func() time.Time
}

// cachedResponse is the stored record. The fingerprint pins the entry to the
// product image it was computed from, so a swapped image invalidates stale
// entries on read instead of serving them until TTL.
type cachedResponse struct {
	Fingerprint string                `json:"fingerprint"`
	Response    types.SuggestResponse `json:"response"`
}

type ResponseCacheConfig struct {
	TTL      time.Duration
	Capacity int
	Durable  redis.Cache
	Now      func() time.Time
}

func NewResponseCache(log *logger.Logger, cfg ResponseCacheConfig) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = envutil.Duration("SUGGEST_CACHE_TTL", 10*time.Minute)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = envutil.Int("SUGGEST_CACHE_CAPACITY", 1024)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ResponseCache{
		log:     log.With("service", "ResponseCache"),
		fast:    newMemStore(cfg.Capacity, cfg.Now),
		durable: cfg.Durable,
		ttl:     cfg.TTL,
		now:     cfg.Now,
	}
}

// Key builds the deterministic cache key for a freestyle request. Time enters
// through a five-minute bucket so entries age out of addressability even
// before TTL; the goal string is hashed to keep keys short and opaque.
func (c *ResponseCache) Key(req types.SuggestRequest) string {
	subject := "uploads"
	if req.ProductID != nil {
		subject = req.ProductID.String()
	}

	descs := append([]string(nil), req.UploadDescriptions...)
	sort.Strings(descs)
	payload := fmt.Sprintf("%s|%s|%d", strings.Join(descs, "\x1f"), req.Goal, req.Count)
	sum := sha256.Sum256([]byte(payload))

	bucket := c.now().UTC().Truncate(5 * time.Minute).Unix()
	return fmt.Sprintf("suggest:%s:%s:%s:%d", req.UserID, subject, hex.EncodeToString(sum[:8]), bucket)
}

// Get checks the fast tier, then the durable tier. A hit whose fingerprint no
// longer matches the current product image is treated as a miss and deleted.
// Durable hits are backfilled into the fast tier.
func (c *ResponseCache) Get(ctx context.Context, key, fingerprint string) (*types.SuggestResponse, bool) {
	if v, ok := c.fast.Get(key); ok {
		if rec, ok := v.(*cachedResponse); ok {
			if fingerprintMatches(rec.Fingerprint, fingerprint) {
				c.observe("fast", true)
				return cloneResponse(&rec.Response), true
			}
			c.fast.Delete(key)
		}
	}
	c.observe("fast", false)

	if c.durable == nil {
		return nil, false
	}

	var rec cachedResponse
	found, err := c.durable.Get(ctx, key, &rec)
	if err != nil {
		c.log.Warn("durable cache read failed", "key", key, "error", err)
		c.observe("durable", false)
		return nil, false
	}
	if !found {
		c.observe("durable", false)
		return nil, false
	}
	if !fingerprintMatches(rec.Fingerprint, fingerprint) {
		// Read-repair: the stale record would otherwise sit until TTL.
		if err := c.durable.Delete(ctx, key); err != nil {
			c.log.Warn("durable cache delete failed", "key", key, "error", err)
		}
		c.observe("durable", false)
		return nil, false
	}

	c.observe("durable", true)
	c.fast.Set(key, &rec, c.ttl)
	return cloneResponse(&rec.Response), true
}

// Set writes both tiers. The stored copy is marked FromCache so a later hit
// needs no mutation on the read path.
func (c *ResponseCache) Set(ctx context.Context, key, fingerprint string, resp *types.SuggestResponse) {
	if resp == nil {
		return
	}
	stored := *resp
	stored.FromCache = true
	rec := &cachedResponse{Fingerprint: fingerprint, Response: stored}

	c.fast.Set(key, rec, c.ttl)

	if c.durable == nil {
		return
	}
	if err := c.durable.Set(ctx, key, rec, c.ttl); err != nil {
		c.log.Warn("durable cache write failed", "key", key, "error", err)
	}
}

// InvalidateUser drops every cached response for one user across both tiers.
func (c *ResponseCache) InvalidateUser(ctx context.Context, userID string) {
	prefix := fmt.Sprintf("suggest:%s:", userID)
	n := c.fast.DeletePrefix(prefix)
	c.log.Info("response cache invalidated", "user_id", userID, "fast_evicted", n)

	if c.durable == nil {
		return
	}
	if err := c.durable.Invalidate(ctx, prefix+"*"); err != nil {
		c.log.Warn("durable cache invalidation failed", "user_id", userID, "error", err)
	}
}

func (c *ResponseCache) observe(tier string, hit bool) {
	if m := observability.Current(); m != nil {
		m.ObserveCacheLookup(tier, hit)
	}
}

// fingerprintMatches treats an empty expectation as a wildcard: requests with
// no product image have nothing to pin the entry to.
func fingerprintMatches(stored, current string) bool {
	if current == "" {
		return true
	}
	return stored == current
}

func cloneResponse(resp *types.SuggestResponse) *types.SuggestResponse {
	out := *resp
	out.Suggestions = append([]types.Suggestion(nil), resp.Suggestions...)
	return &out
}

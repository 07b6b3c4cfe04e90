package invites

import (
	"context"
	"errors"
	"time"

	"promo-sentinel/internal/metrics"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrNotFound = errors.New("invite not found")

// Metadata is what the platform reports about an invite code.
type Metadata struct {
	GuildID   string
	ExpiresAt *time.Time
}

type Lookup interface {
	LookupInvite(ctx context.Context, code string) (Metadata, error)
}

type Cache interface {
	Get(ctx context.Context, code string) (Metadata, bool, error)
	Set(ctx context.Context, code string, meta Metadata, ttl time.Duration) error
}

// Resolved is a Reference enriched with its lookup result. An empty GuildID
// means the invite could not be resolved.
type Resolved struct {
	Reference
	ExpiresAt *time.Time
	GuildID   string
}

func (r Resolved) OK() bool {
	return r.GuildID != ""
}

func (r Resolved) Expiring() bool {
	return r.ExpiresAt != nil
}

type Config struct {
	RequestsPerSecond float64
	Burst             int
	MaxConcurrent     int
	CacheTTL          time.Duration
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Resolver struct {
	lookup  Lookup
	cache   Cache
	limiter *rate.Limiter
	cfg     Config
	clock   Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewResolver(lookup Lookup, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Resolver{
		lookup:  lookup,
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
		clock:   realClock{},
		logger:  logger,
	}
}

func (r *Resolver) WithCache(cache Cache) {
	r.cache = cache
}

func (r *Resolver) WithMetrics(m *metrics.Metrics) {
	r.metrics = m
}

func (r *Resolver) WithClock(clock Clock) {
	r.clock = clock
}

// Resolve looks up every reference concurrently. The result has the same
// length and order as refs; failed lookups leave GuildID empty.
func (r *Resolver) Resolve(ctx context.Context, refs []Reference) []Resolved {
	results := make([]Resolved, len(refs))
	if len(refs) == 0 {
		return results
	}

	p := pool.New().WithMaxGoroutines(r.cfg.MaxConcurrent)
	for i, ref := range refs {
		i, ref := i, ref
		p.Go(func() {
			results[i] = r.resolveOne(ctx, ref)
		})
	}
	p.Wait()
	return results
}

func (r *Resolver) resolveOne(ctx context.Context, ref Reference) Resolved {
	result := Resolved{Reference: ref}

	if r.cache != nil {
		meta, ok, err := r.cache.Get(ctx, ref.Code)
		if err != nil {
			r.logger.Warn("invite cache read failed", zap.String("invite_code", ref.Code), zap.Error(err))
		} else if ok {
			r.metrics.InviteLookup("cache_hit")
			result.GuildID = meta.GuildID
			result.ExpiresAt = meta.ExpiresAt
			return result
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.metrics.InviteLookup("error")
		return result
	}

	meta, err := r.lookup.LookupInvite(ctx, ref.Code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.metrics.InviteLookup("not_found")
		} else {
			r.metrics.InviteLookup("error")
			r.logger.Warn("invite lookup failed", zap.String("invite_code", ref.Code), zap.Error(err))
		}
		return result
	}
	if meta.GuildID == "" {
		r.metrics.InviteLookup("no_guild")
		return result
	}

	r.metrics.InviteLookup("ok")
	result.GuildID = meta.GuildID
	result.ExpiresAt = meta.ExpiresAt

	if r.cache != nil {
		if ttl := r.cacheTTL(meta); ttl > 0 {
			if err := r.cache.Set(ctx, ref.Code, meta, ttl); err != nil {
				r.logger.Warn("invite cache write failed", zap.String("invite_code", ref.Code), zap.Error(err))
			}
		}
	}
	return result
}

// cacheTTL never lets a cached entry outlive the invite itself.
func (r *Resolver) cacheTTL(meta Metadata) time.Duration {
	ttl := r.cfg.CacheTTL
	if meta.ExpiresAt != nil {
		if remaining := meta.ExpiresAt.Sub(r.clock.Now()); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

package profile

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/observability"
)

// Gateway serves profile reads on behalf of an already-authenticated claim.
// Responses are always sanitized; the credential digest never crosses this
// boundary regardless of caller.
type Gateway struct {
	directory *auth.Directory
	cache     *lru.Cache[string, auth.UserRecord]
	logger    *observability.Logger

	onHit  func()
	onMiss func()
}

// NewGateway creates a profile gateway with an LRU read cache of the given
// size. Size <= 0 disables caching.
func NewGateway(directory *auth.Directory, cacheSize int, logger *observability.Logger) (*Gateway, error) {
	g := &Gateway{directory: directory, logger: logger}
	if cacheSize > 0 {
		cache, err := lru.New[string, auth.UserRecord](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating profile cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// WithCacheHooks registers hit/miss callbacks; wired to metrics by the caller.
func (g *Gateway) WithCacheHooks(onHit, onMiss func()) *Gateway {
	g.onHit = onHit
	g.onMiss = onMiss
	return g
}

// Fetch returns the sanitized profile for the claim. The claim is trusted as
// given; callers establish it through token validation or a trusted internal
// channel before reaching here.
func (g *Gateway) Fetch(ctx context.Context, claim auth.Claim) (auth.UserRecord, error) {
	key := auth.UserKey(claim.TenantID, claim.UserID)

	if g.cache != nil {
		if rec, ok := g.cache.Get(key); ok {
			if g.onHit != nil {
				g.onHit()
			}
			return rec, nil
		}
		if g.onMiss != nil {
			g.onMiss()
		}
	}

	rec, err := g.directory.Find(ctx, claim.TenantID, claim.UserID)
	if err != nil {
		return auth.UserRecord{}, err
	}

	sanitized := rec.Sanitized()
	if g.cache != nil {
		g.cache.Add(key, sanitized)
	}
	return sanitized, nil
}

// Invalidate drops a cached profile. Called after any write to the record so
// stale reads are bounded to cache lifetime only between write and call.
func (g *Gateway) Invalidate(claim auth.Claim) {
	if g.cache != nil {
		g.cache.Remove(auth.UserKey(claim.TenantID, claim.UserID))
	}
}

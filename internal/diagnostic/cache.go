package diagnostic

import (
	"context"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// DefaultCacheSize is the number of artifacts whose diagnostics are kept.
const DefaultCacheSize = 256

// CachedChecker memoizes diagnostics by artifact content hash. Refinement
// re-checks artifacts the sanitizer left unchanged, so identical content is
// common.
type CachedChecker struct {
	inner Checker
	cache *lru.Cache[string, []models.Diagnostic]
}

// NewCachedChecker wraps inner with an LRU cache of the given size.
func NewCachedChecker(inner Checker, size int) (*CachedChecker, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []models.Diagnostic](size)
	if err != nil {
		return nil, err
	}
	return &CachedChecker{inner: inner, cache: cache}, nil
}

// CheckDiagnostics returns cached diagnostics for identical content. Timeouts
// are not cached so a transient slow run is retried.
func (c *CachedChecker) CheckDiagnostics(ctx context.Context, artifact string) ([]models.Diagnostic, error) {
	key := Hash(artifact)
	if diags, ok := c.cache.Get(key); ok {
		return diags, nil
	}

	diags, err := c.inner.CheckDiagnostics(ctx, artifact)
	if err != nil {
		return nil, err
	}
	if !hasTimeout(diags) {
		c.cache.Add(key, diags)
	}
	return diags, nil
}

// Len returns the number of cached entries.
func (c *CachedChecker) Len() int {
	return c.cache.Len()
}

// Hash returns the hex BLAKE3 digest of content.
func Hash(content string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func hasTimeout(diags []models.Diagnostic) bool {
	for _, d := range diags {
		if d.Code == CodeTimeout {
			return true
		}
	}
	return false
}

package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/leaselens/leaselens/internal/domain/statute"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
)

// CachedSearcher decorates a statute.Searcher with a redis result cache,
// keyed by a hash of the query and topK.  Cache failures degrade to the
// underlying searcher; they never fail a search.
type CachedSearcher struct {
	inner statute.Searcher
	cache *Cache
	log   logging.Logger
}

// NewCachedSearcher wraps inner with a result cache using ttl.
func NewCachedSearcher(inner statute.Searcher, client *Client, ttl time.Duration, log logging.Logger) *CachedSearcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("statute_cache")
	return &CachedSearcher{
		inner: inner,
		cache: NewCache(client, "statute_search", ttl, log),
		log:   log,
	}
}

// Search implements statute.Searcher.
func (s *CachedSearcher) Search(ctx context.Context, query string, topK int) ([]statute.Section, error) {
	key := searchKey(query, topK)

	var cached []statute.Section
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !goerrors.Is(err, ErrCacheMiss) {
		s.log.Warn("statute cache read failed", logging.Err(err))
	}

	results, err := s.inner.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, results); err != nil {
		s.log.Warn("statute cache write failed", logging.Err(err))
	}
	return results, nil
}

func searchKey(query string, topK int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", topK, query)))
	return hex.EncodeToString(sum[:])
}

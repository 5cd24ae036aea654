//go:build integration

package cache_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caretrip/internal/role/catalog/cache"
	"caretrip/internal/role/models"
	"caretrip/pkg/domain"
	"caretrip/pkg/testutil/containers"
)

// countingCatalog records how often the inner catalog is hit.
type countingCatalog struct {
	mu    sync.Mutex
	calls int
	defs  map[string]models.RoleDefinition
}

func (c *countingCatalog) Resolve(_ context.Context, slugs []string) (models.Resolution, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	var res models.Resolution
	for _, slug := range slugs {
		if def, ok := c.defs[slug]; ok {
			res.Found = append(res.Found, def)
		} else {
			res.Missing = append(res.Missing, slug)
		}
	}
	return res, nil
}

func (c *countingCatalog) ResolveIDs(context.Context, []domain.RoleID) ([]models.RoleDefinition, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil, nil
}

func (c *countingCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type CachedCatalogSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	inner *countingCatalog
}

func TestCachedCatalogSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedCatalogSuite))
}

func (s *CachedCatalogSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
}

func (s *CachedCatalogSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.inner = &countingCatalog{defs: map[string]models.RoleDefinition{
		"user":        {ID: domain.RoleID(uuid.New()), Slug: "user", Name: "User"},
		"coordinator": {ID: domain.RoleID(uuid.New()), Slug: "coordinator", Name: "Care Coordinator"},
	}}
}

func (s *CachedCatalogSuite) newCached(ttl time.Duration) *cache.CachedCatalog {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cache.New(s.inner, s.redis.Client, ttl, logger)
}

func (s *CachedCatalogSuite) TestSecondResolveServedFromCache() {
	ctx := context.Background()
	cached := s.newCached(time.Minute)

	first, err := cached.Resolve(ctx, []string{"user", "coordinator"})
	s.Require().NoError(err)
	s.Len(first.Found, 2)
	s.Equal(1, s.inner.callCount())

	second, err := cached.Resolve(ctx, []string{"user", "coordinator"})
	s.Require().NoError(err)
	s.Len(second.Found, 2)
	s.Equal(1, s.inner.callCount(), "fully cached set must not hit the inner catalog")
}

func (s *CachedCatalogSuite) TestPartialMissFallsThrough() {
	ctx := context.Background()
	cached := s.newCached(time.Minute)

	_, err := cached.Resolve(ctx, []string{"user"})
	s.Require().NoError(err)

	res, err := cached.Resolve(ctx, []string{"user", "coordinator"})
	s.Require().NoError(err)
	s.Len(res.Found, 2)
	s.Equal(2, s.inner.callCount())
}

func (s *CachedCatalogSuite) TestExpiredEntriesRefetch() {
	ctx := context.Background()
	cached := s.newCached(200 * time.Millisecond)

	_, err := cached.Resolve(ctx, []string{"user"})
	s.Require().NoError(err)
	s.Equal(1, s.inner.callCount())

	time.Sleep(300 * time.Millisecond)

	_, err = cached.Resolve(ctx, []string{"user"})
	s.Require().NoError(err)
	s.Equal(2, s.inner.callCount())
}

func (s *CachedCatalogSuite) TestMissingSlugsAreNotCached() {
	ctx := context.Background()
	cached := s.newCached(time.Minute)

	res, err := cached.Resolve(ctx, []string{"surgeon"})
	s.Require().NoError(err)
	s.Empty(res.Found)
	s.Equal([]string{"surgeon"}, res.Missing)

	res, err = cached.Resolve(ctx, []string{"surgeon"})
	s.Require().NoError(err)
	s.Equal([]string{"surgeon"}, res.Missing)
	s.Equal(2, s.inner.callCount(), "unknown slugs must be re-resolved, never cached")
}

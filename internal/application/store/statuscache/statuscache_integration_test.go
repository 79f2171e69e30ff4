//go:build integration

package statuscache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"licensure/internal/application/models"
	"licensure/internal/application/store/statuscache"
	"licensure/internal/policy"
	id "licensure/pkg/domain"
	"licensure/pkg/testutil/containers"
)

type StatusCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *statuscache.Cache
}

func TestStatusCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StatusCacheSuite))
}

func (s *StatusCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.cache = statuscache.New(s.redis.Client, logger)
}

func (s *StatusCacheSuite) TearDownSuite() {
	ctx := context.Background()
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(ctx)
}

func (s *StatusCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func newApplication(s *StatusCacheSuite) *models.Application {
	app, err := models.NewApplication(id.NewApplicationID(), id.NewUserID(), time.Now().UTC().Truncate(time.Millisecond))
	s.Require().NoError(err)
	return app
}

func (s *StatusCacheSuite) TestSetAndGet() {
	ctx := context.Background()
	app := newApplication(s)

	s.cache.Set(ctx, app)

	got, ok := s.cache.Get(ctx, app.ID)
	s.Require().True(ok)
	s.Equal(app.ID, got.ID)
	s.Equal(app.ApplicantID, got.ApplicantID)
	s.Equal(models.StatusDraft, got.Status)
	s.Equal(app.Version, got.Version)
}

func (s *StatusCacheSuite) TestGet_Miss() {
	_, ok := s.cache.Get(context.Background(), id.NewApplicationID())
	s.False(ok)
}

func (s *StatusCacheSuite) TestInvalidate() {
	ctx := context.Background()
	app := newApplication(s)

	s.cache.Set(ctx, app)
	s.cache.Invalidate(ctx, app.ID)

	_, ok := s.cache.Get(ctx, app.ID)
	s.False(ok)
}

func (s *StatusCacheSuite) TestSet_AppliesTTL() {
	ctx := context.Background()
	app := newApplication(s)

	s.cache.Set(ctx, app)

	ttl, err := s.redis.Client.TTL(ctx, "application:snapshot:"+app.ID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, policy.StatusCacheTTL)
}

// A corrupt snapshot must behave like a miss and be dropped so the next write
// starts clean.
func (s *StatusCacheSuite) TestGet_CorruptPayloadDropped() {
	ctx := context.Background()
	appID := id.NewApplicationID()
	key := "application:snapshot:" + appID.String()

	s.Require().NoError(s.redis.Client.Set(ctx, key, "{not json", time.Minute).Err())

	_, ok := s.cache.Get(ctx, appID)
	s.False(ok)

	exists, err := s.redis.Client.Exists(ctx, key).Result()
	s.Require().NoError(err)
	s.Equal(int64(0), exists)
}

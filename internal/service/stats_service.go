package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpost/forwarding-api/internal/dto"
	"github.com/virtualpost/forwarding-api/internal/models"
	appErrors "github.com/virtualpost/forwarding-api/pkg/errors"
)

const statsCacheKey = "forwarding:stats"

type statsStore interface {
	CountByStatus(ctx context.Context) (map[models.ForwardingStatus]int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsService serves the dashboard queue breakdown with a short-TTL cache.
// Stats are advisory; record reads never go through this path.
type StatsService struct {
	store  statsStore
	cache  statsCache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewStatsService constructs the service. Cache may be nil.
func NewStatsService(store statsStore, cache statsCache, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Queue returns per-status counts, cache-aside.
func (s *StatsService) Queue(ctx context.Context) (*dto.QueueStats, error) {
	if s.cache != nil {
		var cached dto.QueueStats
		err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute queue stats")
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	stats := &dto.QueueStats{Counts: counts, Total: total, GeneratedAt: s.now()}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.ttl); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

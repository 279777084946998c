package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/drivehub-api/internal/models"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/jobs"
)

type statsRepository interface {
	Get(ctx context.Context, userID string) (*models.UserStats, error)
	ApplyDelta(ctx context.Context, userID string, delta models.StatsDelta) error
	Recompute(ctx context.Context, userID string) (*models.UserStats, error)
	ActiveUserIDs(ctx context.Context) ([]string, error)
	Overview(ctx context.Context) (*models.AdminOverview, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type recomputeEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// StatsServiceConfig tunes caching and reconciliation.
type StatsServiceConfig struct {
	CacheTTL          time.Duration
	ReconcileInterval time.Duration
}

// StatsService maintains the per-user rollups behind the dashboard. The
// stored row is derived state: hot-path events apply increments, structural
// changes trigger a background full recompute, and a periodic reconciler
// corrects whatever drift remains.
type StatsService struct {
	repo    statsRepository
	cache   statsCache
	queue   recomputeEnqueuer
	metrics *MetricsService
	cfg     StatsServiceConfig
	logger  *zap.Logger
}

// NewStatsService constructs the stats service. The recompute queue is
// attached after construction because the queue handler needs the service.
func NewStatsService(repo statsRepository, cache statsCache, cfg StatsServiceConfig, metrics *MetricsService, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &StatsService{repo: repo, cache: cache, cfg: cfg, metrics: metrics, logger: logger}
}

// AttachQueue wires the background queue used for recompute jobs.
func (s *StatsService) AttachQueue(queue recomputeEnqueuer) {
	s.queue = queue
}

// Get returns the caller's rollup, cache-aside.
func (s *StatsService) Get(ctx context.Context, principal models.Principal) (*models.UserStats, error) {
	key := statsCacheKey(principal.UserID)
	if s.cache != nil {
		var cached models.UserStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if err != appErrors.ErrCacheMiss {
			s.logger.Warn("stats cache read failed", zap.String("user_id", principal.UserID), zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	stats, err := s.repo.Get(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stats")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("user_id", principal.UserID), zap.Error(err))
		}
	}
	return stats, nil
}

// Overview returns the cross-user totals. Admin only.
func (s *StatsService) Overview(ctx context.Context, principal models.Principal) (*models.AdminOverview, error) {
	if !principal.Admin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	overview, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overview")
	}
	return overview, nil
}

// RecordUpload bumps the rollup after a successful upload. Counter upkeep is
// strictly best-effort: a failure here never surfaces to the uploader.
func (s *StatsService) RecordUpload(ctx context.Context, userID string, bytes int64) {
	s.applyDelta(ctx, userID, models.StatsDelta{Files: 1, Bytes: bytes})
}

// RecordDownload bumps the rollup after a download was served.
func (s *StatsService) RecordDownload(ctx context.Context, userID string) {
	s.applyDelta(ctx, userID, models.StatsDelta{Downloads: 1})
}

// EnqueueRecompute schedules a full recompute for one user. Used after trash,
// restore, and purge, where the delta is expensive to track exactly. Falls
// back to an inline recompute when no queue is attached.
func (s *StatsService) EnqueueRecompute(userID string) {
	if s.queue == nil {
		if _, err := s.Recompute(context.Background(), userID); err != nil {
			s.logger.Error("inline stats recompute failed", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	job := jobs.Job{Type: "stats.recompute", Payload: userID}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("failed to enqueue stats recompute", zap.String("user_id", userID), zap.Error(err))
	}
}

// Recompute rebuilds one user's rollup from the live tables and refreshes
// the cache.
func (s *StatsService) Recompute(ctx context.Context, userID string) (*models.UserStats, error) {
	stats, err := s.repo.Recompute(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute stats")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey(userID), stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return stats, nil
}

// HandleRecomputeJob is the queue handler for stats.recompute jobs.
func (s *StatsService) HandleRecomputeJob(ctx context.Context, job jobs.Job) error {
	userID, ok := job.Payload.(string)
	if !ok || userID == "" {
		return fmt.Errorf("stats recompute job has invalid payload %T", job.Payload)
	}
	_, err := s.Recompute(ctx, userID)
	return err
}

// ReconcileAll recomputes every active user's rollup. Run periodically to
// repair drift from lost deltas.
func (s *StatsService) ReconcileAll(ctx context.Context) error {
	userIDs, err := s.repo.ActiveUserIDs(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	var failed int
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.Recompute(ctx, userID); err != nil {
			failed++
			s.logger.Error("stats reconcile failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.logger.Info("stats reconcile finished", zap.Int("users", len(userIDs)), zap.Int("failed", failed))
	return nil
}

// StartReconciler runs ReconcileAll on the configured interval until the
// context ends.
func (s *StatsService) StartReconciler(ctx context.Context) {
	if s.cfg.ReconcileInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.ReconcileAll(ctx); err != nil {
					s.logger.Error("stats reconcile run failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *StatsService) applyDelta(ctx context.Context, userID string, delta models.StatsDelta) {
	if err := s.repo.ApplyDelta(ctx, userID, delta); err != nil {
		s.logger.Error("failed to apply stats delta",
			zap.String("user_id", userID),
			zap.Int64("files", delta.Files),
			zap.Int64("bytes", delta.Bytes),
			zap.Error(err))
		return
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, statsCacheKey(userID)); err != nil {
			s.logger.Warn("stats cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

func statsCacheKey(userID string) string {
	return "stats:user:" + userID
}

// Package dashboard serves the aggregate visit figures with a short-lived cache.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"possumtracker/internal/config"
	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/repository"
)

// Service answers dashboard requests. A summary younger than the TTL is
// served from memory; a miss runs every aggregate query in parallel.
type Service struct {
	repo    repository.DashboardRepository
	cfg     config.DashboardConfig
	logger  *logger.Logger
	now     func() time.Time
	mu      sync.Mutex
	cached  *dto.DashboardSummary
	fetched time.Time
	// generation is bumped by Invalidate; a miss started before it is not cached.
	generation uint64
}

func NewService(repo repository.DashboardRepository, cfg config.DashboardConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, logger: log, now: time.Now}
}

// Summary returns the cached summary or recomputes it.
func (s *Service) Summary(ctx context.Context) (*dto.DashboardSummary, error) {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.fetched) < s.cfg.TTL {
		summary := s.cached
		s.mu.Unlock()
		return summary, nil
	}
	generation := s.generation
	s.mu.Unlock()

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.generation == generation {
		s.cached = summary
		s.fetched = s.now()
	}
	s.mu.Unlock()
	return summary, nil
}

// Invalidate drops the cached summary.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.generation++
	s.mu.Unlock()
}

func (s *Service) compute(ctx context.Context) (*dto.DashboardSummary, error) {
	var summary dto.DashboardSummary

	g, ctx := errgroup.WithContext(ctx)
	if s.cfg.Workers > 0 {
		g.SetLimit(s.cfg.Workers)
	}

	g.Go(func() (err error) {
		summary.TotalVisits, err = s.repo.TotalVisits(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.AverageVisitsPerNight, err = s.repo.AverageVisitsPerNight(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.AverageDuration, err = s.repo.AverageDuration(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.MaxDuration, err = s.repo.MaxDuration(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.MostPopularHour, err = s.repo.MostPopularHour(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.MaxVisitsPerNight, err = s.repo.MaxVisitsPerNight(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.VisitsPerHour, err = s.repo.VisitsPerHour(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.DurationHistogram, err = s.repo.DurationHistogram(ctx)
		return err
	})
	g.Go(func() (err error) {
		summary.Activity, err = s.repo.ActivitySummary(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to build dashboard: %v", err)
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	return &summary, nil
}

// VisitsPerNight is not cached; the range comes from the request.
func (s *Service) VisitsPerNight(ctx context.Context, from, to time.Time) ([]dto.NightCount, error) {
	if to.Before(from) {
		from, to = to, from
	}
	return s.repo.VisitsPerNight(ctx, from, to)
}

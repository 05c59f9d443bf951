package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
)

type CareerSource interface {
	FetchCareers(ctx context.Context) ([]domain.Career, error)
}

// CareerService caches the career feed for ttl.
type CareerService struct {
	source CareerSource
	clock  Clock
	ttl    time.Duration

	mu        sync.Mutex
	careers   []domain.Career
	fetchedAt time.Time
}

func NewCareerService(source CareerSource, clock Clock, ttl time.Duration) *CareerService {
	return &CareerService{
		source: source,
		clock:  clock,
		ttl:    ttl,
	}
}

// List returns cached careers while fresh. When the feed fails the stale copy
// is served if there is one.
func (s *CareerService) List(ctx context.Context) ([]domain.Career, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !s.fetchedAt.IsZero() && now.Sub(s.fetchedAt) < s.ttl {
		return s.careers, nil
	}

	careers, err := s.source.FetchCareers(ctx)
	if err != nil {
		if !s.fetchedAt.IsZero() {
			slog.Warn("career_fetch_failed_serving_stale", "error", err, "age", now.Sub(s.fetchedAt).String())
			return s.careers, nil
		}
		return nil, fmt.Errorf("fetch careers: %w", err)
	}

	s.careers = careers
	s.fetchedAt = now
	return careers, nil
}

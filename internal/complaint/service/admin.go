package service

import (
	"context"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/pkg/db/pagination"
)

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	if !req.Enabled() {
		items, err := s.repo.List(ctx, s.db, nil, 0)
		if err != nil {
			return nil, err
		}
		return &domain.ListResponse{Complaints: nonNil(items)}, nil
	}

	var cursor *pagination.Cursor
	if req.PageToken != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, err
		}
		cursor = decoded
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	page, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(c *domain.Complaint) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID,
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	return &domain.ListResponse{Complaints: nonNil(page), PageInfo: pageInfo}, nil
}

// DailyCounts returns one bucket per UTC day for the trailing window,
// oldest first, with empty days reported as zero.
func (s *Service) DailyCounts(ctx context.Context) ([]domain.DailyCount, error) {
	today := s.clock.Now().UTC().Truncate(24 * time.Hour)
	key := today.Format(domain.DateLayout)
	if counts, ok := s.statsCache.GetDailyCounts(key); ok {
		return counts, nil
	}

	start := today.AddDate(0, 0, -(domain.StatsWindowDays - 1))
	createdAt, err := s.repo.CreatedSince(ctx, s.db, start)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]int64, domain.StatsWindowDays)
	for _, ts := range createdAt {
		buckets[ts.UTC().Format(domain.DateLayout)]++
	}

	counts := make([]domain.DailyCount, 0, domain.StatsWindowDays)
	for i := 0; i < domain.StatsWindowDays; i++ {
		day := start.AddDate(0, 0, i).Format(domain.DateLayout)
		counts = append(counts, domain.DailyCount{Date: day, Count: buckets[day]})
	}

	s.statsCache.SetDailyCounts(key, counts)
	return counts, nil
}

func nonNil(items []*domain.Complaint) []*domain.Complaint {
	if items == nil {
		return []*domain.Complaint{}
	}
	return items
}

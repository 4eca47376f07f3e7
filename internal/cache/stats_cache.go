package cache

import (
	"time"

	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
)

const defaultStatsTTL = 60 * time.Second

// StatsCache holds admin dashboard aggregates keyed by UTC day.
type StatsCache interface {
	GetDailyCounts(day string) ([]complaintdomain.DailyCount, bool)
	SetDailyCounts(day string, counts []complaintdomain.DailyCount)
	Invalidate()
}

type statsCache struct {
	daily Cache[string, []complaintdomain.DailyCount]
	ttl   time.Duration
}

func NewStatsCache() StatsCache {
	return &statsCache{
		daily: NewTTLCache[string, []complaintdomain.DailyCount](),
		ttl:   defaultStatsTTL,
	}
}

func (c *statsCache) GetDailyCounts(day string) ([]complaintdomain.DailyCount, bool) {
	counts, ok := c.daily.Get(day)
	if !ok {
		return nil, false
	}
	out := make([]complaintdomain.DailyCount, len(counts))
	copy(out, counts)
	return out, true
}

func (c *statsCache) SetDailyCounts(day string, counts []complaintdomain.DailyCount) {
	if len(counts) == 0 {
		return
	}
	stored := make([]complaintdomain.DailyCount, len(counts))
	copy(stored, counts)
	c.daily.Set(day, stored, c.ttl)
}

func (c *statsCache) Invalidate() {
	c.daily.Purge()
}

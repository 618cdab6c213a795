package service

import (
	"context"
	"time"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/repository"
)

// PrayerDateLayout is the dd/mm/yyyy key format of the timetable.
const PrayerDateLayout = "02/01/2006"

// PrayerTimesService reads the monthly timetable from the prayer-times endpoint.
// The endpoint is unauthenticated and separate from the content backend.
type PrayerTimesService struct {
	api   *httpclient.Client
	url   string
	cache *repository.ResponseCache
	ttl   time.Duration
	now   func() time.Time
}

// NewPrayerTimesService creates the service. cache may be nil.
func NewPrayerTimesService(api *httpclient.Client, endpoint string, cache *repository.ResponseCache, ttl time.Duration) *PrayerTimesService {
	return &PrayerTimesService{api: api, url: endpoint, cache: cache, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used to pick today's entry.
func (s *PrayerTimesService) WithClock(now func() time.Time) *PrayerTimesService {
	s.now = now
	return s
}

// GetMonthlyPrayerTimes returns the timetable keyed by dd/mm/yyyy. The result is
// cached per calendar month when a cache is configured.
func (s *PrayerTimesService) GetMonthlyPrayerTimes(ctx context.Context) (model.PrayerTimetable, error) {
	key := "prayer-times:" + s.now().Format("2006-01")
	table, _, err := repository.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) (model.PrayerTimetable, error) {
		env, err := httpclient.Get[model.PrayerTimetable](ctx, s.api, s.url)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
	return table, err
}

// GetTodayPrayerTimes returns today's entry, or nil when the timetable has none.
func (s *PrayerTimesService) GetTodayPrayerTimes(ctx context.Context) (*model.PrayerDay, error) {
	table, err := s.GetMonthlyPrayerTimes(ctx)
	if err != nil {
		return nil, err
	}
	day, ok := table[s.now().Format(PrayerDateLayout)]
	if !ok {
		return nil, nil
	}
	return &day, nil
}

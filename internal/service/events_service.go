package service

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// Event date-times are entered without a zone in the content editor.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// EventQuery narrows the events list. Zero values mean "no constraint".
type EventQuery struct {
	Featured *bool
	// Upcoming keeps recurring events and those starting at or after now.
	Upcoming bool
	Category string
	Limit    int
}

// EventsService reads the events stored under the "events" content key.
type EventsService struct {
	content *ContentService
	now     func() time.Time
	loc     *time.Location
}

func NewEventsService(content *ContentService) *EventsService {
	return &EventsService{content: content, now: time.Now, loc: time.Local}
}

// WithClock replaces the time source and the zone used for zone-less dates.
func (s *EventsService) WithClock(now func() time.Time, loc *time.Location) *EventsService {
	s.now = now
	if loc != nil {
		s.loc = loc
	}
	return s
}

// GetEvents returns the events matching q, sorted by start time. Events without a
// parseable date sort last in their original order.
func (s *EventsService) GetEvents(ctx context.Context, q EventQuery) (*model.Envelope[[]model.Event], error) {
	env, err := listContent[model.Event](ctx, s.content, model.KeyEvents)
	if err != nil {
		return nil, err
	}

	now := s.now()
	events := make([]model.Event, 0, len(env.Data))
	for _, e := range env.Data {
		if q.Featured != nil && e.IsFeatured != *q.Featured {
			continue
		}
		if q.Category != "" && !strings.EqualFold(e.Category, q.Category) {
			continue
		}
		if q.Upcoming && !s.isUpcoming(e, now) {
			continue
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool {
		ti, okI := s.parseTime(events[i].DateTime)
		tj, okJ := s.parseTime(events[j].DateTime)
		if okI && okJ {
			return ti.Before(tj)
		}
		return okI && !okJ
	})
	return withData(env, limitItems(events, q.Limit)), nil
}

func (s *EventsService) isUpcoming(e model.Event, now time.Time) bool {
	if strings.EqualFold(e.Type, model.EventRecurring) {
		return true
	}
	t, ok := s.parseTime(e.DateTime)
	return ok && !t.Before(now)
}

func (s *EventsService) parseTime(v string) (time.Time, bool) {
	for _, layout := range eventTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EventListQuery is sent as query parameters to the events REST endpoint.
type EventListQuery struct {
	Category string
	Featured *bool
	Upcoming *bool
	Limit    int
	Page     int
}

func (q EventListQuery) params() map[string]any {
	p := map[string]any{}
	if q.Category != "" {
		p["category"] = q.Category
	}
	if q.Featured != nil {
		p["featured"] = *q.Featured
	}
	if q.Upcoming != nil {
		p["upcoming"] = *q.Upcoming
	}
	if q.Limit > 0 {
		p["limit"] = q.Limit
	}
	if q.Page > 0 {
		p["page"] = q.Page
	}
	return p
}

const eventsPath = "/events"

// EventsAPI talks to the site's own events REST endpoints.
type EventsAPI struct {
	api *httpclient.Client
}

func NewEventsAPI(api *httpclient.Client) *EventsAPI {
	return &EventsAPI{api: api}
}

// List returns one page of events.
func (a *EventsAPI) List(ctx context.Context, q EventListQuery) (*model.Envelope[model.Page[model.Event]], error) {
	return httpclient.Get[model.Page[model.Event]](ctx, a.api, eventsPath, httpclient.WithParams(q.params()))
}

func (a *EventsAPI) GetByID(ctx context.Context, id string) (*model.Envelope[model.Event], error) {
	return httpclient.Get[model.Event](ctx, a.api, eventsPath+"/"+url.PathEscape(id))
}

// Featured returns up to limit featured events; limit defaults to 5.
func (a *EventsAPI) Featured(ctx context.Context, limit int) (*model.Envelope[[]model.Event], error) {
	if limit <= 0 {
		limit = 5
	}
	return httpclient.Get[[]model.Event](ctx, a.api, eventsPath+"/featured", httpclient.WithParams(map[string]any{"limit": limit}))
}

// Upcoming returns up to limit upcoming events; limit defaults to 10.
func (a *EventsAPI) Upcoming(ctx context.Context, limit int) (*model.Envelope[[]model.Event], error) {
	if limit <= 0 {
		limit = 10
	}
	return httpclient.Get[[]model.Event](ctx, a.api, eventsPath+"/upcoming", httpclient.WithParams(map[string]any{"limit": limit}))
}

func (a *EventsAPI) ByCategory(ctx context.Context, category string) (*model.Envelope[[]model.Event], error) {
	return httpclient.Get[[]model.Event](ctx, a.api, eventsPath+"/category/"+url.PathEscape(category))
}

func (a *EventsAPI) Create(ctx context.Context, e model.Event) (*model.Envelope[model.Event], error) {
	e.ID = ""
	return httpclient.Post[model.Event](ctx, a.api, eventsPath, e)
}

// Update sends a partial update; only the fields present in patch change.
func (a *EventsAPI) Update(ctx context.Context, id string, patch map[string]any) (*model.Envelope[model.Event], error) {
	return httpclient.Put[model.Event](ctx, a.api, eventsPath+"/"+url.PathEscape(id), patch)
}

func (a *EventsAPI) Delete(ctx context.Context, id string) (*model.Envelope[model.DeleteResult], error) {
	return httpclient.Delete[model.DeleteResult](ctx, a.api, eventsPath+"/"+url.PathEscape(id))
}

func (a *EventsAPI) Register(ctx context.Context, eventID string, reg model.EventRegistration) (*model.Envelope[model.RegistrationResult], error) {
	if reg.NumberOfAttendees <= 0 {
		reg.NumberOfAttendees = 1
	}
	return httpclient.Post[model.RegistrationResult](ctx, a.api, eventsPath+"/"+url.PathEscape(eventID)+"/register", reg)
}

func (a *EventsAPI) CancelRegistration(ctx context.Context, eventID, registrationID string) (*model.Envelope[model.DeleteResult], error) {
	path := eventsPath + "/" + url.PathEscape(eventID) + "/register/" + url.PathEscape(registrationID)
	return httpclient.Delete[model.DeleteResult](ctx, a.api, path)
}

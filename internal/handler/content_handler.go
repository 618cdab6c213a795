package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/metrics"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/repository"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/service"
)

// Services groups the façade the gateway serves.
type Services struct {
	Content   *service.ContentService
	Events    *service.EventsService
	Donations *service.DonationService
	Media     *service.MediaService
	Project   *service.ProjectService
	Social    *service.SocialService
	Contact   *service.ContactService
	Prayer    *service.PrayerTimesService

	// Site REST API; routes backed by these are only mounted when set.
	EventsAPI    *service.EventsAPI
	DonationsAPI *service.DonationsAPI
}

// ContentHandler exposes façade reads and submissions as JSON.
type ContentHandler struct {
	svc      Services
	cache    *repository.ResponseCache
	ttl      time.Duration
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

// NewContentHandler creates the handler. cache may be nil; logger defaults to a no-op.
func NewContentHandler(svc Services, cache *repository.ResponseCache, ttl time.Duration, logger *zap.SugaredLogger) *ContentHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ContentHandler{
		svc:      svc,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		validate: validator.New(),
	}
}

// Register mounts every gateway route on r.
func (h *ContentHandler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/content", h.HandleContent).Methods(http.MethodGet)
	api.HandleFunc("/events", h.HandleEvents).Methods(http.MethodGet)
	if h.svc.EventsAPI != nil {
		api.HandleFunc("/events/{id}", h.HandleEventByID).Methods(http.MethodGet)
	}
	if h.svc.DonationsAPI != nil {
		api.HandleFunc("/donations/stats", h.HandleDonationStats).Methods(http.MethodGet)
	}
	api.HandleFunc("/donation-methods", h.HandleDonationMethods).Methods(http.MethodGet)
	api.HandleFunc("/media/categories", h.HandleMediaCategories).Methods(http.MethodGet)
	api.HandleFunc("/media/items", h.HandleMediaItems).Methods(http.MethodGet)
	api.HandleFunc("/project-progress", h.HandleProjectProgress).Methods(http.MethodGet)
	api.HandleFunc("/social-links", h.HandleSocialLinks).Methods(http.MethodGet)
	api.HandleFunc("/prayer-times/today", h.HandlePrayerTimesToday).Methods(http.MethodGet)
	api.HandleFunc("/contact", h.HandleContact).Methods(http.MethodPost)
	api.HandleFunc("/subscribe", h.HandleSubscribe).Methods(http.MethodPost)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
}

func (h *ContentHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorw("could not encode json", "error", err)
	}
}

func (h *ContentHandler) writeError(w http.ResponseWriter, status int, errMsg, code string) {
	h.writeJSONResponse(w, status, model.Response{
		Error:   &errMsg,
		Code:    code,
		Message: "Error",
	})
}

// writeUpstreamError maps a normalized failure to the status the gateway reports.
func (h *ContentHandler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := httpclient.Normalize(err)
	h.logger.Warnw("upstream call failed",
		"path", r.URL.Path,
		"status", apiErr.Status,
		"code", apiErr.Code,
		"message", apiErr.Message,
	)
	h.writeError(w, GatewayStatus(apiErr), apiErr.Message, apiErr.Code)
}

// GatewayStatus maps an upstream status to the gateway's: network failures and
// upstream 5xx become 502, timeouts 504, and client errors pass through.
func GatewayStatus(apiErr *httpclient.APIError) int {
	switch {
	case apiErr.Status == httpclient.StatusTimeout:
		return http.StatusGatewayTimeout
	case apiErr.IsClientError():
		return apiErr.Status
	default:
		return http.StatusBadGateway
	}
}

func (h *ContentHandler) writeSuccess(w http.ResponseWriter, data interface{}, cached bool) {
	h.writeJSONResponse(w, http.StatusOK, model.Response{
		Data:    data,
		Message: "Success",
		Cached:  cached,
	})
}

// serveCached answers with the cached value for key or the result of load.
func serveCached[T any](h *ContentHandler, w http.ResponseWriter, r *http.Request, key string, load func(ctx context.Context) (T, error)) {
	data, cached, err := repository.Fetch(r.Context(), h.cache, key, h.ttl, load)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	h.writeSuccess(w, data, cached)
}

// HandleContent serves raw content rows. keys is a comma-separated list; when
// absent every row is returned.
func (h *ContentHandler) HandleContent(w http.ResponseWriter, r *http.Request) {
	keys, err := parseContentKeys(r.URL.Query().Get("keys"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "INVALID_KEYS")
		return
	}
	if len(keys) == 0 {
		serveCached(h, w, r, "content:all", func(ctx context.Context) ([]model.ContentRow[json.RawMessage], error) {
			env, err := h.svc.Content.GetAllContent(ctx)
			if err != nil {
				return nil, err
			}
			return env.Data, nil
		})
		return
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	serveCached(h, w, r, "content:"+strings.Join(names, ","), func(ctx context.Context) ([]model.ContentRow[json.RawMessage], error) {
		env, err := h.svc.Content.GetContentByKeys(ctx, keys)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

// parseContentKeys splits, validates, de-duplicates and sorts the keys parameter.
func parseContentKeys(raw string) ([]model.ContentKey, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	known := make(map[model.ContentKey]bool, len(model.AllContentKeys))
	for _, k := range model.AllContentKeys {
		known[k] = true
	}
	seen := make(map[model.ContentKey]bool)
	var keys []model.ContentKey
	for _, part := range strings.Split(raw, ",") {
		k := model.ContentKey(strings.TrimSpace(part))
		if k == "" || seen[k] {
			continue
		}
		if !known[k] {
			return nil, fmt.Errorf("unknown content key %q", k)
		}
		seen[k] = true
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (h *ContentHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	featured, err := optionalBool(q.Get("featured"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid 'featured' query parameter", "INVALID_PARAM")
		return
	}
	upcoming, err := optionalBool(q.Get("upcoming"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid 'upcoming' query parameter", "INVALID_PARAM")
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid 'limit' query parameter", "INVALID_PARAM")
		return
	}
	query := service.EventQuery{
		Featured: featured,
		Upcoming: upcoming != nil && *upcoming,
		Category: q.Get("category"),
		Limit:    limit,
	}

	key := "events:" + boolKey(featured) + ":" + strconv.FormatBool(query.Upcoming) + ":" + strings.ToLower(query.Category) + ":" + strconv.Itoa(limit)
	serveCached(h, w, r, key, func(ctx context.Context) ([]model.Event, error) {
		env, err := h.svc.Events.GetEvents(ctx, query)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

// HandleDonationMethods serves active methods unless active=false is given.
func (h *ContentHandler) HandleDonationMethods(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := boolDefault(r.URL.Query().Get("active"), true)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid 'active' query parameter", "INVALID_PARAM")
		return
	}
	serveCached(h, w, r, "donation-methods:"+strconv.FormatBool(activeOnly), func(ctx context.Context) ([]model.DonationMethod, error) {
		env, err := h.svc.Donations.GetDonationMethods(ctx, activeOnly)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

func (h *ContentHandler) HandleMediaCategories(w http.ResponseWriter, r *http.Request) {
	serveCached(h, w, r, "media-categories", func(ctx context.Context) ([]model.MediaCategory, error) {
		env, err := h.svc.Media.GetMediaCategories(ctx)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

func (h *ContentHandler) HandleMediaItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	featured, err := optionalBool(q.Get("featured"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid 'featured' query parameter", "INVALID_PARAM")
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid 'limit' query parameter", "INVALID_PARAM")
		return
	}
	query := service.MediaQuery{
		CategoryID: q.Get("category"),
		MediaType:  strings.ToLower(q.Get("type")),
		Featured:   featured,
		Limit:      limit,
	}

	key := "media-items:" + query.CategoryID + ":" + query.MediaType + ":" + boolKey(featured) + ":" + strconv.Itoa(limit)
	serveCached(h, w, r, key, func(ctx context.Context) ([]model.MediaItem, error) {
		env, err := h.svc.Media.GetMediaItems(ctx, query)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

// HandleEventByID serves one event from the site's events API.
func (h *ContentHandler) HandleEventByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	serveCached(h, w, r, "events:id:"+id, func(ctx context.Context) (model.Event, error) {
		env, err := h.svc.EventsAPI.GetByID(ctx, id)
		if err != nil {
			return model.Event{}, err
		}
		return env.Data, nil
	})
}

func (h *ContentHandler) HandleDonationStats(w http.ResponseWriter, r *http.Request) {
	serveCached(h, w, r, "donations:stats", func(ctx context.Context) (model.DonationStats, error) {
		env, err := h.svc.DonationsAPI.Stats(ctx)
		if err != nil {
			return model.DonationStats{}, err
		}
		return env.Data, nil
	})
}

func (h *ContentHandler) HandleProjectProgress(w http.ResponseWriter, r *http.Request) {
	serveCached(h, w, r, "project-progress", func(ctx context.Context) (*model.ProjectProgress, error) {
		env, err := h.svc.Project.GetProjectProgress(ctx)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

// HandleSocialLinks serves active links unless active=false is given.
func (h *ContentHandler) HandleSocialLinks(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := boolDefault(r.URL.Query().Get("active"), true)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid 'active' query parameter", "INVALID_PARAM")
		return
	}
	serveCached(h, w, r, "social-links:"+strconv.FormatBool(activeOnly), func(ctx context.Context) ([]model.SocialLink, error) {
		env, err := h.svc.Social.GetSocialLinks(ctx, activeOnly)
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

// HandlePrayerTimesToday serves today's timetable row. The monthly table is
// cached by the prayer service, so no gateway cache is applied here.
func (h *ContentHandler) HandlePrayerTimesToday(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.Prayer.GetTodayPrayerTimes(r.Context())
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	if day == nil {
		h.writeError(w, http.StatusNotFound, "No prayer times published for today", "NOT_FOUND")
		return
	}
	h.writeSuccess(w, day, false)
}

func (h *ContentHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var msg model.ContactMessage
	if !h.decodeAndValidate(w, r, &msg) {
		return
	}
	if _, err := h.svc.Contact.AddContactMessage(r.Context(), msg); err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, model.Response{Message: "Message sent"})
}

func (h *ContentHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var sub model.Subscriber
	if !h.decodeAndValidate(w, r, &sub) {
		return
	}
	if _, err := h.svc.Contact.AddSubscriber(r.Context(), sub); err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, model.Response{Message: "Subscribed"})
}

const maxBodyBytes = 64 << 10

func (h *ContentHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_BODY")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error(), "VALIDATION_FAILED")
		return false
	}
	return true
}

func (h *ContentHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, model.Response{Message: "ok"})
}

func (h *ContentHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
}

func (h *ContentHandler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotFound, "Not found", "")
}

func optionalBool(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func boolDefault(raw string, fallback bool) (bool, error) {
	v, err := optionalBool(raw)
	if err != nil || v == nil {
		return fallback, err
	}
	return *v, nil
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid integer")
	}
	return v, nil
}

func boolKey(v *bool) string {
	if v == nil {
		return "any"
	}
	return strconv.FormatBool(*v)
}

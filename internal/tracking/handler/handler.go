package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"supernomad/internal/location"
	"supernomad/internal/tracking/engine"
	"supernomad/internal/tracking/models"
	"supernomad/internal/tracking/registry"
	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/platform/httputil"
	"supernomad/pkg/requestcontext"
)

const defaultNotificationLimit = 20

// Service defines the tracking operations the handler needs.
type Service interface {
	ListCountries(ctx context.Context) []*models.TrackedCountry
	AddCountry(ctx context.Context, in registry.NewCountry) (*models.TrackedCountry, error)
	RemoveCountry(ctx context.Context, countryID id.CountryID) error
	UpdateLimit(ctx context.Context, countryID id.CountryID, dayLimit int) (*models.TrackedCountry, error)
	ResetCountry(ctx context.Context, countryID id.CountryID) (*models.TrackedCountry, error)
	ToggleCounting(ctx context.Context, countryID id.CountryID) (*models.TrackedCountry, error)
	ConfirmLocation(ctx context.Context, sampleID id.SampleID, isCorrect bool) (*engine.Result, error)
	PendingConfirmations(ctx context.Context) []models.LocationSample
}

// LocationSource accepts device fixes and reports the latest one.
type LocationSource interface {
	Push(ctx context.Context, fix location.Fix) (models.LocationSample, error)
	CurrentLocation(ctx context.Context) (models.LocationSample, error)
}

// NotificationFeed serves recently dispatched notifications.
type NotificationFeed interface {
	Recent(limit int) []models.Notification
}

type Handler struct {
	service   Service
	locations LocationSource
	feed      NotificationFeed
	logger    *slog.Logger
	zone      *time.Location
}

type Option func(*Handler)

// WithTimeZone sets the zone used to compute window figures in responses.
func WithTimeZone(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.zone = loc
		}
	}
}

func New(service Service, locations LocationSource, feed NotificationFeed, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		locations: locations,
		feed:      feed,
		logger:    logger,
		zone:      time.UTC,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/countries", h.HandleListCountries)
	r.Post("/countries", h.HandleAddCountry)
	r.Delete("/countries/{id}", h.HandleRemoveCountry)
	r.Put("/countries/{id}/limit", h.HandleUpdateLimit)
	r.Post("/countries/{id}/reset", h.HandleReset)
	r.Post("/countries/{id}/toggle", h.HandleToggle)

	r.Post("/location", h.HandlePushLocation)
	r.Get("/location/current", h.HandleCurrentLocation)
	r.Get("/location/pending", h.HandlePending)
	r.Post("/location/pending/{id}/confirm", h.HandleConfirm)

	r.Get("/notifications", h.HandleNotifications)
}

func (h *Handler) today(ctx context.Context) models.Date {
	return models.DateOf(requestcontext.Now(ctx), h.zone)
}

func (h *Handler) HandleListCountries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.today(ctx)
	countries := h.service.ListCountries(ctx)
	resp := CountriesResponse{Countries: make([]CountryResponse, 0, len(countries))}
	for _, c := range countries {
		resp.Countries = append(resp.Countries, toCountryResponse(c, today))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleAddCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AddCountryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.AddCountry(ctx, req.toNewCountry())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to add country",
			"request_id", requestID,
			"code", req.Code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCountryResponse(c, h.today(ctx)))
}

func (h *Handler) HandleRemoveCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countryID, err := id.ParseCountryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveCountry(ctx, countryID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleUpdateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countryID, err := id.ParseCountryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateLimitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeCountry(w, r, func(ctx context.Context) (*models.TrackedCountry, error) {
		return h.service.UpdateLimit(ctx, countryID, req.DayLimit)
	})
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	countryID, err := id.ParseCountryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeCountry(w, r, func(ctx context.Context) (*models.TrackedCountry, error) {
		return h.service.ResetCountry(ctx, countryID)
	})
}

func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	countryID, err := id.ParseCountryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeCountry(w, r, func(ctx context.Context) (*models.TrackedCountry, error) {
		return h.service.ToggleCounting(ctx, countryID)
	})
}

func (h *Handler) writeCountry(w http.ResponseWriter, r *http.Request, fn func(context.Context) (*models.TrackedCountry, error)) {
	ctx := r.Context()
	c, err := fn(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCountryResponse(c, h.today(ctx)))
}

// HandlePushLocation accepts a device fix. The sample has been processed,
// parked for confirmation or dropped by the time the response is written.
func (h *Handler) HandlePushLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LocationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sample, err := h.locations.Push(ctx, req.toFix())
	if err != nil {
		h.logger.WarnContext(ctx, "location fix rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := toSampleResponse(sample)
	_, resp.Dropped = sample.Malformed(requestcontext.Now(ctx))
	httputil.WriteJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleCurrentLocation(w http.ResponseWriter, r *http.Request) {
	sample, err := h.locations.CurrentLocation(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSampleResponse(sample))
}

func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	pending := h.service.PendingConfirmations(r.Context())
	resp := PendingResponse{Pending: make([]SampleResponse, 0, len(pending))}
	for _, s := range pending {
		resp.Pending = append(resp.Pending, toSampleResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sampleID, err := id.ParseSampleID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfirmRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.ConfirmLocation(ctx, sampleID, *req.Correct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ConfirmResponse{Notifications: make([]models.Notification, 0, len(res.Events))}
	for _, ev := range res.Events {
		resp.Notifications = append(resp.Notifications, ev.Notification())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	httputil.WriteJSON(w, http.StatusOK, NotificationsResponse{Notifications: h.feed.Recent(limit)})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"supernomad/internal/subscription"
	"supernomad/pkg/platform/httputil"
	"supernomad/pkg/requestcontext"
)

// Service defines the subscription operations the handler needs.
type Service interface {
	Current(ctx context.Context) subscription.Subscription
	SetTier(ctx context.Context, tier subscription.Tier) (subscription.Subscription, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/subscription", h.HandleGet)
	r.Put("/subscription", h.HandleSetTier)
}

// SetTierRequest is the body of PUT /subscription.
type SetTierRequest struct {
	Tier string `json:"tier"`

	parsed subscription.Tier
}

func (r *SetTierRequest) Validate() error {
	tier, err := subscription.ParseTier(r.Tier)
	if err != nil {
		return err
	}
	r.parsed = tier
	return nil
}

// SubscriptionResponse is returned by both endpoints.
type SubscriptionResponse struct {
	Tier         subscription.Tier `json:"tier"`
	MaxCountries *int              `json:"max_countries"`
}

func toResponse(sub subscription.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{Tier: sub.Tier}
	if limit := sub.Tier.MaxCountries(); limit != subscription.Unlimited {
		resp.MaxCountries = &limit
	}
	return resp
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.service.Current(r.Context())))
}

func (h *Handler) HandleSetTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SetTierRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sub, err := h.service.SetTier(ctx, req.parsed)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to set subscription tier",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sub))
}

package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"supernomad/internal/chat"
	"supernomad/pkg/platform/httputil"
	"supernomad/pkg/requestcontext"
)

const copyBufferSize = 4096

// Client opens a streamed completion.
type Client interface {
	Stream(ctx context.Context, req chat.Request) (*chat.Stream, error)
}

type Handler struct {
	client Client
	logger *slog.Logger
}

func New(client Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/chat", h.HandleChat)
}

// HandleChat relays the gateway's event stream to the caller, flushing after
// every chunk.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[chat.Request](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	stream, err := h.client.Stream(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "chat request failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	defer stream.Body.Close()

	contentType := stream.ContentType
	if contentType == "" {
		contentType = "text/event-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := stream.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				h.logger.DebugContext(ctx, "chat client went away", "request_id", requestID, "error", err)
				return
			}
			_ = rc.Flush()
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && ctx.Err() == nil {
				h.logger.WarnContext(ctx, "chat stream interrupted", "request_id", requestID, "error", readErr)
			}
			return
		}
	}
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docexchange/internal/notification"
	dErrors "docexchange/pkg/domain-errors"
	"docexchange/pkg/platform/httputil"
	"docexchange/pkg/requestcontext"
)

// Service is the notification coordinator as seen by HTTP.
type Service interface {
	TakePending(ctx context.Context, channel string) (*notification.PendingNotification, error)
	PostResponse(ctx context.Context, channel, requestID, response string) (*notification.Response, error)
	TakeResponse(ctx context.Context, channel string) (*notification.Response, error)
}

// Handler serves the requester's notification mailboxes. The channel is the
// authenticated user id; routes must sit behind RequireAuth.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications/pending", h.handleTakePending)
	r.Post("/notifications/response", h.handlePostResponse)
	r.Get("/notifications/response", h.handleTakeResponse)
}

type pendingResponse struct {
	RequestID          string    `json:"request_id"`
	CivilID            string    `json:"civil_id"`
	RequestedDocuments []string  `json:"requested_documents"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

type responseBody struct {
	RequestID string    `json:"request_id"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type postResponseRequest struct {
	RequestID string `json:"request_id"`
	Response  string `json:"response"`
}

func (r *postResponseRequest) Validate() error {
	r.RequestID = strings.TrimSpace(r.RequestID)
	r.Response = strings.TrimSpace(r.Response)
	if r.RequestID == "" {
		return dErrors.New(dErrors.CodeValidation, "request_id is required")
	}
	if r.Response == "" {
		return dErrors.New(dErrors.CodeValidation, "response is required")
	}
	return nil
}

func (h *Handler) handleTakePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	pending, err := h.service.TakePending(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to take pending notification",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if pending == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pendingResponse(*pending))
}

func (h *Handler) handlePostResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[postResponseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	resp, err := h.service.PostResponse(ctx, requestcontext.UserID(ctx), req.RequestID, req.Response)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to post notification response",
			"request_id", requestID,
			"document_request_id", req.RequestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toResponseBody(resp))
}

func (h *Handler) handleTakeResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	resp, err := h.service.TakeResponse(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to take notification response",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponseBody(resp))
}

func toResponseBody(r *notification.Response) responseBody {
	return responseBody{
		RequestID: r.RequestID,
		Response:  string(r.Response),
		Timestamp: r.Timestamp,
	}
}

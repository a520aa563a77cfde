package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docexchange/internal/notification"
	"docexchange/internal/requests/models"
	dErrors "docexchange/pkg/domain-errors"
	"docexchange/pkg/platform/httputil"
	"docexchange/pkg/requestcontext"
)

type Service interface {
	Resolve(ctx context.Context, rawToken string) (*models.RestrictedView, error)
	Respond(ctx context.Context, rawToken, decision string) (*notification.Response, error)
	Revoke(ctx context.Context, tokenID string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated viewer routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/share/{token}", h.handleResolve)
	r.Post("/share/{token}/decision", h.handleDecision)
}

// RegisterProtected mounts requester routes; they must sit behind RequireAuth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Delete("/share-links/{tokenID}", h.handleRevoke)
}

// restrictedViewResponse is everything an external viewer may see. It has no
// status or creator fields.
type restrictedViewResponse struct {
	ID                 string    `json:"id"`
	CivilID            string    `json:"civil_id"`
	RequestedDocuments []string  `json:"requested_documents"`
	Note               string    `json:"note,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (r *decisionRequest) Validate() error {
	r.Decision = strings.TrimSpace(r.Decision)
	if r.Decision == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}

type decisionResponse struct {
	RequestID  string    `json:"request_id"`
	Decision   string    `json:"decision"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.Resolve(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.logFailure(ctx, "share link resolve failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, restrictedViewResponse{
		ID:                 view.ID.String(),
		CivilID:            view.CivilID,
		RequestedDocuments: view.RequestedDocuments,
		Note:               view.Note,
		CreatedAt:          view.CreatedAt,
		ExpiresAt:          view.ExpiresAt,
	})
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[decisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	resp, err := h.service.Respond(ctx, chi.URLParam(r, "token"), req.Decision)
	if err != nil {
		h.logFailure(ctx, "share decision failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, decisionResponse{
		RequestID:  resp.RequestID,
		Decision:   string(resp.Response),
		RecordedAt: resp.Timestamp,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Revoke(ctx, chi.URLParam(r, "tokenID")); err != nil {
		h.logFailure(ctx, "share link revoke failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logFailure never logs the token; it is a bearer credential.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelInfo
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	)
}

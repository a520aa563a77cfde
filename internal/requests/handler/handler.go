package handler

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docexchange/internal/requests/models"
	"docexchange/internal/requests/service"
	"docexchange/internal/sharelink"
	dErrors "docexchange/pkg/domain-errors"
	audit "docexchange/pkg/platform/audit"
	"docexchange/pkg/platform/httputil"
	"docexchange/pkg/requestcontext"
)

type Service interface {
	ListRequests(ctx context.Context, filter models.ListFilter) ([]*models.DocumentRequest, error)
	GetRequest(ctx context.Context, id models.RequestID) (*models.DocumentRequest, error)
	CreateRequest(ctx context.Context, params service.CreateParams) (*models.DocumentRequest, error)
	UpdateStatus(ctx context.Context, id models.RequestID, status string) (*models.DocumentRequest, error)
	DeleteRequest(ctx context.Context, id models.RequestID) error
	GenerateShareLink(ctx context.Context, id models.RequestID) (*sharelink.Issued, error)
	AuditTrail(ctx context.Context, id models.RequestID) ([]audit.Event, error)
}

// Handler exposes the request lifecycle to authenticated requesters.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/requests", h.handleList)
	r.Post("/requests", h.handleCreate)
	r.Get("/requests/{id}", h.handleGet)
	r.Post("/requests/{id}/status", h.handleUpdateStatus)
	r.Delete("/requests/{id}", h.handleDelete)
	r.Post("/requests/{id}/share-links", h.handleGenerateShareLink)
	r.Get("/requests/{id}/audit", h.handleAuditTrail)
}

// maxTTLSeconds is the largest ttl_seconds that still fits a time.Duration.
const maxTTLSeconds = int64(math.MaxInt64 / int64(time.Second))

type createRequest struct {
	CivilID            string   `json:"civil_id"`
	RequestedDocuments []string `json:"requested_documents"`
	TTLSeconds         *int64   `json:"ttl_seconds,omitempty"`
	Note               string   `json:"note,omitempty"`
}

func (r *createRequest) Validate() error {
	r.CivilID = strings.TrimSpace(r.CivilID)
	if r.CivilID == "" {
		return dErrors.New(dErrors.CodeValidation, "civil_id is required")
	}
	if len(r.RequestedDocuments) == 0 {
		return dErrors.New(dErrors.CodeValidation, "requested_documents must not be empty")
	}
	if r.TTLSeconds != nil && *r.TTLSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must be positive")
	}
	if r.TTLSeconds != nil && *r.TTLSeconds > maxTTLSeconds {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds is too large")
	}
	return nil
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (r *updateStatusRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

type requestResponse struct {
	ID                 string    `json:"id"`
	CivilID            string    `json:"civil_id"`
	RequestedDocuments []string  `json:"requested_documents"`
	Note               string    `json:"note,omitempty"`
	RequestedBy        string    `json:"requested_by"`
	Status             string    `json:"status"`
	Expired            bool      `json:"expired"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
}

type auditResponse struct {
	Events []audit.Event `json:"events"`
}

type listResponse struct {
	Requests []requestResponse `json:"requests"`
}

type shareLinkResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toResponse(req *models.DocumentRequest, now time.Time) requestResponse {
	return requestResponse{
		ID:                 req.ID.String(),
		CivilID:            req.CivilID,
		RequestedDocuments: req.RequestedDocuments,
		Note:               req.Note,
		RequestedBy:        req.RequestedBy,
		Status:             req.Status.String(),
		Expired:            req.IsExpired(now),
		CreatedAt:          req.CreatedAt,
		ExpiresAt:          req.ExpiresAt,
		LastUpdatedAt:      req.LastUpdatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter := models.ListFilter{CivilID: strings.TrimSpace(r.URL.Query().Get("civil_id"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			h.logger.InfoContext(ctx, "invalid status filter", "request_id", requestID, "status", raw)
			httputil.WriteError(w, err)
			return
		}
		filter.Status = status
	}

	list, err := h.service.ListRequests(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "failed to list requests", "", err)
		httputil.WriteError(w, err)
		return
	}
	now := requestcontext.Now(ctx)
	out := listResponse{Requests: make([]requestResponse, 0, len(list))}
	for _, req := range list {
		out.Requests = append(out.Requests, toResponse(req, now))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.service.GetRequest(ctx, id)
	if err != nil {
		h.logFailure(ctx, "failed to get request", id.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(req, requestcontext.Now(ctx)))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	params := service.CreateParams{
		CivilID:            body.CivilID,
		RequestedDocuments: body.RequestedDocuments,
		Note:               body.Note,
	}
	if body.TTLSeconds != nil {
		params.TTL = time.Duration(*body.TTLSeconds) * time.Second
	}

	req, err := h.service.CreateRequest(ctx, params)
	if err != nil {
		h.logFailure(ctx, "failed to create request", "", err)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/requests/"+req.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, toResponse(req, requestcontext.Now(ctx)))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[updateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req, err := h.service.UpdateStatus(ctx, id, body.Status)
	if err != nil {
		h.logFailure(ctx, "failed to update request status", id.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(req, requestcontext.Now(ctx)))
}

// handleDelete answers 204 for any id, including ones that cannot exist.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := models.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.service.DeleteRequest(ctx, id); err != nil {
		h.logFailure(ctx, "failed to delete request", id.String(), err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGenerateShareLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	issued, err := h.service.GenerateShareLink(ctx, id)
	if err != nil {
		h.logFailure(ctx, "failed to generate share link", id.String(), err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "share link issued",
		"request_id", requestcontext.RequestID(ctx),
		"document_request_id", id.String(),
		"token_id", issued.TokenID,
		"expires_at", issued.ExpiresAt,
	)
	httputil.WriteJSON(w, http.StatusCreated, shareLinkResponse{
		Token:     issued.Token,
		TokenID:   issued.TokenID,
		URL:       issued.URL,
		ExpiresAt: issued.ExpiresAt,
	})
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	events, err := h.service.AuditTrail(ctx, id)
	if err != nil {
		h.logFailure(ctx, "failed to read audit trail", id.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditResponse{Events: events})
}

// pathID parses {id}. A malformed id names no request, so it is a 404.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (models.RequestID, bool) {
	id, err := models.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "request not found"))
		return models.RequestID{}, false
	}
	return id, true
}

func (h *Handler) logFailure(ctx context.Context, msg, documentRequestID string, err error) {
	level := slog.LevelInfo
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	}
	if documentRequestID != "" {
		attrs = append(attrs, "document_request_id", documentRequestID)
	}
	h.logger.Log(ctx, level, msg, attrs...)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docexchange/internal/requests/metrics"
	"docexchange/internal/requests/models"
	"docexchange/internal/sharelink"
	dErrors "docexchange/pkg/domain-errors"
	audit "docexchange/pkg/platform/audit"
	"docexchange/pkg/platform/sentinel"
	"docexchange/pkg/requestcontext"
)

const (
	defaultRequestTTL = 7 * 24 * time.Hour
	defaultMaxTTL     = 30 * 24 * time.Hour
)

type Store interface {
	Create(ctx context.Context, req *models.DocumentRequest) error
	FindByID(ctx context.Context, id models.RequestID) (*models.DocumentRequest, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.DocumentRequest, error)
	Execute(ctx context.Context, id models.RequestID, validate func(*models.DocumentRequest) error, mutate func(*models.DocumentRequest)) (*models.DocumentRequest, error)
	Delete(ctx context.Context, id models.RequestID) (bool, error)
}

type ShareLinks interface {
	Generate(ctx context.Context, requestID models.RequestID) (*sharelink.Issued, error)
	RevokeForRequest(ctx context.Context, requestID models.RequestID) (int, error)
}

// Notifier receives newly created requests on the requester's channel.
type Notifier interface {
	PostPending(ctx context.Context, channel string, req *models.DocumentRequest) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuditReader returns the retained trail of one request, oldest first.
type AuditReader interface {
	ListByRequest(ctx context.Context, documentRequestID string) ([]audit.Event, error)
}

// Service owns the document request lifecycle. Handlers call it with parsed
// ids and raw status strings; it translates store failures into domain errors.
type Service struct {
	store      Store
	shareLinks ShareLinks
	notifier   Notifier
	auditor    AuditPublisher
	trail      AuditReader
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	defaultTTL time.Duration
	maxTTL     time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithAuditReader(r AuditReader) Option {
	return func(s *Service) {
		s.trail = r
	}
}

// WithDefaultTTL sets the lifetime used when a caller supplies none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithMaxTTL bounds caller supplied lifetimes.
func WithMaxTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.maxTTL = ttl
		}
	}
}

func New(store Store, shareLinks ShareLinks, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:      store,
		shareLinks: shareLinks,
		notifier:   notifier,
		logger:     slog.Default(),
		tracer:     otel.Tracer("docexchange/requests"),
		defaultTTL: defaultRequestTTL,
		maxTTL:     defaultMaxTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxTTL < s.defaultTTL {
		s.maxTTL = s.defaultTTL
	}
	return s
}

// CreateParams carries the caller's input. A zero TTL selects the default.
type CreateParams struct {
	CivilID            string
	RequestedDocuments []string
	Note               string
	TTL                time.Duration
}

func (s *Service) ListRequests(ctx context.Context, filter models.ListFilter) (list []*models.DocumentRequest, err error) {
	ctx, span := s.tracer.Start(ctx, "requests.List")
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("list", time.Now())

	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown status %q", filter.Status))
	}
	list, err = s.store.List(ctx, filter)
	if err != nil {
		return nil, s.persistenceError(ctx, "list", models.RequestID{}, err)
	}
	return list, nil
}

func (s *Service) GetRequest(ctx context.Context, id models.RequestID) (req *models.DocumentRequest, err error) {
	ctx, span := s.tracer.Start(ctx, "requests.Get", trace.WithAttributes(attribute.String("document_request.id", id.String())))
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("get", time.Now())

	req, err = s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, "get", id, err)
	}
	return req, nil
}

// CreateRequest persists a new pending request and then offers it on the
// requester's pending channel. A failed offer is logged and does not fail
// the creation.
func (s *Service) CreateRequest(ctx context.Context, params CreateParams) (req *models.DocumentRequest, err error) {
	ctx, span := s.tracer.Start(ctx, "requests.Create")
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("create", time.Now())

	ttl := params.TTL
	switch {
	case ttl < 0:
		return nil, dErrors.New(dErrors.CodeValidation, "ttl must be positive")
	case ttl == 0:
		ttl = s.defaultTTL
	case ttl > s.maxTTL:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("ttl must not exceed %s", s.maxTTL))
	}

	requestedBy := requestcontext.UserID(ctx)
	req, err = models.NewDocumentRequest(models.NewRequestID(), params.CivilID, params.RequestedDocuments,
		params.Note, requestedBy, requestcontext.Now(ctx), ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	span.SetAttributes(attribute.String("document_request.id", req.ID.String()))

	if err = s.store.Create(ctx, req); err != nil {
		return nil, s.persistenceError(ctx, "create", req.ID, err)
	}
	s.metrics.IncrementCreated()
	s.logger.InfoContext(ctx, "document request created",
		"document_request_id", req.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
		"documents", len(req.RequestedDocuments),
	)
	s.emit(ctx, audit.Event{
		Action:            audit.ActionRequestCreated,
		DocumentRequestID: req.ID.String(),
		ToState:           string(req.Status),
	})

	if s.notifier != nil {
		if notifyErr := s.notifier.PostPending(ctx, requestedBy, req); notifyErr != nil {
			s.logger.WarnContext(ctx, "failed to post pending notification",
				"document_request_id", req.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", notifyErr,
			)
		}
	}
	return req, nil
}

// UpdateStatus applies a transition atomically per request. Rejected
// transitions leave the stored record untouched.
func (s *Service) UpdateStatus(ctx context.Context, id models.RequestID, status string) (req *models.DocumentRequest, err error) {
	ctx, span := s.tracer.Start(ctx, "requests.UpdateStatus", trace.WithAttributes(attribute.String("document_request.id", id.String())))
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("update_status", time.Now())

	target, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var from models.Status
	req, err = s.store.Execute(ctx, id,
		func(current *models.DocumentRequest) error {
			from = current.Status
			return current.CanTransitionTo(target, now)
		},
		func(current *models.DocumentRequest) {
			current.ApplyTransition(target, now)
		},
	)
	if err != nil {
		var transitionErr *models.TransitionError
		if errors.As(err, &transitionErr) {
			s.metrics.IncrementTransition(string(target), "rejected")
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidTransition, transitionErr.Error())
		}
		return nil, s.translate(ctx, "update_status", id, err)
	}

	s.metrics.IncrementTransition(string(target), "ok")
	s.logger.InfoContext(ctx, "document request status changed",
		"document_request_id", id.String(),
		"request_id", requestcontext.RequestID(ctx),
		"from", from,
		"to", target,
	)
	s.emit(ctx, audit.Event{
		Action:            audit.ActionRequestStatusChanged,
		DocumentRequestID: id.String(),
		FromState:         string(from),
		ToState:           string(target),
	})
	return req, nil
}

// DeleteRequest removes a request and its share links. Deleting an unknown
// id succeeds.
func (s *Service) DeleteRequest(ctx context.Context, id models.RequestID) (err error) {
	ctx, span := s.tracer.Start(ctx, "requests.Delete", trace.WithAttributes(attribute.String("document_request.id", id.String())))
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("delete", time.Now())

	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return s.persistenceError(ctx, "delete", id, err)
	}

	revoked := 0
	if s.shareLinks != nil {
		n, revokeErr := s.shareLinks.RevokeForRequest(ctx, id)
		if revokeErr != nil {
			// Links of a deleted request already resolve to not found.
			s.logger.WarnContext(ctx, "failed to revoke share links of deleted request",
				"document_request_id", id.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", revokeErr,
			)
		}
		revoked = n
	}

	if existed {
		s.metrics.IncrementDeleted()
		s.logger.InfoContext(ctx, "document request deleted",
			"document_request_id", id.String(),
			"request_id", requestcontext.RequestID(ctx),
			"revoked_links", revoked,
		)
		s.emit(ctx, audit.Event{
			Action:            audit.ActionRequestDeleted,
			DocumentRequestID: id.String(),
		})
	}
	return nil
}

// GenerateShareLink issues a link for an existing request.
func (s *Service) GenerateShareLink(ctx context.Context, id models.RequestID) (issued *sharelink.Issued, err error) {
	ctx, span := s.tracer.Start(ctx, "requests.GenerateShareLink", trace.WithAttributes(attribute.String("document_request.id", id.String())))
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("generate_share_link", time.Now())

	return s.shareLinks.Generate(ctx, id)
}

// AuditTrail lists the events recorded for a request. The trail outlives
// the request, so a deleted request with events still has one; an id with
// neither is not found.
func (s *Service) AuditTrail(ctx context.Context, id models.RequestID) (events []audit.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "requests.AuditTrail", trace.WithAttributes(attribute.String("document_request.id", id.String())))
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("audit_trail", time.Now())

	if s.trail != nil {
		events, err = s.trail.ListByRequest(ctx, id.String())
		if err != nil {
			return nil, s.persistenceError(ctx, "read audit trail of", id, err)
		}
	}
	if len(events) > 0 {
		return events, nil
	}
	if _, err = s.store.FindByID(ctx, id); err != nil {
		return nil, s.translate(ctx, "find", id, err)
	}
	return []audit.Event{}, nil
}

// translate maps store sentinels to domain errors; anything else is a
// persistence failure.
func (s *Service) translate(ctx context.Context, op string, id models.RequestID, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	return s.persistenceError(ctx, op, id, err)
}

func (s *Service) persistenceError(ctx context.Context, op string, id models.RequestID, err error) error {
	attrs := []any{
		"operation", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if !id.IsNil() {
		attrs = append(attrs, "document_request_id", id.String())
	}
	s.logger.ErrorContext(ctx, "request store failure", attrs...)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op+" request")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.ActorID = requestcontext.UserID(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
}

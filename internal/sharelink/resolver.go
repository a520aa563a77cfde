// Package sharelink issues and resolves unauthenticated share links that give
// a citizen a restricted view of one document request.
//
// A link is "<tokenID>.<secret>". Only a bcrypt hash of the secret is kept.
// Unknown ids, wrong secrets and revoked links all resolve as NotFound.
// Expired links keep resolving as Expired for the retention window, after
// which they are removed and become NotFound.
package sharelink

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"docexchange/internal/notification"
	"docexchange/internal/requests/models"
	dErrors "docexchange/pkg/domain-errors"
	audit "docexchange/pkg/platform/audit"
	"docexchange/pkg/platform/middleware/metadata"
	"docexchange/pkg/platform/sentinel"
	"docexchange/pkg/requestcontext"
)

// Store persists share tokens.
type Store interface {
	Save(ctx context.Context, token *Token) error
	FindByID(ctx context.Context, id string) (*Token, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByRequest(ctx context.Context, requestID models.RequestID) (int, error)
	RemoveExpiredAt(ctx context.Context, cutoff time.Time) (int, error)
}

// RequestReader is the read side of the request store.
type RequestReader interface {
	FindByID(ctx context.Context, id models.RequestID) (*models.DocumentRequest, error)
}

// ResponsePoster relays a decision to the request owner's response slot.
type ResponsePoster interface {
	PostResponse(ctx context.Context, channel, requestID, response string) (*notification.Response, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Resolver struct {
	tokens    Store
	requests  RequestReader
	responses ResponsePoster
	auditor   AuditPublisher
	metrics   *Metrics
	logger    *slog.Logger

	ttl       time.Duration
	retention time.Duration
	baseURL   string
	hashCost  int
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Resolver) {
		r.auditor = p
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithTTL bounds how long a link is valid. It never outlives its request.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRetention sets how long an expired link still reports Expired.
func WithRetention(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.retention = d
		}
	}
}

// WithBaseURL sets the public origin used to build link URLs.
func WithBaseURL(u string) Option {
	return func(r *Resolver) {
		r.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(r *Resolver) {
		r.hashCost = cost
	}
}

func New(tokens Store, requests RequestReader, responses ResponsePoster, opts ...Option) *Resolver {
	r := &Resolver{
		tokens:    tokens,
		requests:  requests,
		responses: responses,
		logger:    slog.Default(),
		ttl:       72 * time.Hour,
		retention: 24 * time.Hour,
		hashCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate issues a new link for an existing request. Its expiry is the
// earlier of the request's expiry and now plus the link TTL.
func (r *Resolver) Generate(ctx context.Context, requestID models.RequestID) (*Issued, error) {
	req, err := r.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, r.wrapRequestErr(ctx, "generate", requestID, err)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate share token")
	}
	hash, err := hashSecret(secret, r.hashCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash share token")
	}

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(r.ttl)
	if req.ExpiresAt.Before(expiresAt) {
		expiresAt = req.ExpiresAt
	}
	token := &Token{
		ID:         uuid.NewString(),
		RequestID:  req.ID,
		OwnerID:    req.RequestedBy,
		SecretHash: hash,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	if err := r.tokens.Save(ctx, token); err != nil {
		r.logger.ErrorContext(ctx, "failed to save share token",
			"document_request_id", req.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save share token")
	}

	r.metrics.incGenerated()
	r.emit(ctx, audit.Event{
		Action:            audit.ActionShareLinkCreated,
		DocumentRequestID: req.ID.String(),
		TokenID:           token.ID,
		ActorID:           requestcontext.UserID(ctx),
	})

	raw := token.ID + "." + secret
	return &Issued{
		Token:     raw,
		TokenID:   token.ID,
		URL:       r.baseURL + "/share/" + raw,
		RequestID: req.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve returns the restricted view behind a link.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (*models.RestrictedView, error) {
	token, req, err := r.lookup(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, r.viewerEvent(ctx, audit.ActionShareLinkViewed, token))
	view := req.RestrictedView()
	return &view, nil
}

// Respond records the viewer's decision in the owner's response slot. The
// request's status is not changed; the owner confirms it through the status
// update operation.
func (r *Resolver) Respond(ctx context.Context, rawToken, decision string) (*notification.Response, error) {
	d, err := models.ParseDecision(decision)
	if err != nil {
		return nil, err
	}
	token, req, err := r.lookup(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(d.Status()) {
		return nil, dErrors.Wrap(&models.TransitionError{From: req.Status, To: d.Status()},
			dErrors.CodeInvalidTransition, "request is no longer awaiting a decision")
	}

	resp, err := r.responses.PostResponse(ctx, token.OwnerID, req.ID.String(), string(d))
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to relay share decision",
			"document_request_id", req.ID.String(),
			"token_id", token.ID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}

	event := r.viewerEvent(ctx, audit.ActionShareDecisionRecorded, token)
	event.Decision = string(d)
	r.emit(ctx, event)
	return resp, nil
}

// Revoke deletes a link by id. Revoking an unknown id is not an error.
func (r *Resolver) Revoke(ctx context.Context, tokenID string) error {
	tokenID = strings.TrimSpace(tokenID)
	token, err := r.tokens.FindByID(ctx, tokenID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load share token")
	}
	deleted, err := r.tokens.Delete(ctx, tokenID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke share token")
	}
	if deleted {
		r.emit(ctx, audit.Event{
			Action:            audit.ActionShareLinkRevoked,
			DocumentRequestID: token.RequestID.String(),
			TokenID:           token.ID,
			ActorID:           requestcontext.UserID(ctx),
		})
	}
	return nil
}

// RevokeForRequest deletes every link of a request and returns how many
// were removed.
func (r *Resolver) RevokeForRequest(ctx context.Context, requestID models.RequestID) (int, error) {
	n, err := r.tokens.DeleteByRequest(ctx, requestID)
	if err != nil {
		return n, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke share tokens")
	}
	return n, nil
}

// RemoveExpired drops links whose retention window has passed.
func (r *Resolver) RemoveExpired(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-r.retention)
	n, err := r.tokens.RemoveExpiredAt(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.metrics.addRemoved(n)
	return n, nil
}

// RunCleanup calls RemoveExpired every interval until ctx is cancelled.
func (r *Resolver) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.RemoveExpired(ctx)
			if err != nil {
				r.logger.WarnContext(ctx, "share token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.InfoContext(ctx, "removed expired share tokens", "count", n)
			}
		}
	}
}

// lookup authenticates the raw token and loads its request.
func (r *Resolver) lookup(ctx context.Context, rawToken string) (*Token, *models.DocumentRequest, error) {
	notFound := dErrors.New(dErrors.CodeNotFound, "share link not found")

	id, secret, ok := splitToken(rawToken)
	if !ok {
		r.metrics.incResolved("not_found")
		return nil, nil, notFound
	}
	token, err := r.tokens.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.metrics.incResolved("not_found")
			return nil, nil, notFound
		}
		r.logger.ErrorContext(ctx, "failed to load share token",
			"token_id", id,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load share token")
	}
	match, err := verifySecret(secret, token.SecretHash)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify share token")
	}
	if !match {
		r.metrics.incResolved("not_found")
		return nil, nil, notFound
	}
	if token.IsExpired(requestcontext.Now(ctx)) {
		r.metrics.incResolved("expired")
		return nil, nil, dErrors.New(dErrors.CodeExpired, "share link has expired")
	}

	req, err := r.requests.FindByID(ctx, token.RequestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.metrics.incResolved("not_found")
			return nil, nil, notFound
		}
		return nil, nil, r.wrapRequestErr(ctx, "resolve", token.RequestID, err)
	}
	r.metrics.incResolved("ok")
	return token, req, nil
}

func (r *Resolver) viewerEvent(ctx context.Context, action audit.Action, token *Token) audit.Event {
	client := metadata.FromContext(ctx)
	return audit.Event{
		Action:            action,
		DocumentRequestID: token.RequestID.String(),
		TokenID:           token.ID,
		ClientIP:          client.IP,
		Device:            client.Device,
	}
}

func (r *Resolver) wrapRequestErr(ctx context.Context, op string, id models.RequestID, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	r.logger.ErrorContext(ctx, "request store failure",
		"operation", op,
		"document_request_id", id.String(),
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
}

func (r *Resolver) emit(ctx context.Context, event audit.Event) {
	if r.auditor == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := r.auditor.Emit(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

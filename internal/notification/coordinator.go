// Package notification relays "new request" and "decision" signals between
// a requester's contexts through two single-slot mailboxes per channel.
//
// Slots are last-write-wins: a second post before a take discards the first
// value. Concurrent writers interleave without ordering. A take reads and
// clears.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"docexchange/internal/requests/models"
	dErrors "docexchange/pkg/domain-errors"
	"docexchange/pkg/requestcontext"
)

// Slot is the shared medium behind the mailboxes.
type Slot interface {
	Put(ctx context.Context, channel string, kind Kind, payload []byte) error
	// Take returns the stored payload and clears it. ok is false when empty.
	Take(ctx context.Context, channel string, kind Kind) (payload []byte, ok bool, err error)
}

// Signaler tells listeners on a channel that a pending notification arrived.
type Signaler interface {
	Signal(ctx context.Context, channel, requestID string)
}

type Coordinator struct {
	slot     Slot
	signaler Signaler
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithSignaler(s Signaler) Option {
	return func(c *Coordinator) {
		c.signaler = s
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func New(slot Slot, opts ...Option) *Coordinator {
	c := &Coordinator{slot: slot, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.signaler == nil {
		c.signaler = NewLogSignaler(c.logger)
	}
	return c
}

// PostPending overwrites the pending slot of channel with a snapshot of req
// and signals interest.
func (c *Coordinator) PostPending(ctx context.Context, channel string, req *models.DocumentRequest) error {
	if err := requireChannel(channel); err != nil {
		return err
	}
	payload, err := json.Marshal(snapshotOf(req))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode pending notification")
	}
	if err := c.slot.Put(ctx, channel, KindPending, payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to post pending notification")
	}
	c.metrics.incPosted(KindPending)
	c.signaler.Signal(ctx, channel, req.ID.String())
	return nil
}

// TakePending returns and clears the pending slot. A nil result means the
// slot was empty or held an undecodable payload.
func (c *Coordinator) TakePending(ctx context.Context, channel string) (*PendingNotification, error) {
	var out PendingNotification
	ok, err := c.take(ctx, channel, KindPending, &out, func() bool { return out.valid() })
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// PostResponse overwrites the response slot with a timestamped decision.
// response must be "accepted" or "rejected".
func (c *Coordinator) PostResponse(ctx context.Context, channel, requestID, response string) (*Response, error) {
	if err := requireChannel(channel); err != nil {
		return nil, err
	}
	id, err := models.ParseRequestID(requestID)
	if err != nil {
		return nil, err
	}
	decision, err := models.ParseDecision(response)
	if err != nil {
		return nil, err
	}
	resp := Response{
		RequestID: id.String(),
		Response:  decision,
		Timestamp: requestcontext.Now(ctx),
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode notification response")
	}
	if err := c.slot.Put(ctx, channel, KindResponse, payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to post notification response")
	}
	c.metrics.incPosted(KindResponse)
	return &resp, nil
}

// TakeResponse returns and clears the response slot. A nil result means the
// slot was empty or held an undecodable payload.
func (c *Coordinator) TakeResponse(ctx context.Context, channel string) (*Response, error) {
	var out Response
	ok, err := c.take(ctx, channel, KindResponse, &out, func() bool { return out.valid() })
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

func (c *Coordinator) take(ctx context.Context, channel string, kind Kind, dst any, valid func() bool) (bool, error) {
	if err := requireChannel(channel); err != nil {
		return false, err
	}
	payload, ok, err := c.slot.Take(ctx, channel, kind)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to take %s notification", kind))
	}
	if !ok {
		c.metrics.incTaken(kind, "empty")
		return false, nil
	}
	if err := json.Unmarshal(payload, dst); err != nil || !valid() {
		c.metrics.incMalformed(kind)
		c.logger.WarnContext(ctx, "discarded malformed notification payload",
			"channel", channel,
			"kind", kind,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return false, nil
	}
	c.metrics.incTaken(kind, "delivered")
	return true, nil
}

func requireChannel(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "notification channel requires an authenticated requester")
	}
	return nil
}

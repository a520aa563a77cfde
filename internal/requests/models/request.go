package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "docexchange/pkg/domain-errors"
	strs "docexchange/pkg/platform/strings"
)

const (
	maxCivilIDLength      = 64
	maxDocumentTypeLength = 128
	maxRequestedDocuments = 50
	maxNoteLength         = 1000
)

// RequestID identifies a document request for its whole lifetime.
type RequestID uuid.UUID

func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

// ParseRequestID parses an id from external input.
func ParseRequestID(s string) (RequestID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil || parsed == uuid.Nil {
		return RequestID{}, dErrors.New(dErrors.CodeValidation, "invalid request id")
	}
	return RequestID(parsed), nil
}

func (id RequestID) String() string {
	return uuid.UUID(id).String()
}

func (id RequestID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// DocumentRequest is the aggregate root for a request asking a citizen to
// supply documents.
//
// Invariants:
//   - CivilID is non-empty
//   - RequestedDocuments is non-empty, trimmed and free of duplicates
//   - ExpiresAt is strictly after CreatedAt
//   - Status moves only along the edges in the transition table
//   - RequestedBy is never exposed to external viewers
type DocumentRequest struct {
	ID                 RequestID
	CivilID            string
	RequestedDocuments []string
	Note               string
	RequestedBy        string
	Status             Status
	CreatedAt          time.Time
	ExpiresAt          time.Time
	LastUpdatedAt      time.Time
}

// NewDocumentRequest builds a pending request. Inputs are normalised before
// the invariants are checked.
func NewDocumentRequest(id RequestID, civilID string, documents []string, note, requestedBy string, now time.Time, ttl time.Duration) (*DocumentRequest, error) {
	civilID = strings.TrimSpace(civilID)
	if civilID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "civil id cannot be empty")
	}
	if len(civilID) > maxCivilIDLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("civil id must be at most %d characters", maxCivilIDLength))
	}
	docs := strs.DedupeAndTrim(documents)
	if len(docs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requested documents cannot be empty")
	}
	if len(docs) > maxRequestedDocuments {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("at most %d documents may be requested", maxRequestedDocuments))
	}
	for _, d := range docs {
		if len(d) > maxDocumentTypeLength {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("document type must be at most %d characters", maxDocumentTypeLength))
		}
	}
	note = strings.TrimSpace(note)
	if len(note) > maxNoteLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("note must be at most %d characters", maxNoteLength))
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "ttl must be positive")
	}
	return &DocumentRequest{
		ID:                 id,
		CivilID:            civilID,
		RequestedDocuments: docs,
		Note:               note,
		RequestedBy:        requestedBy,
		Status:             StatusPending,
		CreatedAt:          now,
		ExpiresAt:          now.Add(ttl),
		LastUpdatedAt:      now,
	}, nil
}

// IsExpired is the derived read-time expiry: a pending request past its
// deadline. Stored status is never rewritten.
func (r *DocumentRequest) IsExpired(now time.Time) bool {
	return r.Status == StatusPending && !now.Before(r.ExpiresAt)
}

// CanTransitionTo validates target against the transition table and expiry.
// Use with ApplyTransition inside store Execute callbacks.
func (r *DocumentRequest) CanTransitionTo(target Status, now time.Time) error {
	if !r.Status.CanTransitionTo(target) {
		return &TransitionError{From: r.Status, To: target}
	}
	if r.IsExpired(now) {
		return &TransitionError{From: r.Status, To: target, Reason: "request expired"}
	}
	return nil
}

// ApplyTransition sets the new status. Call CanTransitionTo first.
func (r *DocumentRequest) ApplyTransition(target Status, now time.Time) {
	r.Status = target
	r.LastUpdatedAt = now
}

// RestrictedView projects the fields an unauthenticated share-link viewer may
// see.
func (r *DocumentRequest) RestrictedView() RestrictedView {
	return RestrictedView{
		ID:                 r.ID,
		CivilID:            r.CivilID,
		RequestedDocuments: append([]string(nil), r.RequestedDocuments...),
		Note:               r.Note,
		CreatedAt:          r.CreatedAt,
		ExpiresAt:          r.ExpiresAt,
	}
}

// Clone returns a deep copy so stores never hand out shared slices.
func (r *DocumentRequest) Clone() *DocumentRequest {
	c := *r
	c.RequestedDocuments = append([]string(nil), r.RequestedDocuments...)
	return &c
}

// RestrictedView is the confidentiality boundary for external viewers. It has
// no status and no creator fields by construction.
type RestrictedView struct {
	ID                 RequestID
	CivilID            string
	RequestedDocuments []string
	Note               string
	CreatedAt          time.Time
	ExpiresAt          time.Time
}

// TransitionError reports a rejected status change with both ends.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot transition request from %s to %s", e.From, e.To)
	if e.Reason != "" {
		return msg + ": " + e.Reason
	}
	return msg
}

// ListFilter narrows ListRequests. Zero values match everything.
type ListFilter struct {
	Status  Status
	CivilID string
}

// Matches reports whether r passes the filter.
func (f ListFilter) Matches(r *DocumentRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.CivilID != "" && r.CivilID != f.CivilID {
		return false
	}
	return true
}

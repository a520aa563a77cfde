package notification

import (
	"time"

	"docexchange/internal/requests/models"
)

// Kind selects one of the two independent single-slot channels.
type Kind string

const (
	KindPending  Kind = "pending"
	KindResponse Kind = "response"
)

// PendingNotification is the snapshot of a request that needs attention.
type PendingNotification struct {
	RequestID          string    `json:"request_id"`
	CivilID            string    `json:"civil_id"`
	RequestedDocuments []string  `json:"requested_documents"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

func snapshotOf(req *models.DocumentRequest) PendingNotification {
	return PendingNotification{
		RequestID:          req.ID.String(),
		CivilID:            req.CivilID,
		RequestedDocuments: append([]string(nil), req.RequestedDocuments...),
		CreatedAt:          req.CreatedAt,
		ExpiresAt:          req.ExpiresAt,
	}
}

func (p PendingNotification) valid() bool {
	return p.RequestID != "" && p.CivilID != "" && len(p.RequestedDocuments) > 0
}

// Response is a citizen's decision relayed back to the requester.
type Response struct {
	RequestID string          `json:"request_id"`
	Response  models.Decision `json:"response"`
	Timestamp time.Time       `json:"timestamp"`
}

func (r Response) valid() bool {
	if _, err := models.ParseRequestID(r.RequestID); err != nil {
		return false
	}
	if _, err := models.ParseDecision(string(r.Response)); err != nil {
		return false
	}
	return !r.Timestamp.IsZero()
}

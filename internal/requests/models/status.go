package models

import (
	"fmt"
	"strings"

	dErrors "docexchange/pkg/domain-errors"
)

// Status is the lifecycle state of a document request.
// Invariant: the value is one of the four constants below; construct from
// external input with ParseStatus.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// transitions is the single source of truth for allowed edges. Terminal
// statuses have no outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusCompleted},
	StatusRejected:  nil,
	StatusCompleted: nil,
}

// ParseStatus validates a status string at a trust boundary.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "status is required")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether s -> target is an allowed edge.
// Self transitions are never allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Decision is a responder's answer relayed through a share link.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// ParseDecision validates a decision string at a trust boundary.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionAccepted, DecisionRejected:
		return d, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "decision is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("decision must be accepted or rejected, got %q", s))
	}
}

// Status returns the lifecycle status the decision confirms into.
func (d Decision) Status() Status {
	return Status(d)
}

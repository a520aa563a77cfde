package sharelink

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"docexchange/internal/requests/models"
)

// Token is the stored half of a share link. The secret itself is never
// stored; SecretHash is its bcrypt hash. Tokens are immutable once issued.
type Token struct {
	ID         string
	RequestID  models.RequestID
	OwnerID    string
	SecretHash string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the link stopped granting access at now.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Issued is returned once at generation time; it is the only place the
// plaintext token exists.
type Issued struct {
	Token     string
	TokenID   string
	URL       string
	RequestID models.RequestID
	ExpiresAt time.Time
}

// splitToken separates "<id>.<secret>". ok is false for anything that cannot
// have been issued by Generate.
func splitToken(raw string) (id, secret string, ok bool) {
	id, secret, found := strings.Cut(strings.TrimSpace(raw), ".")
	if !found || secret == "" {
		return "", "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", false
	}
	return id, secret, true
}

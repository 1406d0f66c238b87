// Package auth turns request credentials into an authenticated identity.
package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"identity-service/internal/domain"
	"identity-service/internal/token"
)

// BearerPrefix is the literal scheme prefix required on the Authorization header.
const BearerPrefix = "Bearer "

// TokenValidator verifies a raw bearer token.
type TokenValidator interface {
	Validate(raw string) (token.Claims, error)
}

// Extractor reads the bearer token from request headers.
type Extractor struct {
	tokens TokenValidator
}

func NewExtractor(tokens TokenValidator) *Extractor {
	return &Extractor{tokens: tokens}
}

// Extract returns the identity proven by the Authorization header, or an
// *domain.AuthError describing why the header was rejected.
func (e *Extractor) Extract(header http.Header) (domain.Identity, error) {
	value := header.Get("Authorization")
	if value == "" {
		return domain.Identity{}, domain.NewAuthError(domain.ReasonMissingHeader, nil)
	}
	if !strings.HasPrefix(value, BearerPrefix) {
		return domain.Identity{}, domain.NewAuthError(domain.ReasonBadScheme, nil)
	}

	claims, err := e.tokens.Validate(strings.TrimPrefix(value, BearerPrefix))
	if err != nil {
		return domain.Identity{}, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Identity{}, domain.NewAuthError(domain.ReasonMalformedSubject, err)
	}
	if userID == uuid.Nil {
		return domain.Identity{}, domain.NewAuthError(domain.ReasonMalformedSubject, nil)
	}

	return domain.Identity{UserID: userID}, nil
}

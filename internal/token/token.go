// Package token issues and validates HS256-signed bearer tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"identity-service/internal/domain"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 24 * time.Hour

// ErrEmptyKey is returned when no signing key is configured.
var ErrEmptyKey = errors.New("token signing key is empty")

var signingMethod = jwt.SigningMethodHS256

// Claims is the payload bound into a token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Option customises an Issuer or Validator.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func copyKey(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return append([]byte(nil), key...), nil
}

// Issuer mints signed tokens.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer copies key; ttl must be positive.
func NewIssuer(key []byte, ttl time.Duration, opts ...Option) (*Issuer, error) {
	k, err := copyKey(key)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	o := buildOptions(opts)
	return &Issuer{key: k, ttl: ttl, now: o.now}, nil
}

// Issue signs a token for subject that expires ttl from now.
func (i *Issuer) Issue(subject uuid.UUID) (string, error) {
	if subject == uuid.Nil {
		return "", fmt.Errorf("issue token: nil subject")
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		ExpiresAt: jwt.NewNumericDate(i.now().Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validator checks signature and expiry of tokens minted by an Issuer with
// the same key.
type Validator struct {
	key    []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewValidator copies key.
func NewValidator(key []byte, opts ...Option) (*Validator, error) {
	k, err := copyKey(key)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Validator{
		key: k,
		now: o.now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(o.now),
		),
	}, nil
}

// Validate returns the token's claims, or an *domain.AuthError with reason
// Malformed, InvalidSignature or Expired.
func (v *Validator) Validate(raw string) (Claims, error) {
	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		// A token whose header and claims decode but whose signature does
		// not was cut or altered, not malformed.
		if errors.Is(err, jwt.ErrTokenMalformed) {
			if _, _, perr := v.parser.ParseUnverified(raw, &jwt.RegisteredClaims{}); perr == nil {
				return Claims{}, domain.NewAuthError(domain.ReasonInvalidSignature, err)
			}
		}
		return Claims{}, classify(err)
	}

	// exp must be strictly in the future; the parser accepts exp == now.
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(v.now()) {
		return Claims{}, domain.NewAuthError(domain.ReasonExpired, nil)
	}

	return Claims{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.NewAuthError(domain.ReasonMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.NewAuthError(domain.ReasonInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.NewAuthError(domain.ReasonExpired, err)
	default:
		return domain.NewAuthError(domain.ReasonMalformed, err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"identity-service/internal/domain"
	"identity-service/internal/repository"
)

// dummyPassword is hashed once and verified against when a login names an
// unknown email, so both failure paths cost the same.
const dummyPassword = "identity-service/timing-equaliser"

// maxPasswordLength bounds the input handed to the hasher.
const maxPasswordLength = 1024

// PasswordHasher hashes and verifies passwords off the request path.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, encoded, password string) (bool, error)
}

// TokenIssuer mints bearer tokens for a user id.
type TokenIssuer interface {
	Issue(subject uuid.UUID) (string, error)
}

// UserService describes the registration, login and listing flows.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.PublicProfile, error)
	Login(ctx context.Context, email, password string) (string, error)
	ListUsers(ctx context.Context, who domain.Identity) ([]domain.PublicProfile, error)
}

type registerInput struct {
	Username string `validate:"required,max=64"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,max=1024"`
}

type userService struct {
	users    repository.CredentialRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	validate *validator.Validate
	logger   *logrus.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

func NewUserService(users repository.CredentialRepository, hasher PasswordHasher, tokens TokenIssuer, logger *logrus.Logger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*domain.PublicProfile, error) {
	in := registerInput{
		Username: strings.TrimSpace(username),
		Email:    normalizeEmail(email),
		Password: password,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.HashError{Err: err}
	}

	cred, err := s.users.Insert(ctx, in.Username, in.Email, hash)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}
		return nil, &domain.StorageError{Op: "insert credential", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  cred.ID,
		"username": cred.Username,
	}).Info("user registered")

	profile := cred.Public()
	return &profile, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" || len(password) > maxPasswordLength {
		return "", domain.ErrInvalidCredentials
	}

	cred, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrCredentialNotFound) {
			return "", &domain.StorageError{Op: "find credential", Err: err}
		}
		s.burnVerify(ctx, password)
		return "", domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, cred.PasswordHash, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCredentials
	}

	signed, err := s.tokens.Issue(cred.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

func (s *userService) ListUsers(ctx context.Context, who domain.Identity) ([]domain.PublicProfile, error) {
	if who.UserID == uuid.Nil {
		return nil, domain.NewAuthError(domain.ReasonMalformedSubject, nil)
	}

	creds, err := s.users.List(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list credentials", Err: err}
	}

	profiles := make([]domain.PublicProfile, len(creds))
	for i := range creds {
		profiles[i] = creds[i].Public()
	}
	return profiles, nil
}

// burnVerify spends the same work as a real verification.
func (s *userService) burnVerify(ctx context.Context, password string) {
	encoded := s.dummy(ctx)
	if encoded == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, encoded, password)
}

// dummy returns the cached dummy hash, computing it until one attempt
// succeeds.
func (s *userService) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash == "" {
		hash, err := s.hasher.Hash(context.WithoutCancel(ctx), dummyPassword)
		if err != nil {
			s.logger.WithError(err).Warn("compute dummy password hash")
			return ""
		}
		s.dummyHash = hash
	}
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Reason: err.Error()}
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "email":
		reason = "must be a valid email address"
	case "max":
		reason = "must be at most " + fe.Param() + " characters"
	default:
		reason = "is invalid"
	}
	return &domain.ValidationError{Field: field, Reason: reason}
}

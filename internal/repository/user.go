package repository

import (
	"context"

	"identity-service/internal/domain"
)

// CredentialRepository defines persistence operations for account credentials.
//
// Insert returns domain.ErrEmailTaken when the email is already present and
// FindByEmail returns domain.ErrCredentialNotFound when it is absent.
type CredentialRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, username, email, passwordHash string) (*domain.Credential, error)
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	List(ctx context.Context) ([]domain.Credential, error)
}

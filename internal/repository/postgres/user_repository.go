// Package postgres stores credentials in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-service/internal/domain"
	"identity-service/internal/repository"
)

const uniqueViolation = "23505"

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const credentialColumns = `id, username, email, password_hash, created_at`

// querier is the subset of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements repository.CredentialRepository on PostgreSQL.
type UserRepository struct {
	db querier
}

// NewUserRepository constructs a PostgreSQL repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: pool}
}

// Open creates a connection pool for dsn and checks it is reachable.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Init creates the users table if it does not exist.
func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

// Insert stores a new credential; the database assigns id and created_at.
func (r *UserRepository) Insert(ctx context.Context, username, email, passwordHash string) (*domain.Credential, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, created_at)
VALUES ($1, $2, $3, clock_timestamp())
RETURNING `+credentialColumns,
		username, email, passwordHash,
	)
	cred, err := scanCredential(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return cred, nil
}

// FindByEmail fetches a credential by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	row := r.db.QueryRow(ctx, `SELECT `+credentialColumns+` FROM users WHERE email = $1`, email)
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return cred, nil
}

// List returns every credential ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]domain.Credential, error) {
	rows, err := r.db.Query(ctx, `SELECT `+credentialColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return creds, nil
}

func scanCredential(row pgx.Row) (*domain.Credential, error) {
	var cred domain.Credential
	if err := row.Scan(&cred.ID, &cred.Username, &cred.Email, &cred.PasswordHash, &cred.CreatedAt); err != nil {
		return nil, err
	}
	cred.CreatedAt = cred.CreatedAt.UTC()
	return &cred, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ repository.CredentialRepository = (*UserRepository)(nil)

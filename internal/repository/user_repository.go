package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lgc13/gateway-service-example/internal/domain"
)

// ErrStoreUnavailable is returned when no backing store is configured.
var ErrStoreUnavailable = errors.New("user store unavailable")

// UserRepository is the system of record for credentials and memberships.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if r.pool == nil {
		return ErrStoreUnavailable
	}

	const query = `
        INSERT INTO users (id, username, password_hash, roles)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Roles,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if r.pool == nil {
		return nil, ErrStoreUnavailable
	}

	const query = `
        SELECT id, username, password_hash, roles, created_at, updated_at
        FROM users WHERE username=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// IsNotFound reports whether the error means the username has no record.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

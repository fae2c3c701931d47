package repository

import (
	"context"
	"time"

	"nutritrack/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Emails are stored normalized (trimmed, lower-cased); callers pass the
// normalized form.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

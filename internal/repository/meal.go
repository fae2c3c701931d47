package repository

import (
	"context"
	"time"

	"nutritrack/internal/domain"
)

// MealFilter narrows list and count queries. Zero values mean "no constraint".
type MealFilter struct {
	MealType  string
	StartDate *time.Time
	EndDate   *time.Time
}

// MealRepository defines persistence operations for meals. Every operation on
// an existing row takes the owner id and folds it into the lookup predicate;
// an owner mismatch surfaces as ErrNotFound, same as a nonexistent id.
type MealRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, meal *domain.Meal) error
	GetByOwner(ctx context.Context, ownerID, id string) (*domain.Meal, error)
	ListByOwner(ctx context.Context, ownerID string, filter MealFilter, offset, limit int) ([]domain.Meal, error)
	CountByOwner(ctx context.Context, ownerID string, filter MealFilter) (int64, error)
	UpdateByOwner(ctx context.Context, ownerID string, meal *domain.Meal) error
	DeleteByOwner(ctx context.Context, ownerID, id string) error
	DeleteAllByOwner(ctx context.Context, ownerID string) error

	// ListByOwnerInRange returns the owner's meals with created_at in
	// [start, end], oldest first. Used by the stats aggregation.
	ListByOwnerInRange(ctx context.Context, ownerID string, start, end time.Time) ([]domain.Meal, error)

	// ListExternalPhotos returns meals whose photo is still hosted outside
	// object storage (photo_url set, photo_key empty). Used by cmd/migrate.
	ListExternalPhotos(ctx context.Context, limit int) ([]domain.Meal, error)
	SetPhoto(ctx context.Context, id, photoURL, photoKey string) error
}

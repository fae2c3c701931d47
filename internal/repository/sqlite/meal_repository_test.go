package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestMealRepo(t *testing.T) repository.MealRepository {
	t.Helper()
	repo := NewMealRepository(openTestDB(t))
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func seedMeal(t *testing.T, repo repository.MealRepository, ownerID string, calories float64, createdAt time.Time) *domain.Meal {
	t.Helper()
	meal := &domain.Meal{
		UserID:    ownerID,
		Name:      "test meal",
		MealType:  "meal",
		Calories:  calories,
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), meal))
	return meal
}

func TestMealRepository_OwnershipPredicate(t *testing.T) {
	t.Parallel()
	repo := newTestMealRepo(t)
	ctx := context.Background()

	meal := seedMeal(t, repo, "owner-a", 500, time.Time{})

	got, err := repo.GetByOwner(ctx, "owner-a", meal.ID)
	require.NoError(t, err)
	assert.Equal(t, meal.ID, got.ID)

	// another owner sees the same outcome as a nonexistent id
	_, err = repo.GetByOwner(ctx, "owner-b", meal.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByOwner(ctx, "owner-a", "no-such-id")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.UpdateByOwner(ctx, "owner-b", meal)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.DeleteByOwner(ctx, "owner-b", meal.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// the row is untouched after the denied operations
	got, err = repo.GetByOwner(ctx, "owner-a", meal.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(500), got.Calories)
}

func TestMealRepository_ListOrderAndPaging(t *testing.T) {
	t.Parallel()
	repo := newTestMealRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedMeal(t, repo, "owner", float64(100*(i+1)), base.Add(time.Duration(i)*time.Hour))
	}
	seedMeal(t, repo, "someone-else", 999, base)

	meals, err := repo.ListByOwner(ctx, "owner", repository.MealFilter{}, 0, 3)
	require.NoError(t, err)
	require.Len(t, meals, 3)
	// newest first
	assert.Equal(t, float64(500), meals[0].Calories)
	assert.Equal(t, float64(400), meals[1].Calories)
	assert.Equal(t, float64(300), meals[2].Calories)

	meals, err = repo.ListByOwner(ctx, "owner", repository.MealFilter{}, 3, 3)
	require.NoError(t, err)
	require.Len(t, meals, 2)
	assert.Equal(t, float64(200), meals[0].Calories)
	assert.Equal(t, float64(100), meals[1].Calories)

	total, err := repo.CountByOwner(ctx, "owner", repository.MealFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestMealRepository_Filters(t *testing.T) {
	t.Parallel()
	repo := newTestMealRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	breakfast := &domain.Meal{UserID: "owner", MealType: "breakfast", Calories: 300, CreatedAt: base}
	require.NoError(t, repo.Create(ctx, breakfast))
	dinner := &domain.Meal{UserID: "owner", MealType: "dinner", Calories: 700, CreatedAt: base.AddDate(0, 0, 2)}
	require.NoError(t, repo.Create(ctx, dinner))

	meals, err := repo.ListByOwner(ctx, "owner", repository.MealFilter{MealType: "breakfast"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, float64(300), meals[0].Calories)

	cutoff := base.AddDate(0, 0, 1)
	meals, err = repo.ListByOwner(ctx, "owner", repository.MealFilter{StartDate: &cutoff}, 0, 10)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, "dinner", meals[0].MealType)

	meals, err = repo.ListByOwner(ctx, "owner", repository.MealFilter{EndDate: &cutoff}, 0, 10)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, "breakfast", meals[0].MealType)
}

func TestMealRepository_RangeListing(t *testing.T) {
	t.Parallel()
	repo := newTestMealRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC)
	seedMeal(t, repo, "owner", 100, base.AddDate(0, 0, -10))
	inRange := seedMeal(t, repo, "owner", 200, base)
	seedMeal(t, repo, "other", 300, base)

	meals, err := repo.ListByOwnerInRange(ctx, "owner", base.AddDate(0, 0, -1), base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, inRange.ID, meals[0].ID)
}

func TestMealRepository_ExternalPhotos(t *testing.T) {
	t.Parallel()
	repo := newTestMealRepo(t)
	ctx := context.Background()

	external := &domain.Meal{UserID: "owner", PhotoURL: "https://elsewhere.example/x.jpg"}
	require.NoError(t, repo.Create(ctx, external))
	internal := &domain.Meal{UserID: "owner", PhotoURL: "https://bucket.s3/x.jpg", PhotoKey: "meals/x.jpg"}
	require.NoError(t, repo.Create(ctx, internal))
	noPhoto := &domain.Meal{UserID: "owner"}
	require.NoError(t, repo.Create(ctx, noPhoto))

	meals, err := repo.ListExternalPhotos(ctx, 10)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, external.ID, meals[0].ID)

	require.NoError(t, repo.SetPhoto(ctx, external.ID, "https://bucket.s3/new.jpg", "migrated/new.jpg"))

	meals, err = repo.ListExternalPhotos(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, meals)
}

func TestMealRepository_DeleteAllByOwner(t *testing.T) {
	t.Parallel()
	repo := newTestMealRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedMeal(t, repo, "owner", float64(i), time.Time{})
	}
	keep := seedMeal(t, repo, "other", 42, time.Time{})

	require.NoError(t, repo.DeleteAllByOwner(ctx, "owner"))

	total, err := repo.CountByOwner(ctx, "owner", repository.MealFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = repo.GetByOwner(ctx, "other", keep.ID)
	assert.NoError(t, err)
}

func TestMealRepository_CreateAssignsID(t *testing.T) {
	t.Parallel()
	repo := newTestMealRepo(t)

	meal := seedMeal(t, repo, "owner", 1, time.Time{})
	assert.NotEmpty(t, meal.ID)
	assert.False(t, meal.CreatedAt.IsZero())

	other := seedMeal(t, repo, "owner", 2, time.Time{})
	assert.NotEqual(t, meal.ID, other.ID, fmt.Sprintf("ids must be unique: %s", meal.ID))
}

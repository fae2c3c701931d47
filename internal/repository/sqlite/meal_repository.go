package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository"
)

const createMealsTable = `
CREATE TABLE IF NOT EXISTS meals (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	meal_type TEXT NOT NULL DEFAULT 'meal',
	calories REAL NOT NULL DEFAULT 0,
	protein REAL NOT NULL DEFAULT 0,
	carbs REAL NOT NULL DEFAULT 0,
	fat REAL NOT NULL DEFAULT 0,
	fiber REAL NOT NULL DEFAULT 0,
	sugar REAL NOT NULL DEFAULT 0,
	sodium REAL NOT NULL DEFAULT 0,
	serving_weight_g REAL NOT NULL DEFAULT 0,
	serving_unit TEXT NOT NULL DEFAULT 'serving',
	serving_qty REAL NOT NULL DEFAULT 1,
	photo_url TEXT NOT NULL DEFAULT '',
	photo_key TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	verified INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_meals_user_created ON meals (user_id, created_at);
`

const mealColumns = `id, user_id, name, meal_type, calories, protein, carbs, fat, fiber, sugar, sodium, serving_weight_g, serving_unit, serving_qty, photo_url, photo_key, confidence, verified, created_at, updated_at`

type MealRepository struct {
	db *sql.DB
}

func NewMealRepository(db *sql.DB) repository.MealRepository {
	return &MealRepository{db: db}
}

func (r *MealRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createMealsTable); err != nil {
		return fmt.Errorf("create meals table: %w", err)
	}
	return nil
}

func (r *MealRepository) Create(ctx context.Context, meal *domain.Meal) error {
	if meal.ID == "" {
		meal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meal.CreatedAt.IsZero() {
		meal.CreatedAt = now
	}
	meal.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO meals (`+mealColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meal.ID,
		meal.UserID,
		meal.Name,
		meal.MealType,
		meal.Calories,
		meal.Protein,
		meal.Carbs,
		meal.Fat,
		meal.Fiber,
		meal.Sugar,
		meal.Sodium,
		meal.ServingWeightG,
		meal.ServingUnit,
		meal.ServingQty,
		meal.PhotoURL,
		meal.PhotoKey,
		meal.Confidence,
		meal.Verified,
		meal.CreatedAt,
		meal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}
	return nil
}

func (r *MealRepository) GetByOwner(ctx context.Context, ownerID, id string) (*domain.Meal, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+mealColumns+`
FROM meals
WHERE id = ? AND user_id = ?`,
		id,
		ownerID,
	)
	return scanMeal(row)
}

func (r *MealRepository) ListByOwner(ctx context.Context, ownerID string, filter repository.MealFilter, offset, limit int) ([]domain.Meal, error) {
	where, args := mealPredicate(ownerID, filter)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, `
SELECT `+mealColumns+`
FROM meals
`+where+`
ORDER BY created_at DESC
LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()

	return collectMeals(rows)
}

func (r *MealRepository) CountByOwner(ctx context.Context, ownerID string, filter repository.MealFilter) (int64, error) {
	where, args := mealPredicate(ownerID, filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meals `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count meals: %w", err)
	}
	return total, nil
}

func (r *MealRepository) UpdateByOwner(ctx context.Context, ownerID string, meal *domain.Meal) error {
	meal.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE meals
SET name=?, meal_type=?, calories=?, protein=?, carbs=?, fat=?, fiber=?, sugar=?, sodium=?, serving_weight_g=?, serving_unit=?, serving_qty=?, photo_url=?, photo_key=?, confidence=?, verified=?, updated_at=?
WHERE id=? AND user_id=?`,
		meal.Name,
		meal.MealType,
		meal.Calories,
		meal.Protein,
		meal.Carbs,
		meal.Fat,
		meal.Fiber,
		meal.Sugar,
		meal.Sodium,
		meal.ServingWeightG,
		meal.ServingUnit,
		meal.ServingQty,
		meal.PhotoURL,
		meal.PhotoKey,
		meal.Confidence,
		meal.Verified,
		meal.UpdatedAt,
		meal.ID,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("update meal: %w", err)
	}
	return requireRow(res)
}

func (r *MealRepository) DeleteByOwner(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meals WHERE id=? AND user_id=?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	return requireRow(res)
}

func (r *MealRepository) DeleteAllByOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM meals WHERE user_id=?`, ownerID); err != nil {
		return fmt.Errorf("delete meals by owner: %w", err)
	}
	return nil
}

func (r *MealRepository) ListByOwnerInRange(ctx context.Context, ownerID string, start, end time.Time) ([]domain.Meal, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+mealColumns+`
FROM meals
WHERE user_id = ? AND created_at >= ? AND created_at <= ?
ORDER BY created_at ASC`,
		ownerID,
		start.UTC(),
		end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list meals in range: %w", err)
	}
	defer rows.Close()

	return collectMeals(rows)
}

func (r *MealRepository) ListExternalPhotos(ctx context.Context, limit int) ([]domain.Meal, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+mealColumns+`
FROM meals
WHERE photo_url != '' AND photo_key = ''
ORDER BY created_at ASC
LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list external photos: %w", err)
	}
	defer rows.Close()

	return collectMeals(rows)
}

func (r *MealRepository) SetPhoto(ctx context.Context, id, photoURL, photoKey string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE meals
SET photo_url=?, photo_key=?, updated_at=?
WHERE id=?`,
		photoURL,
		photoKey,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set meal photo: %w", err)
	}
	return requireRow(res)
}

func mealPredicate(ownerID string, filter repository.MealFilter) (string, []any) {
	where := `WHERE user_id = ?`
	args := []any{ownerID}

	if filter.MealType != "" {
		where += ` AND meal_type = ?`
		args = append(args, filter.MealType)
	}
	if filter.StartDate != nil {
		where += ` AND created_at >= ?`
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where += ` AND created_at <= ?`
		args = append(args, filter.EndDate.UTC())
	}
	return where, args
}

func collectMeals(rows *sql.Rows) ([]domain.Meal, error) {
	var meals []domain.Meal
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, *meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meals: %w", err)
	}
	return meals, nil
}

func scanMeal(row interface {
	Scan(dest ...any) error
}) (*domain.Meal, error) {
	var meal domain.Meal
	if err := row.Scan(
		&meal.ID,
		&meal.UserID,
		&meal.Name,
		&meal.MealType,
		&meal.Calories,
		&meal.Protein,
		&meal.Carbs,
		&meal.Fat,
		&meal.Fiber,
		&meal.Sugar,
		&meal.Sodium,
		&meal.ServingWeightG,
		&meal.ServingUnit,
		&meal.ServingQty,
		&meal.PhotoURL,
		&meal.PhotoKey,
		&meal.Confidence,
		&meal.Verified,
		&meal.CreatedAt,
		&meal.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan meal: %w", err)
	}
	return &meal, nil
}

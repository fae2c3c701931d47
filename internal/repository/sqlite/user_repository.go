package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	age INTEGER NOT NULL DEFAULT 0,
	gender TEXT NOT NULL DEFAULT 'other',
	height_cm REAL NOT NULL DEFAULT 0,
	weight_kg REAL NOT NULL DEFAULT 0,
	activity_level TEXT NOT NULL DEFAULT 'moderate',
	timezone TEXT NOT NULL DEFAULT 'UTC',
	goal_type TEXT NOT NULL DEFAULT 'maintain',
	goal_calories REAL NOT NULL DEFAULT 2200,
	goal_protein REAL NOT NULL DEFAULT 140,
	goal_carbs REAL NOT NULL DEFAULT 220,
	goal_fat REAL NOT NULL DEFAULT 70,
	created_at DATETIME NOT NULL,
	last_login_at DATETIME NULL
);
`

const userColumns = `id, name, email, password_hash, avatar_url, age, gender, height_cm, weight_kg, activity_level, timezone, goal_type, goal_calories, goal_protein, goal_carbs, goal_fat, created_at, last_login_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.AvatarURL,
		user.Age,
		user.Gender,
		user.HeightCm,
		user.WeightKg,
		user.ActivityLevel,
		user.Timezone,
		user.Goals.GoalType,
		user.Goals.Calories,
		user.Goals.Protein,
		user.Goals.Carbs,
		user.Goals.Fat,
		user.CreatedAt,
		nullTime(user.LastLoginAt),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET name=?, avatar_url=?, age=?, gender=?, height_cm=?, weight_kg=?, activity_level=?, timezone=?, goal_type=?, goal_calories=?, goal_protein=?, goal_carbs=?, goal_fat=?
WHERE id=?`,
		user.Name,
		user.AvatarURL,
		user.Age,
		user.Gender,
		user.HeightCm,
		user.WeightKg,
		user.ActivityLevel,
		user.Timezone,
		user.Goals.GoalType,
		user.Goals.Calories,
		user.Goals.Protein,
		user.Goals.Carbs,
		user.Goals.Fat,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE users
SET last_login_at=?
WHERE id=?`,
		at.UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user      domain.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.Age,
		&user.Gender,
		&user.HeightCm,
		&user.WeightKg,
		&user.ActivityLevel,
		&user.Timezone,
		&user.Goals.GoalType,
		&user.Goals.Calories,
		&user.Goals.Protein,
		&user.Goals.Carbs,
		&user.Goals.Fat,
		&user.CreatedAt,
		&lastLogin,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

func requireRow(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if aff == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

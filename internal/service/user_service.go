package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering with an email that is already in use.
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError marks input problems the caller can fix and resubmit.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// GoalsUpdate carries optional daily-target changes. Nil fields are left untouched.
type GoalsUpdate struct {
	GoalType *string
	Calories *float64
	Protein  *float64
	Carbs    *float64
	Fat      *float64
}

// ProfileUpdate carries the whitelisted profile fields a user may change.
// Nil fields are left untouched; anything outside this set never reaches the store.
type ProfileUpdate struct {
	Name          *string
	Age           *int
	Gender        *string
	HeightCm      *float64
	WeightKg      *float64
	ActivityLevel *string
	Timezone      *string
	Goals         *GoalsUpdate
}

// UserService describes account lifecycle operations.
type UserService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error)
	UpdateAvatar(ctx context.Context, id, avatarURL string) (*domain.User, error)
	DeleteAccount(ctx context.Context, id, password string) error
}

type userService struct {
	users      repository.UserRepository
	meals      repository.MealRepository
	bcryptCost int
}

func NewUserService(users repository.UserRepository, meals repository.MealRepository, bcryptCost int) UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &userService{
		users:      users,
		meals:      meals,
		bcryptCost: bcryptCost,
	}
}

// NormalizeEmail trims and lower-cases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	if len(name) < 2 {
		return nil, validationf("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationf("valid email is required")
	}
	if len(password) < 8 {
		return nil, validationf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:          name,
		Email:         email,
		PasswordHash:  string(hash),
		Gender:        "other",
		ActivityLevel: "moderate",
		Timezone:      "UTC",
		Goals:         domain.DefaultGoals(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyProfileUpdate(user, update); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateAvatar(ctx context.Context, id, avatarURL string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.AvatarURL = avatarURL
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// DeleteAccount verifies the password, removes the user, then removes the
// user's meals. The cleanup is sequential and best-effort: a failure after the
// user row is gone leaves orphaned meals rather than rolling back.
func (s *userService) DeleteAccount(ctx context.Context, id, password string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	return s.meals.DeleteAllByOwner(ctx, id)
}

func applyProfileUpdate(user *domain.User, update ProfileUpdate) error {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if len(name) < 2 {
			return validationf("name must be at least 2 characters")
		}
		user.Name = name
	}
	if update.Age != nil {
		if *update.Age < 5 || *update.Age > 120 {
			return validationf("age must be between 5 and 120")
		}
		user.Age = *update.Age
	}
	if update.Gender != nil {
		if !oneOf(*update.Gender, "male", "female", "other") {
			return validationf("gender must be male, female or other")
		}
		user.Gender = *update.Gender
	}
	if update.HeightCm != nil {
		if *update.HeightCm < 50 || *update.HeightCm > 260 {
			return validationf("height must be between 50 and 260 cm")
		}
		user.HeightCm = *update.HeightCm
	}
	if update.WeightKg != nil {
		if *update.WeightKg < 20 || *update.WeightKg > 500 {
			return validationf("weight must be between 20 and 500 kg")
		}
		user.WeightKg = *update.WeightKg
	}
	if update.ActivityLevel != nil {
		if !oneOf(*update.ActivityLevel, "low", "moderate", "high") {
			return validationf("activity level must be low, moderate or high")
		}
		user.ActivityLevel = *update.ActivityLevel
	}
	if update.Timezone != nil {
		tz := strings.TrimSpace(*update.Timezone)
		if tz == "" {
			return validationf("timezone must not be empty")
		}
		user.Timezone = tz
	}
	if update.Goals != nil {
		if err := applyGoalsUpdate(&user.Goals, *update.Goals); err != nil {
			return err
		}
	}
	return nil
}

func applyGoalsUpdate(goals *domain.Goals, update GoalsUpdate) error {
	if update.GoalType != nil {
		if !oneOf(*update.GoalType, "lose", "maintain", "gain") {
			return validationf("goal type must be lose, maintain or gain")
		}
		goals.GoalType = *update.GoalType
	}
	set := func(dst *float64, v *float64, field string) error {
		if v == nil {
			return nil
		}
		if *v < 0 || *v > 20000 {
			return validationf("%s goal must be between 0 and 20000", field)
		}
		*dst = *v
		return nil
	}
	if err := set(&goals.Calories, update.Calories, "calories"); err != nil {
		return err
	}
	if err := set(&goals.Protein, update.Protein, "protein"); err != nil {
		return err
	}
	if err := set(&goals.Carbs, update.Carbs, "carbs"); err != nil {
		return err
	}
	return set(&goals.Fat, update.Fat, "fat")
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}

package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository"
	"nutritrack/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MealInput is the client-editable portion of a meal. Owner and timestamps are
// never taken from input.
type MealInput struct {
	Name           string
	MealType       string
	Calories       float64
	Protein        float64
	Carbs          float64
	Fat            float64
	Fiber          float64
	Sugar          float64
	Sodium         float64
	ServingWeightG float64
	ServingUnit    string
	ServingQty     float64
	PhotoURL       string
	PhotoKey       string
	Confidence     float64
	Verified       bool
}

// MealPatch carries optional field changes for an existing meal. Nil fields
// are left untouched, so a partial edit never clobbers values the client did
// not send. Photo fields and confidence are not patchable here; they change
// only through the upload path.
type MealPatch struct {
	Name           *string
	MealType       *string
	Calories       *float64
	Protein        *float64
	Carbs          *float64
	Fat            *float64
	Fiber          *float64
	Sugar          *float64
	Sodium         *float64
	ServingWeightG *float64
	ServingUnit    *string
	ServingQty     *float64
}

// ListQuery narrows and pages a meal listing.
type ListQuery struct {
	Page      int
	Limit     int
	MealType  string
	StartDate *time.Time
	EndDate   *time.Time
}

// Pagination describes the page a listing returned.
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

// Stats holds summed nutrition over a set of meals.
type Stats struct {
	TotalCalories      float64 `json:"totalCalories"`
	TotalProtein       float64 `json:"totalProtein"`
	TotalCarbs         float64 `json:"totalCarbs"`
	TotalFat           float64 `json:"totalFat"`
	TotalFiber         float64 `json:"totalFiber"`
	MealCount          int     `json:"mealCount"`
	AvgCaloriesPerMeal float64 `json:"avgCaloriesPerMeal"`
	AvgProteinPerMeal  float64 `json:"avgProteinPerMeal"`
}

// StatsReport is a windowed summary for one owner.
type StatsReport struct {
	Period    string    `json:"period"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Stats     Stats     `json:"stats"`
}

// Breakdown holds today/week/month summaries side by side.
type Breakdown struct {
	Today Stats `json:"today"`
	Week  Stats `json:"week"`
	Month Stats `json:"month"`
}

// MealService is the single path to meal persistence. Every operation takes
// the authenticated owner id as its first domain argument so no handler can
// reach a meal without the ownership predicate applied.
type MealService interface {
	Create(ctx context.Context, ownerID string, input MealInput) (*domain.Meal, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Meal, error)
	List(ctx context.Context, ownerID string, query ListQuery) ([]domain.Meal, Pagination, error)
	Update(ctx context.Context, ownerID, id string, patch MealPatch) (*domain.Meal, error)
	Delete(ctx context.Context, ownerID, id string) error
	Summarize(ctx context.Context, ownerID, period string) (StatsReport, error)
	DailyBreakdown(ctx context.Context, ownerID string) (Breakdown, error)
}

type mealService struct {
	meals   repository.MealRepository
	storage storage.Service
	logger  *logrus.Logger
	now     func() time.Time
}

func NewMealService(meals repository.MealRepository, store storage.Service, logger *logrus.Logger) MealService {
	return &mealService{
		meals:   meals,
		storage: store,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *mealService) Create(ctx context.Context, ownerID string, input MealInput) (*domain.Meal, error) {
	meal := &domain.Meal{
		UserID: ownerID,
	}
	applyMealInput(meal, input)

	if err := s.meals.Create(ctx, meal); err != nil {
		return nil, err
	}
	return meal, nil
}

func (s *mealService) Get(ctx context.Context, ownerID, id string) (*domain.Meal, error) {
	return s.meals.GetByOwner(ctx, ownerID, id)
}

func (s *mealService) List(ctx context.Context, ownerID string, query ListQuery) ([]domain.Meal, Pagination, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := repository.MealFilter{
		MealType:  query.MealType,
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
	}

	meals, err := s.meals.ListByOwner(ctx, ownerID, filter, (page-1)*limit, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	total, err := s.meals.CountByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, Pagination{}, err
	}

	pagination := Pagination{
		Current: page,
		Pages:   int(math.Ceil(float64(total) / float64(limit))),
		Total:   total,
	}
	return meals, pagination, nil
}

// Update applies only the fields the patch carries; everything else keeps its
// stored value, including the photo and confidence.
func (s *mealService) Update(ctx context.Context, ownerID, id string, patch MealPatch) (*domain.Meal, error) {
	meal, err := s.meals.GetByOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	applyMealPatch(meal, patch)
	// a manual edit counts as user verification of the values
	meal.Verified = true

	if err := s.meals.UpdateByOwner(ctx, ownerID, meal); err != nil {
		return nil, err
	}
	return meal, nil
}

// Delete removes the meal row and, best effort, its stored photo. A storage
// failure is logged and never blocks the row delete.
func (s *mealService) Delete(ctx context.Context, ownerID, id string) error {
	meal, err := s.meals.GetByOwner(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if meal.PhotoKey != "" && s.storage != nil {
		if err := s.storage.DeleteObject(ctx, meal.PhotoKey); err != nil {
			s.logger.Warnf("delete meal photo %s: %v", meal.PhotoKey, err)
		}
	}

	return s.meals.DeleteByOwner(ctx, ownerID, id)
}

func (s *mealService) Summarize(ctx context.Context, ownerID, period string) (StatsReport, error) {
	now := s.now().UTC()
	normalized, start := periodStart(period, now)

	meals, err := s.meals.ListByOwnerInRange(ctx, ownerID, start, now)
	if err != nil {
		return StatsReport{}, err
	}

	return StatsReport{
		Period:    normalized,
		StartDate: start,
		EndDate:   now,
		Stats:     foldStats(meals),
	}, nil
}

func (s *mealService) DailyBreakdown(ctx context.Context, ownerID string) (Breakdown, error) {
	now := s.now().UTC()

	var breakdown Breakdown
	for _, span := range []struct {
		period string
		dst    *Stats
	}{
		{"day", &breakdown.Today},
		{"week", &breakdown.Week},
		{"month", &breakdown.Month},
	} {
		_, start := periodStart(span.period, now)
		meals, err := s.meals.ListByOwnerInRange(ctx, ownerID, start, now)
		if err != nil {
			return Breakdown{}, err
		}
		*span.dst = foldStats(meals)
	}
	return breakdown, nil
}

// periodStart maps a period name to the window start. Unknown values fall
// back to a week, matching the listing defaults.
func periodStart(period string, now time.Time) (string, time.Time) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "day":
		return "day", time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case "month":
		return "month", now.AddDate(0, -1, 0)
	case "week":
		return "week", now.AddDate(0, 0, -7)
	default:
		return "week", now.AddDate(0, 0, -7)
	}
}

// foldStats sums per-field totals; averages are zero for an empty set.
func foldStats(meals []domain.Meal) Stats {
	var stats Stats
	for _, meal := range meals {
		stats.TotalCalories += meal.Calories
		stats.TotalProtein += meal.Protein
		stats.TotalCarbs += meal.Carbs
		stats.TotalFat += meal.Fat
		stats.TotalFiber += meal.Fiber
		stats.MealCount++
	}
	if stats.MealCount > 0 {
		stats.AvgCaloriesPerMeal = math.Round(stats.TotalCalories / float64(stats.MealCount))
		stats.AvgProteinPerMeal = math.Round(stats.TotalProtein / float64(stats.MealCount))
	}
	return stats
}

func applyMealPatch(meal *domain.Meal, patch MealPatch) {
	if patch.Name != nil {
		meal.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.MealType != nil {
		meal.MealType = strings.TrimSpace(*patch.MealType)
		if meal.MealType == "" {
			meal.MealType = "meal"
		}
	}
	if patch.Calories != nil {
		meal.Calories = *patch.Calories
	}
	if patch.Protein != nil {
		meal.Protein = *patch.Protein
	}
	if patch.Carbs != nil {
		meal.Carbs = *patch.Carbs
	}
	if patch.Fat != nil {
		meal.Fat = *patch.Fat
	}
	if patch.Fiber != nil {
		meal.Fiber = *patch.Fiber
	}
	if patch.Sugar != nil {
		meal.Sugar = *patch.Sugar
	}
	if patch.Sodium != nil {
		meal.Sodium = *patch.Sodium
	}
	if patch.ServingWeightG != nil {
		meal.ServingWeightG = *patch.ServingWeightG
	}
	if patch.ServingUnit != nil && *patch.ServingUnit != "" {
		meal.ServingUnit = *patch.ServingUnit
	}
	if patch.ServingQty != nil && *patch.ServingQty > 0 {
		meal.ServingQty = *patch.ServingQty
	}
}

func applyMealInput(meal *domain.Meal, input MealInput) {
	meal.Name = strings.TrimSpace(input.Name)
	meal.MealType = strings.TrimSpace(input.MealType)
	if meal.MealType == "" {
		meal.MealType = "meal"
	}
	meal.Calories = input.Calories
	meal.Protein = input.Protein
	meal.Carbs = input.Carbs
	meal.Fat = input.Fat
	meal.Fiber = input.Fiber
	meal.Sugar = input.Sugar
	meal.Sodium = input.Sodium
	meal.ServingWeightG = input.ServingWeightG
	meal.ServingUnit = input.ServingUnit
	if meal.ServingUnit == "" {
		meal.ServingUnit = "serving"
	}
	meal.ServingQty = input.ServingQty
	if meal.ServingQty <= 0 {
		meal.ServingQty = 1
	}
	meal.PhotoURL = input.PhotoURL
	meal.PhotoKey = input.PhotoKey
	meal.Confidence = input.Confidence
	meal.Verified = input.Verified
}

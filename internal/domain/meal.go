package domain

import "time"

// Nutrition is the per-food estimate produced by an analyzer or entered by hand.
type Nutrition struct {
	Name           string  `json:"name"`
	Calories       float64 `json:"calories"`
	Protein        float64 `json:"protein"`
	Carbs          float64 `json:"carbs"`
	Fat            float64 `json:"fat"`
	Fiber          float64 `json:"fiber"`
	Sugar          float64 `json:"sugar"`
	Sodium         float64 `json:"sodium"`
	ServingWeightG float64 `json:"servingWeight"`
	ServingUnit    string  `json:"servingUnit"`
	ServingQty     float64 `json:"servingQty"`
}

// Meal is a logged meal owned by exactly one user. UserID is set from the
// authenticated session at creation and is immutable afterwards.
type Meal struct {
	ID             string
	UserID         string
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
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

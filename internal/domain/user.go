package domain

import "time"

// Goals holds a user's daily nutrition targets.
type Goals struct {
	GoalType string  `json:"goalType"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// DefaultGoals returns the targets assigned to a freshly registered user.
func DefaultGoals() Goals {
	return Goals{
		GoalType: "maintain",
		Calories: 2200,
		Protein:  140,
		Carbs:    220,
		Fat:      70,
	}
}

// User represents a registered account. PasswordHash never leaves the service
// layer; responses are built from sanitized copies.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	AvatarURL     string
	Age           int
	Gender        string
	HeightCm      float64
	WeightKg      float64
	ActivityLevel string
	Timezone      string
	Goals         Goals
	CreatedAt     time.Time
	LastLoginAt   *time.Time
}

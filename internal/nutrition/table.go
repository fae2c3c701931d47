package nutrition

import (
	"context"
	"strings"

	"nutritrack/internal/domain"
)

// commonFoods covers frequent meals so the app stays useful when the remote
// API is unreachable or unconfigured. Values are per 100 g.
var commonFoods = map[string]domain.Nutrition{
	"pizza":   {Calories: 266, Protein: 11, Carbs: 33, Fat: 10, Fiber: 2, Sugar: 3, Sodium: 551},
	"burger":  {Calories: 354, Protein: 16, Carbs: 33, Fat: 17, Fiber: 2, Sugar: 6, Sodium: 497},
	"salad":   {Calories: 20, Protein: 2, Carbs: 4, Fat: 0, Fiber: 2, Sugar: 2, Sodium: 10},
	"apple":   {Calories: 95, Protein: 0, Carbs: 25, Fat: 0, Fiber: 4, Sugar: 19, Sodium: 2},
	"banana":  {Calories: 105, Protein: 1, Carbs: 27, Fat: 0, Fiber: 3, Sugar: 14, Sodium: 1},
	"chicken": {Calories: 165, Protein: 31, Carbs: 0, Fat: 4, Fiber: 0, Sugar: 0, Sodium: 74},
	"rice":    {Calories: 130, Protein: 3, Carbs: 28, Fat: 0, Fiber: 0, Sugar: 0, Sodium: 1},
	"pasta":   {Calories: 131, Protein: 5, Carbs: 25, Fat: 1, Fiber: 2, Sugar: 1, Sodium: 1},
	"bread":   {Calories: 265, Protein: 9, Carbs: 49, Fat: 3, Fiber: 2, Sugar: 5, Sodium: 681},
	"egg":     {Calories: 70, Protein: 6, Carbs: 0, Fat: 5, Fiber: 0, Sugar: 0, Sodium: 70},
}

// TableAnalyzer matches the label against a small built-in food table.
type TableAnalyzer struct{}

func NewTableAnalyzer() *TableAnalyzer {
	return &TableAnalyzer{}
}

func (a *TableAnalyzer) Analyze(_ context.Context, label string) (Estimate, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return Estimate{}, ErrNoMatch
	}

	entry, ok := commonFoods[normalized]
	if !ok {
		for name, candidate := range commonFoods {
			if strings.Contains(normalized, name) {
				entry, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return Estimate{}, ErrNoMatch
	}

	entry.Name = label
	entry.ServingWeightG = 100
	entry.ServingUnit = "g"
	entry.ServingQty = 1

	return Estimate{
		Nutrition:  entry,
		Confidence: 0.6,
		Source:     "table",
	}, nil
}

var _ Analyzer = (*TableAnalyzer)(nil)

package nutrition

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"nutritrack/internal/domain"
)

// ErrNoMatch indicates an analyzer could not produce an estimate for the input.
var ErrNoMatch = errors.New("no nutrition match")

// Estimate is an analyzer's best guess for one food, with how sure it is.
type Estimate struct {
	domain.Nutrition
	Confidence float64
	Source     string
}

// Analyzer produces a nutrition estimate for a food label.
type Analyzer interface {
	Analyze(ctx context.Context, label string) (Estimate, error)
}

// Chain tries analyzers in order until one succeeds. It never fails: when all
// strategies are exhausted it returns a fixed low-confidence placeholder, so an
// upstream outage can't break the meal-logging path.
type Chain struct {
	analyzers []Analyzer
	logger    *logrus.Logger
}

func NewChain(logger *logrus.Logger, analyzers ...Analyzer) *Chain {
	return &Chain{
		analyzers: analyzers,
		logger:    logger,
	}
}

func (c *Chain) Analyze(ctx context.Context, label string) Estimate {
	for _, analyzer := range c.analyzers {
		estimate, err := analyzer.Analyze(ctx, label)
		if err == nil {
			return estimate
		}
		if !errors.Is(err, ErrNoMatch) {
			c.logger.Warnf("nutrition analyzer %T: %v", analyzer, err)
		}
	}
	return DefaultEstimate(label)
}

// DefaultEstimate is the terminal fallback: a zeroed entry the user is asked
// to fill in by hand.
func DefaultEstimate(label string) Estimate {
	name := label
	if name == "" {
		name = "Food Item"
	}
	return Estimate{
		Nutrition: domain.Nutrition{
			Name:        name,
			ServingUnit: "serving",
			ServingQty:  1,
		},
		Confidence: 0.3,
		Source:     "default",
	}
}

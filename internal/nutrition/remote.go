package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nutritrack/internal/domain"
)

// RemoteAnalyzer queries a natural-language nutrition API. Endpoint and
// credentials come from config; an unconfigured analyzer reports ErrNoMatch so
// the chain moves on.
type RemoteAnalyzer struct {
	endpoint string
	appID    string
	apiKey   string
	client   *http.Client
}

func NewRemoteAnalyzer(endpoint, appID, apiKey string) *RemoteAnalyzer {
	return &RemoteAnalyzer{
		endpoint: endpoint,
		appID:    appID,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type remoteRequest struct {
	Query string `json:"query"`
}

type remoteResponse struct {
	Foods []struct {
		FoodName       string  `json:"food_name"`
		Calories       float64 `json:"nf_calories"`
		Protein        float64 `json:"nf_protein"`
		Carbs          float64 `json:"nf_total_carbohydrate"`
		Fat            float64 `json:"nf_total_fat"`
		Fiber          float64 `json:"nf_dietary_fiber"`
		Sugar          float64 `json:"nf_sugars"`
		Sodium         float64 `json:"nf_sodium"`
		ServingWeightG float64 `json:"serving_weight_grams"`
		ServingUnit    string  `json:"serving_unit"`
		ServingQty     float64 `json:"serving_qty"`
	} `json:"foods"`
}

func (a *RemoteAnalyzer) Analyze(ctx context.Context, label string) (Estimate, error) {
	if a.endpoint == "" || a.apiKey == "" {
		return Estimate{}, ErrNoMatch
	}
	if label == "" {
		return Estimate{}, ErrNoMatch
	}

	payload, err := json.Marshal(remoteRequest{Query: label})
	if err != nil {
		return Estimate{}, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Estimate{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-app-id", a.appID)
	req.Header.Set("x-app-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return Estimate{}, fmt.Errorf("nutrition api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Estimate{}, fmt.Errorf("nutrition api status %d", resp.StatusCode)
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Estimate{}, fmt.Errorf("decode nutrition response: %w", err)
	}
	if len(decoded.Foods) == 0 {
		return Estimate{}, ErrNoMatch
	}

	food := decoded.Foods[0]
	return Estimate{
		Nutrition: domain.Nutrition{
			Name:           food.FoodName,
			Calories:       food.Calories,
			Protein:        food.Protein,
			Carbs:          food.Carbs,
			Fat:            food.Fat,
			Fiber:          food.Fiber,
			Sugar:          food.Sugar,
			Sodium:         food.Sodium,
			ServingWeightG: food.ServingWeightG,
			ServingUnit:    food.ServingUnit,
			ServingQty:     food.ServingQty,
		},
		Confidence: 0.8,
		Source:     "remote",
	}, nil
}

var _ Analyzer = (*RemoteAnalyzer)(nil)

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"diettracker/models"
)

// NutritionLookup searches a nutrition reference database.
type NutritionLookup interface {
	Search(ctx context.Context, query string, limit int) ([]models.NutritionResult, error)
	Details(ctx context.Context, fdcID int) (*models.NutritionResult, error)
}

const usdaDataTypes = "Survey (FNDDS),Foundation,SR Legacy"

// Nutrient names as FoodData Central reports them.
const (
	nutrientEnergy  = "Energy"
	nutrientProtein = "Protein"
	nutrientCarbs   = "Carbohydrate, by difference"
	nutrientFat     = "Total lipid (fat)"
)

// USDAService is a client for the FoodData Central API.
type USDAService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewUSDAService(apiKey, baseURL string) *USDAService {
	if baseURL == "" {
		baseURL = "https://api.nal.usda.gov/fdc/v1"
	}
	return &USDAService{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (s *USDAService) Enabled() bool { return s.apiKey != "" }

type usdaSearchResponse struct {
	Foods []struct {
		FDCID           int     `json:"fdcId"`
		Description     string  `json:"description"`
		ServingSize     float64 `json:"servingSize"`
		ServingSizeUnit string  `json:"servingSizeUnit"`
		FoodNutrients   []struct {
			NutrientName string  `json:"nutrientName"`
			Value        float64 `json:"value"`
		} `json:"foodNutrients"`
	} `json:"foods"`
}

type usdaFoodResponse struct {
	FDCID         int    `json:"fdcId"`
	Description   string `json:"description"`
	FoodNutrients []struct {
		Nutrient struct {
			Name string `json:"name"`
		} `json:"nutrient"`
		Amount float64 `json:"amount"`
	} `json:"foodNutrients"`
}

// Search returns up to limit matches. Without an API key it returns nothing.
func (s *USDAService) Search(ctx context.Context, query string, limit int) ([]models.NutritionResult, error) {
	if !s.Enabled() {
		return []models.NutritionResult{}, nil
	}
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("query", query)
	q.Set("pageSize", strconv.Itoa(limit))
	q.Set("dataType", usdaDataTypes)

	var sr usdaSearchResponse
	if err := s.get(ctx, "/foods/search?"+q.Encode(), &sr); err != nil {
		return nil, err
	}

	results := make([]models.NutritionResult, 0, len(sr.Foods))
	for _, f := range sr.Foods {
		n := make(map[string]float64, len(f.FoodNutrients))
		for _, fn := range f.FoodNutrients {
			n[fn.NutrientName] = fn.Value
		}
		r := nutritionFrom(f.FDCID, f.Description, n)
		if r.FoodName == "" {
			r.FoodName = query
		}
		if f.ServingSize > 0 {
			unit := f.ServingSizeUnit
			if unit == "" {
				unit = "g"
			}
			r.ServingSize = strconv.FormatFloat(f.ServingSize, 'f', -1, 64) + unit
		}
		results = append(results, r)
	}
	return results, nil
}

// Details fetches one food by FoodData Central id. A missing food is ErrNotFound.
func (s *USDAService) Details(ctx context.Context, fdcID int) (*models.NutritionResult, error) {
	if !s.Enabled() {
		return nil, ErrNotFound
	}
	q := url.Values{}
	q.Set("api_key", s.apiKey)

	var fr usdaFoodResponse
	if err := s.get(ctx, fmt.Sprintf("/food/%d?%s", fdcID, q.Encode()), &fr); err != nil {
		return nil, err
	}
	n := make(map[string]float64, len(fr.FoodNutrients))
	for _, fn := range fr.FoodNutrients {
		n[fn.Nutrient.Name] = fn.Amount
	}
	name := fr.Description
	if name == "" {
		name = "Unknown"
	}
	r := nutritionFrom(fdcID, name, n)
	return &r, nil
}

func nutritionFrom(id int, name string, n map[string]float64) models.NutritionResult {
	return models.NutritionResult{
		FDCID:    id,
		FoodName: name,
		Calories: n[nutrientEnergy],
		Protein:  n[nutrientProtein],
		Carbs:    n[nutrientCarbs],
		Fat:      n[nutrientFat],
		Source:   "usda",
	}
}

func (s *USDAService) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create USDA request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call USDA API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read USDA response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("USDA API error %d: %s", resp.StatusCode, truncate(string(body), 300))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse USDA JSON: %w", err)
	}
	return nil
}

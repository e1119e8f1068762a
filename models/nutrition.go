package models

// NutritionResult is a normalized record from the nutrition reference database.
type NutritionResult struct {
	FDCID       int     `json:"fdc_id,omitempty"`
	FoodName    string  `json:"food_name"`
	ServingSize string  `json:"serving_size,omitempty"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	Source      string  `json:"source"`
}

package models

import "encoding/json"

// Provenance records which components produced a result.
type Provenance string

const (
	ProvenanceEstimatorOnly      Provenance = "estimator-only"
	ProvenanceClassifierAssisted Provenance = "classifier-assisted"
	ProvenanceLocalOnly          Provenance = "local-only"
	ProvenanceManual             Provenance = "manual"
)

// FoodItem is one detected or entered food with its macro estimates.
type FoodItem struct {
	FoodName    string  `json:"food_name"`
	ServingSize string  `json:"serving_size,omitempty"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	Confidence  float64 `json:"confidence"`
}

type Totals struct {
	Calories float64 `json:"total_calories"`
	Protein  float64 `json:"total_protein"`
	Carbs    float64 `json:"total_carbs"`
	Fat      float64 `json:"total_fat"`
}

func SumMacros(items []FoodItem) Totals {
	var t Totals
	for _, it := range items {
		t.Calories += it.Calories
		t.Protein += it.Protein
		t.Carbs += it.Carbs
		t.Fat += it.Fat
	}
	return t
}

// RecognitionResult carries no stored totals; Totals and the JSON encoding
// always sum the items.
type RecognitionResult struct {
	Items       []FoodItem
	Confidence  float64 // 0..100
	Provenance  Provenance
	RawResponse string
}

func (r RecognitionResult) Totals() Totals { return SumMacros(r.Items) }

func (r RecognitionResult) MarshalJSON() ([]byte, error) {
	items := r.Items
	if items == nil {
		items = []FoodItem{}
	}
	return json.Marshal(struct {
		FoodItems []FoodItem `json:"food_items"`
		Totals
		AIConfidence float64    `json:"ai_confidence"`
		Source       Provenance `json:"source"`
		RawResponse  string     `json:"raw_response,omitempty"`
	}{
		FoodItems:    items,
		Totals:       r.Totals(),
		AIConfidence: r.Confidence,
		Source:       r.Provenance,
		RawResponse:  r.RawResponse,
	})
}

// ClassifierPrediction is the local classifier's top label.
type ClassifierPrediction struct {
	Label      string  `json:"food_name"`
	ClassKey   string  `json:"class_key"`
	Confidence float64 `json:"confidence"` // 0..1
	ClassID    *int    `json:"food_101_class_id,omitempty"`
}

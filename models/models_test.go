package models

import (
	"encoding/json"
	"testing"
)

func TestRecognitionResultJSON(t *testing.T) {
	r := RecognitionResult{
		Items: []FoodItem{
			{FoodName: "Scrambled eggs", Calories: 140, Protein: 8, Carbs: 2, Fat: 7, Confidence: 90},
			{FoodName: "Toast", Calories: 80, Protein: 3, Carbs: 21, Fat: 2, Confidence: 85},
		},
		Confidence: 85,
		Provenance: ProvenanceClassifierAssisted,
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["total_calories"] != 220.0 || got["total_protein"] != 11.0 || got["total_carbs"] != 23.0 || got["total_fat"] != 9.0 {
		t.Fatalf("totals = %s", b)
	}
	if got["source"] != "classifier-assisted" || got["ai_confidence"] != 85.0 {
		t.Fatalf("json = %s", b)
	}
	if _, ok := got["raw_response"]; ok {
		t.Fatal("empty raw_response should be omitted")
	}
}

func TestEmptyResultEncodesItems(t *testing.T) {
	b, _ := json.Marshal(RecognitionResult{})
	var got struct {
		Items []FoodItem `json:"food_items"`
	}
	json.Unmarshal(b, &got)
	if got.Items == nil {
		t.Fatalf("food_items should be [] not null: %s", b)
	}
}

func TestFoodLogTotalsFromItems(t *testing.T) {
	l := &FoodLog{Items: LogItemsFrom([]FoodItem{
		{FoodName: "a", Calories: 100, Protein: 1, Carbs: 2, Fat: 3},
		{FoodName: "b", Calories: 50, Protein: 4, Carbs: 5, Fat: 6},
	})}
	if err := l.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if l.ID == "" || l.TotalCalories != 150 || l.TotalProtein != 5 || l.TotalCarbs != 7 || l.TotalFat != 9 {
		t.Fatalf("log = %+v", l)
	}
}

func TestTrainingSampleLabel(t *testing.T) {
	s := &TrainingSample{FoodName: " Chicken Wings "}
	s.BeforeCreate(nil)
	if s.Label != "chicken_wings" || s.ID == "" {
		t.Fatalf("sample = %+v", s)
	}
}

func TestValidMealType(t *testing.T) {
	for _, m := range []string{"breakfast", "lunch", "dinner", "snack"} {
		if !ValidMealType(m) {
			t.Errorf("%s rejected", m)
		}
	}
	if ValidMealType("brunch") || ValidMealType("") {
		t.Error("invalid meal type accepted")
	}
}

package services

import (
	"testing"

	"diettracker/models"
)

const eggsJSON = `{
  "food_items": [
    {"food_name": "Scrambled eggs", "serving_size": "2 eggs", "calories": 140, "protein": 8, "carbs": 2, "fat": 7, "confidence": 90},
    {"food_name": "Toast", "serving_size": "1 slice", "calories": 80, "protein": 3, "carbs": 21, "fat": 2, "confidence": 85}
  ],
  "overall_confidence": 85
}`

func TestParseEstimatorResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", eggsJSON},
		{"fenced", "```json\n" + eggsJSON + "\n```"},
		{"bare fence", "```\n" + eggsJSON + "\n```"},
		{"prose around", "Sure! Here is the estimate:\n" + eggsJSON + "\nLet me know if you need more."},
		{"decoy object first", `Format: {"note": "ignore"} then ` + eggsJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseEstimatorResponse(tt.raw)
			if len(res.Items) != 2 {
				t.Fatalf("items = %d, want 2", len(res.Items))
			}
			tot := res.Totals()
			want := models.Totals{Calories: 220, Protein: 11, Carbs: 23, Fat: 9}
			if tot != want {
				t.Fatalf("totals = %+v, want %+v", tot, want)
			}
			if res.Confidence != 85 {
				t.Fatalf("confidence = %v", res.Confidence)
			}
			if res.RawResponse != tt.raw {
				t.Fatal("raw response not preserved")
			}
		})
	}
}

func TestParseEstimatorResponseUnparsable(t *testing.T) {
	for _, raw := range []string{"", "I cannot see any food.", "{not json", "[1,2,3]"} {
		res := ParseEstimatorResponse(raw)
		if len(res.Items) != 0 || res.Confidence != 0 {
			t.Fatalf("%q: got %+v", raw, res)
		}
		if res.Items == nil {
			t.Fatalf("%q: items must be empty, not nil", raw)
		}
	}
}

func TestParseEstimatorResponseDefaultsAndClamping(t *testing.T) {
	raw := `{"food_items": [
		{"serving_size": "1 bowl", "calories": "350 kcal", "protein": "12", "carbs": null, "fat": -4, "confidence": 140},
		"garbage",
		{"food_name": "Apple", "calories": 95}
	], "overall_confidence": -10}`
	res := ParseEstimatorResponse(raw)
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	first := res.Items[0]
	if first.FoodName != "Unknown" {
		t.Errorf("name = %q", first.FoodName)
	}
	if first.Calories != 350 || first.Protein != 12 || first.Carbs != 0 || first.Fat != 0 {
		t.Errorf("macros = %+v", first)
	}
	if first.Confidence != 100 {
		t.Errorf("item confidence = %v", first.Confidence)
	}
	if res.Items[1].Confidence != 0 || res.Items[1].Protein != 0 {
		t.Errorf("absent fields should be 0: %+v", res.Items[1])
	}
	if res.Confidence != 0 {
		t.Errorf("overall confidence = %v", res.Confidence)
	}
}

func TestParseEstimatorResponseBracesInStrings(t *testing.T) {
	raw := `Result: {"food_items": [{"food_name": "Taco {spicy}", "calories": 200}], "overall_confidence": 70}`
	res := ParseEstimatorResponse(raw)
	if len(res.Items) != 1 || res.Items[0].FoodName != "Taco {spicy}" {
		t.Fatalf("got %+v", res.Items)
	}
	if res.Confidence != 70 {
		t.Fatalf("confidence = %v", res.Confidence)
	}
}

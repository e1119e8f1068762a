package services

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"diettracker/models"
)

var (
	fenceOpen  = regexp.MustCompile("^```(?:json|JSON)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
	leadingNum = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?`)
)

// maxCandidateStarts bounds the balanced-object scan on very long responses.
const maxCandidateStarts = 32

// flexFloat decodes numbers, numeric strings ("120", "120 kcal") and null.
// Anything else decodes to 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = 0
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		if m := leadingNum.FindString(strings.TrimSpace(str)); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				*f = flexFloat(v)
			}
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexFloat(v)
	}
	return nil
}

type estimateItem struct {
	FoodName    json.RawMessage `json:"food_name"`
	ServingSize json.RawMessage `json:"serving_size"`
	Calories    flexFloat       `json:"calories"`
	Protein     flexFloat       `json:"protein"`
	Carbs       flexFloat       `json:"carbs"`
	Fat         flexFloat       `json:"fat"`
	Confidence  flexFloat       `json:"confidence"`
}

type estimateEnvelope struct {
	FoodItems         *[]json.RawMessage `json:"food_items"`
	OverallConfidence *flexFloat         `json:"overall_confidence"`
}

// ParseEstimatorResponse turns free-form model output into a result. It never
// fails: unusable content yields no items and zero confidence.
func ParseEstimatorResponse(raw string) models.RecognitionResult {
	res := models.RecognitionResult{
		Items:       []models.FoodItem{},
		Provenance:  models.ProvenanceEstimatorOnly,
		RawResponse: raw,
	}
	cleaned := stripFences(raw)

	var fallback *estimateEnvelope
	for _, cand := range jsonCandidates(cleaned) {
		env, ok := decodeEnvelope(cand)
		if !ok {
			continue
		}
		if env.FoodItems != nil || env.OverallConfidence != nil {
			fill(&res, env)
			return res
		}
		if fallback == nil {
			fallback = env
		}
	}
	if fallback != nil {
		fill(&res, fallback)
	}
	return res
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// jsonCandidates lists, in order of preference: the whole text, every
// balanced {...} span, and the greedy span from the first '{' to the last '}'.
func jsonCandidates(s string) []string {
	out := []string{s}
	starts := 0
	for i := 0; i < len(s) && starts < maxCandidateStarts; i++ {
		if s[i] != '{' {
			continue
		}
		starts++
		if end := balancedEnd(s, i); end > i {
			out = append(out, s[i:end+1])
		}
	}
	if first, last := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); first >= 0 && last > first {
		out = append(out, s[first:last+1])
	}
	return out
}

// balancedEnd returns the index of the brace closing the object opened at
// start, skipping braces inside string literals, or -1.
func balancedEnd(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeEnvelope(s string) (*estimateEnvelope, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var env estimateEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, false
	}
	return &env, true
}

func fill(res *models.RecognitionResult, env *estimateEnvelope) {
	if env.OverallConfidence != nil {
		res.Confidence = clampConfidence(float64(*env.OverallConfidence))
	}
	if env.FoodItems == nil {
		return
	}
	for _, rawItem := range *env.FoodItems {
		var it estimateItem
		if err := json.Unmarshal(rawItem, &it); err != nil {
			continue
		}
		name := textOf(it.FoodName)
		if name == "" {
			name = "Unknown"
		}
		res.Items = append(res.Items, models.FoodItem{
			FoodName:    name,
			ServingSize: textOf(it.ServingSize),
			Calories:    nonNegative(float64(it.Calories)),
			Protein:     nonNegative(float64(it.Protein)),
			Carbs:       nonNegative(float64(it.Carbs)),
			Fat:         nonNegative(float64(it.Fat)),
			Confidence:  clampConfidence(float64(it.Confidence)),
		})
	}
}

// textOf renders a JSON string or number as text; anything else is empty.
func textOf(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return ""
		}
		return strings.TrimSpace(str)
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return s
	}
	return ""
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

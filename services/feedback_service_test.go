package services

import (
	"context"
	"errors"
	"testing"

	"diettracker/models"
)

func TestFeedbackRecorder(t *testing.T) {
	withConf := func(c float64) *models.RecognitionResult {
		r := eggsAndToast()
		r.Confidence = c
		return r
	}
	tests := []struct {
		name     string
		res      *models.RecognitionResult
		imageURL string
		want     int
		skipped  bool
	}{
		{"confident with image", withConf(85), "https://cdn/x.jpg", 2, false},
		{"exactly at bar", withConf(80), "https://cdn/x.jpg", 2, false},
		{"below bar", withConf(79.9), "https://cdn/x.jpg", 0, true},
		{"no image url", withConf(95), "", 0, true},
		{"no items", &models.RecognitionResult{Confidence: 99}, "https://cdn/x.jpg", 0, true},
		{"nil result", nil, "https://cdn/x.jpg", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &mockSampleWriter{}
			out := NewDatasetFeedbackRecorder(w, DefaultDatasetMinConfidence).Record(context.Background(), tt.res, tt.imageURL)
			if out.Recorded != tt.want || len(w.samples) != tt.want {
				t.Fatalf("recorded = %d, written = %d, want %d", out.Recorded, len(w.samples), tt.want)
			}
			if (out.Skipped != "") != tt.skipped {
				t.Fatalf("skipped = %q", out.Skipped)
			}
			if out.Err != nil {
				t.Fatalf("err = %v", out.Err)
			}
		})
	}
}

func TestFeedbackSampleFields(t *testing.T) {
	w := &mockSampleWriter{}
	res := eggsAndToast()
	res.Provenance = models.ProvenanceClassifierAssisted
	NewDatasetFeedbackRecorder(w, 80).Record(context.Background(), res, "https://cdn/x.jpg")
	if len(w.samples) != 2 {
		t.Fatalf("samples = %d", len(w.samples))
	}
	s := w.samples[1]
	if s.FoodName != "Toast" || s.ImageURL != "https://cdn/x.jpg" || s.Verified {
		t.Fatalf("sample = %+v", s)
	}
	if s.Source != models.SourceAIAuto || s.Provenance != models.ProvenanceClassifierAssisted {
		t.Fatalf("source/provenance = %s/%s", s.Source, s.Provenance)
	}
	if s.Calories == nil || *s.Calories != 80 || *s.Carbs != 21 {
		t.Fatalf("macros not copied: %+v", s)
	}
}

func TestFeedbackWriteFailure(t *testing.T) {
	w := &mockSampleWriter{err: errors.New("db down")}
	out := NewDatasetFeedbackRecorder(w, 80).Record(context.Background(), eggsAndToast(), "https://cdn/x.jpg")
	if out.Err == nil || out.Recorded != 0 {
		t.Fatalf("outcome = %+v", out)
	}
}

package services

import (
	"context"
	"log"

	"diettracker/models"
)

// DefaultDatasetMinConfidence is the estimator confidence (0..100) a result
// needs before its items become training samples.
const DefaultDatasetMinConfidence = 80

// FeedbackOutcome reports what the recorder did. Skipped carries the reason
// when nothing was written; Err is set when the write itself failed.
type FeedbackOutcome struct {
	Recorded int
	Skipped  string
	Err      error
}

// DatasetFeedbackRecorder turns confident image results into unverified
// training samples.
type DatasetFeedbackRecorder struct {
	writer        SampleWriter
	minConfidence float64
}

func NewDatasetFeedbackRecorder(writer SampleWriter, minConfidence float64) *DatasetFeedbackRecorder {
	return &DatasetFeedbackRecorder{writer: writer, minConfidence: minConfidence}
}

// Record writes one sample per item when res.Confidence >= the bar and an
// image URL is known.
func (r *DatasetFeedbackRecorder) Record(ctx context.Context, res *models.RecognitionResult, imageURL string) FeedbackOutcome {
	switch {
	case res == nil:
		return FeedbackOutcome{Skipped: "no result"}
	case imageURL == "":
		return FeedbackOutcome{Skipped: "no image url"}
	case res.Confidence < r.minConfidence:
		return FeedbackOutcome{Skipped: "confidence below threshold"}
	case len(res.Items) == 0:
		return FeedbackOutcome{Skipped: "no items"}
	}

	samples := make([]models.TrainingSample, 0, len(res.Items))
	for _, it := range res.Items {
		cal, pro, carb, fat := it.Calories, it.Protein, it.Carbs, it.Fat
		samples = append(samples, models.TrainingSample{
			ImageURL:   imageURL,
			FoodName:   it.FoodName,
			Calories:   &cal,
			Protein:    &pro,
			Carbs:      &carb,
			Fat:        &fat,
			Verified:   false,
			Source:     models.SourceAIAuto,
			Provenance: res.Provenance,
		})
	}
	if err := r.writer.CreateSamples(ctx, samples); err != nil {
		log.Printf("feedback: failed to record %d samples: %v", len(samples), err)
		return FeedbackOutcome{Err: err}
	}
	log.Printf("feedback: recorded %d samples (confidence=%.0f)", len(samples), res.Confidence)
	return FeedbackOutcome{Recorded: len(samples)}
}

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"diettracker/ml/labels"
	"diettracker/models"
)

// DetectLabelsAPI is the slice of the Rekognition client the classifier uses.
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

var errNoSpecificLabel = errors.New("rekognition: no specific food label")

// genericLabels are too broad to name a dish.
var genericLabels = map[string]bool{
	"food": true, "meal": true, "dish": true, "plate": true, "produce": true,
	"lunch": true, "dinner": true, "breakfast": true, "cuisine": true,
}

// RekognitionClassifier uses AWS Rekognition labels as the local-stage signal.
type RekognitionClassifier struct {
	client        DetectLabelsAPI
	minConfidence float32
}

func NewRekognitionClassifier(client DetectLabelsAPI, minConfidence float64) *RekognitionClassifier {
	return &RekognitionClassifier{client: client, minConfidence: float32(minConfidence)}
}

func (r *RekognitionClassifier) Name() string { return "rekognition" }

// Predict returns the most confident specific label, with Rekognition's
// 0-100 confidence scaled to 0-1.
func (r *RekognitionClassifier) Predict(ctx context.Context, image []byte) (*models.ClassifierPrediction, error) {
	if len(image) == 0 {
		return nil, errors.New("rekognition: empty image")
	}
	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(10),
		MinConfidence: aws.Float32(r.minConfidence),
	})
	if err != nil {
		return nil, err
	}

	var best *types.Label
	for i := range out.Labels {
		l := &out.Labels[i]
		if l.Name == nil || l.Confidence == nil || genericLabels[strings.ToLower(*l.Name)] {
			continue
		}
		if best == nil || *l.Confidence > *best.Confidence {
			best = l
		}
	}
	if best == nil {
		return nil, errNoSpecificLabel
	}

	key := labels.Normalize(*best.Name)
	pred := &models.ClassifierPrediction{
		Label:      labels.DisplayName(key),
		ClassKey:   key,
		Confidence: float64(*best.Confidence) / 100,
	}
	if id, ok := labels.Food101ID(key); ok {
		pred.ClassID = &id
	}
	return pred, nil
}

package services

import (
	"context"
	"sync"

	"diettracker/models"
)

type mockEstimator struct {
	mu        sync.Mutex
	calls     int
	imageFunc func(ctx context.Context, image []byte, mimeType string) (*models.RecognitionResult, error)
	textFunc  func(ctx context.Context, description string) (*models.RecognitionResult, error)
}

func (m *mockEstimator) Name() string { return "mock" }

func (m *mockEstimator) EstimateImage(ctx context.Context, image []byte, mimeType string) (*models.RecognitionResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.imageFunc(ctx, image, mimeType)
}

func (m *mockEstimator) EstimateText(ctx context.Context, description string) (*models.RecognitionResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.textFunc(ctx, description)
}

func (m *mockEstimator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockClassifier struct {
	predictFunc func(ctx context.Context, image []byte) (*models.ClassifierPrediction, error)
}

func (m *mockClassifier) Name() string { return "mock-classifier" }

func (m *mockClassifier) Predict(ctx context.Context, image []byte) (*models.ClassifierPrediction, error) {
	return m.predictFunc(ctx, image)
}

type mockLookup struct {
	searchFunc func(ctx context.Context, query string, limit int) ([]models.NutritionResult, error)
}

func (m *mockLookup) Search(ctx context.Context, query string, limit int) ([]models.NutritionResult, error) {
	return m.searchFunc(ctx, query, limit)
}

func (m *mockLookup) Details(context.Context, int) (*models.NutritionResult, error) {
	return nil, ErrNotFound
}

type mockSampleWriter struct {
	mu      sync.Mutex
	samples []models.TrainingSample
	err     error
}

func (m *mockSampleWriter) CreateSamples(_ context.Context, samples []models.TrainingSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.samples = append(m.samples, samples...)
	return nil
}

// eggsAndToast is the canonical two-item estimator answer.
func eggsAndToast() *models.RecognitionResult {
	return &models.RecognitionResult{
		Items: []models.FoodItem{
			{FoodName: "Scrambled eggs", ServingSize: "2 eggs", Calories: 140, Protein: 8, Carbs: 2, Fat: 7, Confidence: 90},
			{FoodName: "Toast", ServingSize: "1 slice", Calories: 80, Protein: 3, Carbs: 21, Fat: 2, Confidence: 85},
		},
		Confidence: 85,
		Provenance: models.ProvenanceEstimatorOnly,
	}
}

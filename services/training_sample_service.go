package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"diettracker/models"
)

// SampleWriter is the write side the feedback recorder needs.
type SampleWriter interface {
	CreateSamples(ctx context.Context, samples []models.TrainingSample) error
}

type TrainingSampleStore struct {
	db *gorm.DB
}

func NewTrainingSampleStore(db *gorm.DB) *TrainingSampleStore {
	return &TrainingSampleStore{db: db}
}

// CreateSamples inserts all samples in one transaction.
func (s *TrainingSampleStore) CreateSamples(ctx context.Context, samples []models.TrainingSample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&samples).Error
}

// ManualSample is a sample entered by a curator. It is stored verified
// since a curator labelled it.
type ManualSample struct {
	ImageURL string   `json:"image_url"`
	FoodName string   `json:"food_name"`
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

func (s *TrainingSampleStore) CreateManual(ctx context.Context, in ManualSample) (*models.TrainingSample, error) {
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, invalidf("image_url is required")
	}
	if strings.TrimSpace(in.FoodName) == "" {
		return nil, invalidf("food_name is required")
	}
	sample := models.TrainingSample{
		ImageURL:   in.ImageURL,
		FoodName:   strings.TrimSpace(in.FoodName),
		Calories:   in.Calories,
		Protein:    in.Protein,
		Carbs:      in.Carbs,
		Fat:        in.Fat,
		Verified:   true,
		Source:     models.SourceManual,
		Provenance: models.ProvenanceManual,
	}
	if err := s.db.WithContext(ctx).Create(&sample).Error; err != nil {
		return nil, err
	}
	return &sample, nil
}

// Verify marks one sample as curated. Verifying twice is not an error.
func (s *TrainingSampleStore) Verify(ctx context.Context, id string) (*models.TrainingSample, error) {
	var sample models.TrainingSample
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sample, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if sample.Verified {
			return nil
		}
		sample.Verified = true
		return tx.Model(&sample).Update("verified", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// List returns samples oldest first. verified filters when non-nil; limit
// <= 0 means no limit.
func (s *TrainingSampleStore) List(ctx context.Context, verified *bool, limit int) ([]models.TrainingSample, error) {
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if verified != nil {
		q = q.Where("verified = ?", *verified)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.TrainingSample
	err := q.Find(&out).Error
	return out, err
}

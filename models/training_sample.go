package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"diettracker/ml/labels"
)

// Sample sources.
const (
	// SourceAIAuto rows carry estimator labels nobody has checked yet.
	SourceAIAuto = "ai_auto"
	SourceManual = "manual"
)

// TrainingSample is one labeled image for future retraining. Only the
// verified flag ever changes; a correction is a new row.
type TrainingSample struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ImageURL   string     `gorm:"not null" json:"image_url"`
	FoodName   string     `gorm:"not null" json:"food_name"`
	Label      string     `gorm:"type:varchar(128);index" json:"label"`
	Calories   *float64   `json:"calories,omitempty"`
	Protein    *float64   `json:"protein,omitempty"`
	Carbs      *float64   `json:"carbs,omitempty"`
	Fat        *float64   `json:"fat,omitempty"`
	Verified   bool       `gorm:"index" json:"verified"`
	Source     string     `gorm:"type:varchar(32)" json:"source"`
	Provenance Provenance `gorm:"type:varchar(32)" json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (s *TrainingSample) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Label == "" {
		s.Label = labels.Normalize(s.FoodName)
	}
	return nil
}

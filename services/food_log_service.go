package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"diettracker/models"
)

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 200
)

// FoodLogNotifier receives newly created logs. *RealtimeHub implements it.
type FoodLogNotifier interface {
	Notify(userID, kind, key string, payload any)
}

// NewFoodLog is the input of FoodLogService.Create.
type NewFoodLog struct {
	MealType   string
	LoggedDate string // YYYY-MM-DD, today when empty
	Notes      string
	ImageURL   string
	Items      []models.FoodItem
	Confidence *float64
	Provenance models.Provenance
}

// FromRecognition fills a NewFoodLog from a recognition result.
func FromRecognition(res *models.RecognitionResult, mealType, imageURL, notes string) NewFoodLog {
	conf := res.Confidence
	return NewFoodLog{
		MealType:   mealType,
		Notes:      notes,
		ImageURL:   imageURL,
		Items:      res.Items,
		Confidence: &conf,
		Provenance: res.Provenance,
	}
}

type FoodLogService struct {
	db       *gorm.DB
	notifier FoodLogNotifier
}

// NewFoodLogService returns a service over db. notifier may be nil.
func NewFoodLogService(db *gorm.DB, notifier FoodLogNotifier) *FoodLogService {
	return &FoodLogService{db: db, notifier: notifier}
}

func (s *FoodLogService) Create(ctx context.Context, userID string, in NewFoodLog) (*models.FoodLog, error) {
	if userID == "" {
		return nil, invalidf("user id is required")
	}
	if !models.ValidMealType(in.MealType) {
		return nil, invalidf("meal_type must be one of breakfast, lunch, dinner, snack")
	}
	date := in.LoggedDate
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, invalidf("logged_date must be YYYY-MM-DD")
	}
	if len(in.Items) == 0 {
		return nil, invalidf("at least one food item is required")
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.FoodName) == "" {
			return nil, invalidf("food_name is required for every item")
		}
		if it.Calories < 0 || it.Protein < 0 || it.Carbs < 0 || it.Fat < 0 {
			return nil, invalidf("nutrition values must not be negative")
		}
	}
	prov := in.Provenance
	if prov == "" {
		prov = models.ProvenanceManual
	}

	entry := &models.FoodLog{
		UserID:       userID,
		ImageURL:     in.ImageURL,
		AIConfidence: in.Confidence,
		LoggedDate:   date,
		MealType:     in.MealType,
		Notes:        in.Notes,
		Provenance:   prov,
		Items:        models.LogItemsFrom(in.Items),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(userID, EventFoodLogCreated, "food_log", entry)
	}
	return entry, nil
}

// List returns the user's logs newest first, optionally for one date.
func (s *FoodLogService) List(ctx context.Context, userID, date string, limit int) ([]models.FoodLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	q := s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID)
	if date != "" {
		q = q.Where("logged_date = ?", date)
	}
	var logs []models.FoodLog
	err := q.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (s *FoodLogService) Get(ctx context.Context, userID, id string) (*models.FoodLog, error) {
	var entry models.FoodLog
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *FoodLogService) Delete(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.FoodLog
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("food_log_id = ?", entry.ID).Delete(&models.FoodLogItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entry).Error
	})
}

type MealTypeSummary struct {
	Count    int     `json:"count"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type DailySummary struct {
	Date string `json:"date"`
	models.Totals
	MealCount   int                         `json:"meal_count"`
	MealsByType map[string]*MealTypeSummary `json:"meals_by_type"`
}

// DailySummary aggregates every log of one date.
func (s *FoodLogService) DailySummary(ctx context.Context, userID, date string) (*DailySummary, error) {
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, invalidf("date must be YYYY-MM-DD")
	}
	var logs []models.FoodLog
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND logged_date = ?", userID, date).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	sum := &DailySummary{Date: date, MealCount: len(logs), MealsByType: map[string]*MealTypeSummary{}}
	for _, l := range logs {
		sum.Calories += l.TotalCalories
		sum.Protein += l.TotalProtein
		sum.Carbs += l.TotalCarbs
		sum.Fat += l.TotalFat
		m := sum.MealsByType[l.MealType]
		if m == nil {
			m = &MealTypeSummary{}
			sum.MealsByType[l.MealType] = m
		}
		m.Count++
		m.Calories += l.TotalCalories
		m.Protein += l.TotalProtein
		m.Carbs += l.TotalCarbs
		m.Fat += l.TotalFat
	}
	return sum, nil
}

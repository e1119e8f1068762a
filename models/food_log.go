package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MealType values accepted by the food log endpoints.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

func ValidMealType(s string) bool {
	switch s {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// DateLayout is the format of FoodLog.LoggedDate.
const DateLayout = "2006-01-02"

// FoodLog is one logged meal. Totals are derived from Items when the row is
// created; there is no update path, so they cannot drift afterwards.
type FoodLog struct {
	ID            string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string        `gorm:"type:varchar(64);index;not null" json:"user_id"`
	ImageURL      string        `json:"image_url,omitempty"`
	TotalCalories float64       `json:"total_calories"`
	TotalProtein  float64       `json:"total_protein"`
	TotalCarbs    float64       `json:"total_carbs"`
	TotalFat      float64       `json:"total_fat"`
	AIConfidence  *float64      `json:"ai_confidence"`
	LoggedDate    string        `gorm:"type:varchar(10);index" json:"logged_date"`
	MealType      string        `gorm:"type:varchar(16)" json:"meal_type"`
	Notes         string        `json:"notes,omitempty"`
	Provenance    Provenance    `gorm:"type:varchar(32)" json:"source"`
	CreatedAt     time.Time     `json:"created_at"`
	Items         []FoodLogItem `gorm:"foreignKey:FoodLogID;constraint:OnDelete:CASCADE" json:"food_items"`
}

type FoodLogItem struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	FoodLogID   string    `gorm:"type:varchar(36);index;not null" json:"food_log_id"`
	FoodName    string    `gorm:"not null" json:"food_name"`
	ServingSize string    `json:"serving_size,omitempty"`
	Calories    float64   `json:"calories"`
	Protein     float64   `json:"protein"`
	Carbs       float64   `json:"carbs"`
	Fat         float64   `json:"fat"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l *FoodLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	t := l.ItemTotals()
	l.TotalCalories, l.TotalProtein, l.TotalCarbs, l.TotalFat = t.Calories, t.Protein, t.Carbs, t.Fat
	return nil
}

func (i *FoodLogItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// ItemTotals sums the macros of the log's items.
func (l *FoodLog) ItemTotals() Totals {
	var t Totals
	for _, it := range l.Items {
		t.Calories += it.Calories
		t.Protein += it.Protein
		t.Carbs += it.Carbs
		t.Fat += it.Fat
	}
	return t
}

// LogItemsFrom converts recognized items into log rows.
func LogItemsFrom(items []FoodItem) []FoodLogItem {
	out := make([]FoodLogItem, 0, len(items))
	for _, it := range items {
		out = append(out, FoodLogItem{
			FoodName:    it.FoodName,
			ServingSize: it.ServingSize,
			Calories:    it.Calories,
			Protein:     it.Protein,
			Carbs:       it.Carbs,
			Fat:         it.Fat,
		})
	}
	return out
}

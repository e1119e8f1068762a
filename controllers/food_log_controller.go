package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"diettracker/models"
	"diettracker/services"
)

type FoodLogController struct {
	Logs *services.FoodLogService
}

func NewFoodLogController(logs *services.FoodLogService) *FoodLogController {
	return &FoodLogController{Logs: logs}
}

type manualLogRequest struct {
	MealType   string            `json:"meal_type" binding:"required"`
	LoggedDate string            `json:"logged_date"`
	Notes      string            `json:"notes"`
	ImageURL   string            `json:"image_url"`
	FoodItems  []models.FoodItem `json:"food_items" binding:"required"`
}

// Create handles POST /food-logs.
func (fc *FoodLogController) Create(c *gin.Context) {
	var body manualLogRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	entry, err := fc.Logs.Create(c.Request.Context(), currentUser(c), services.NewFoodLog{
		MealType:   body.MealType,
		LoggedDate: body.LoggedDate,
		Notes:      body.Notes,
		ImageURL:   body.ImageURL,
		Items:      body.FoodItems,
		Provenance: models.ProvenanceManual,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// List handles GET /food-logs?date=&limit=.
func (fc *FoodLogController) List(c *gin.Context) {
	limit, ok := parseLimit(c, services.DefaultLogLimit, services.MaxLogLimit)
	if !ok {
		return
	}
	logs, err := fc.Logs.List(c.Request.Context(), currentUser(c), c.Query("date"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"food_logs": logs, "count": len(logs)})
}

func (fc *FoodLogController) Summary(c *gin.Context) {
	sum, err := fc.Logs.DailySummary(c.Request.Context(), currentUser(c), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (fc *FoodLogController) Get(c *gin.Context) {
	entry, err := fc.Logs.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (fc *FoodLogController) Delete(c *gin.Context) {
	if err := fc.Logs.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Food log deleted"})
}

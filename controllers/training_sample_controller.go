package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"diettracker/services"
)

type TrainingSampleController struct {
	Samples *services.TrainingSampleStore
}

func NewTrainingSampleController(s *services.TrainingSampleStore) *TrainingSampleController {
	return &TrainingSampleController{Samples: s}
}

// Create handles POST /training-samples.
func (tc *TrainingSampleController) Create(c *gin.Context) {
	var body services.ManualSample
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	sample, err := tc.Samples.CreateManual(c.Request.Context(), body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sample)
}

// List handles GET /training-samples?verified=&limit=.
func (tc *TrainingSampleController) List(c *gin.Context) {
	var verified *bool
	if raw := c.Query("verified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "verified must be true or false")
			return
		}
		verified = &v
	}
	limit, ok := parseLimit(c, 100, 1000)
	if !ok {
		return
	}
	samples, err := tc.Samples.List(c.Request.Context(), verified, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples, "count": len(samples)})
}

// Verify handles POST /training-samples/:id/verify.
func (tc *TrainingSampleController) Verify(c *gin.Context) {
	sample, err := tc.Samples.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

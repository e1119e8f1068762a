package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"diettracker/services"
)

type NutritionController struct {
	Lookup services.NutritionLookup
}

func NewNutritionController(lookup services.NutritionLookup) *NutritionController {
	return &NutritionController{Lookup: lookup}
}

// Search handles GET /nutrition/search?query=&limit=.
func (nc *NutritionController) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("query"))
	if len(q) < 2 {
		badRequest(c, "query must be at least 2 characters")
		return
	}
	limit, ok := parseLimit(c, 10, 25)
	if !ok {
		return
	}
	results, err := nc.Lookup.Search(c.Request.Context(), q, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": results, "count": len(results)})
}

func (nc *NutritionController) Details(c *gin.Context) {
	id, err := strconv.Atoi(c.Query("fdc_id"))
	if err != nil || id <= 0 {
		badRequest(c, "fdc_id must be a positive integer")
		return
	}
	r, err := nc.Lookup.Details(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

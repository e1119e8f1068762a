package controllers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"diettracker/models"
	"diettracker/services"
)

type RecognitionController struct {
	Recognizer *services.HybridRecognizer
	Logs       *services.FoodLogService
	Images     services.ImageStore
	Feedback   *services.DatasetFeedbackRecorder
}

func NewRecognitionController(r *services.HybridRecognizer, logs *services.FoodLogService, images services.ImageStore, fb *services.DatasetFeedbackRecorder) *RecognitionController {
	return &RecognitionController{Recognizer: r, Logs: logs, Images: images, Feedback: fb}
}

// saveRequest is the optional "also log this meal" part of a recognition call.
type saveRequest struct {
	save     bool
	mealType string
}

func saveFromForm(c *gin.Context) (saveRequest, bool) {
	req := saveRequest{save: parseBool(c.PostForm("save_log")), mealType: c.PostForm("meal_type")}
	if req.mealType != "" && !models.ValidMealType(req.mealType) {
		badRequest(c, "meal_type must be one of breakfast, lunch, dinner, snack")
		return req, false
	}
	return req, true
}

// persisted reports the optional side effects of a recognition call.
type persisted struct {
	log      *models.FoodLog
	imageURL string
}

// persist uploads the image and saves the log. Failures are logged and
// never fail the response.
func (rc *RecognitionController) persist(ctx context.Context, userID string, res *models.RecognitionResult, req saveRequest, image []byte, mime, notes string) persisted {
	var out persisted
	if !req.save || req.mealType == "" {
		return out
	}
	if image != nil {
		up := services.Upload(ctx, rc.Images, userID, image, mime)
		if up.Err != nil {
			log.Printf("recognition: image upload failed for %s: %v", userID, up.Err)
		}
		out.imageURL = up.URL
	}
	entry, err := rc.Logs.Create(ctx, userID, services.FromRecognition(res, req.mealType, out.imageURL, notes))
	if err != nil {
		log.Printf("recognition: failed to save food log for %s: %v", userID, err)
		return out
	}
	out.log = entry
	return out
}

// RecognizeImage handles POST /recognize/image.
func (rc *RecognitionController) RecognizeImage(c *gin.Context) {
	image, mime, err := readImage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	req, ok := saveFromForm(c)
	if !ok {
		return
	}
	res, err := rc.Recognizer.EstimateImage(c.Request.Context(), image, mime)
	if err != nil {
		respondError(c, err)
		return
	}
	p := rc.persist(c.Request.Context(), currentUser(c), res, req, image, mime, "")
	c.JSON(http.StatusOK, gin.H{"recognition": res, "food_log": p.log, "image_url": p.imageURL})
}

type textRequest struct {
	Description string `json:"description" form:"description"`
	MealType    string `json:"meal_type" form:"meal_type"`
	SaveLog     bool   `json:"save_log" form:"save_log"`
}

// RecognizeText handles POST /recognize/text.
func (rc *RecognitionController) RecognizeText(c *gin.Context) {
	var body textRequest
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	body.Description = strings.TrimSpace(body.Description)
	if body.Description == "" {
		badRequest(c, "Description cannot be empty")
		return
	}
	if body.MealType != "" && !models.ValidMealType(body.MealType) {
		badRequest(c, "meal_type must be one of breakfast, lunch, dinner, snack")
		return
	}
	res, err := rc.Recognizer.EstimateText(c.Request.Context(), body.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	req := saveRequest{save: body.SaveLog, mealType: body.MealType}
	p := rc.persist(c.Request.Context(), currentUser(c), res, req, nil, "", "Text entry: "+body.Description)
	c.JSON(http.StatusOK, gin.H{"recognition": res, "food_log": p.log})
}

// RecognizeHybrid handles POST /recognize/hybrid.
func (rc *RecognitionController) RecognizeHybrid(c *gin.Context) {
	image, mime, err := readImage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	req, ok := saveFromForm(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	out, err := rc.Recognizer.Recognize(ctx, image, mime)
	if err != nil {
		respondError(c, err)
		return
	}

	userID := currentUser(c)
	p := rc.persist(ctx, userID, out.Result, req, image, mime, "")
	recorded := 0
	// Samples point at the stored image of a saved log.
	if p.log != nil && p.imageURL != "" && rc.Feedback != nil {
		fb := rc.Feedback.Record(ctx, out.Result, p.imageURL)
		switch {
		case fb.Err != nil:
			log.Printf("recognition: dataset feedback failed for %s: %v", userID, fb.Err)
		case fb.Skipped != "":
			log.Printf("recognition: dataset feedback skipped: %s", fb.Skipped)
		}
		recorded = fb.Recorded
	}

	resp := gin.H{
		"recognition":              out.Result,
		"custom_model_prediction":  out.Local.Prediction,
		"source":                   out.Provenance,
		"custom_model_enabled":     rc.Recognizer.LocalEnabled(),
		"dataset_samples_recorded": recorded,
		"food_log":                 p.log,
		"image_url":                p.imageURL,
	}
	if out.Local.Err != nil {
		resp["custom_model_error"] = out.Local.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

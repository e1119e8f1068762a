package services

import (
	"context"

	"diettracker/models"
)

// NutritionEstimator is the authoritative vision/text nutrition source.
type NutritionEstimator interface {
	EstimateImage(ctx context.Context, image []byte, mimeType string) (*models.RecognitionResult, error)
	EstimateText(ctx context.Context, description string) (*models.RecognitionResult, error)
	Name() string
}

const estimatorSystemPrompt = `You are a professional nutritionist AI. When given a photo of food or a description of a meal:

1. Identify EVERY food item
2. Estimate the serving size for each item
3. Provide calorie and macronutrient estimates (protein, carbs, fat) in grams
4. Rate your overall confidence from 0-100

Be practical and realistic with portions. If a food item is partially hidden or unclear,
make your best estimate and lower the confidence score.

IMPORTANT: Respond ONLY with valid JSON in this exact format, no other text:
{
  "food_items": [
    {
      "food_name": "food name here",
      "serving_size": "estimated serving size",
      "calories": 0,
      "protein": 0,
      "carbs": 0,
      "fat": 0,
      "confidence": 85
    }
  ],
  "overall_confidence": 85
}`

const imageUserPrompt = "Analyze this food photo. Identify all food items and estimate their nutritional content."

func textUserPrompt(description string) string {
	return "Estimate the nutritional content of this meal: " + description
}

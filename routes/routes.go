package routes

import (
	"github.com/gin-gonic/gin"

	"diettracker/controllers"
	"diettracker/middlewares"
	"diettracker/services"
)

// Deps are the wired services the router exposes.
type Deps struct {
	JWTSecret   string
	CORSOrigins []string
	Info        controllers.ServiceInfo

	Recognizer *services.HybridRecognizer
	Logs       *services.FoodLogService
	Samples    *services.TrainingSampleStore
	Feedback   *services.DatasetFeedbackRecorder
	Images     services.ImageStore
	Nutrition  services.NutritionLookup
	Hub        *services.RealtimeHub
	Push       *services.PushService
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middlewares.CORS(d.CORSOrigins))

	r.GET("/", controllers.Root(d.Info))
	r.GET("/health", controllers.Health)

	recognition := controllers.NewRecognitionController(d.Recognizer, d.Logs, d.Images, d.Feedback)
	logs := controllers.NewFoodLogController(d.Logs)
	nutrition := controllers.NewNutritionController(d.Nutrition)
	samples := controllers.NewTrainingSampleController(d.Samples)

	api := r.Group("/api/v1")
	api.Use(middlewares.AuthMiddleware(d.JWTSecret))
	{
		api.POST("/recognize/image", recognition.RecognizeImage)
		api.POST("/recognize/text", recognition.RecognizeText)
		api.POST("/recognize/hybrid", recognition.RecognizeHybrid)

		api.POST("/food-logs", logs.Create)
		api.GET("/food-logs", logs.List)
		api.GET("/food-logs/summary", logs.Summary)
		api.GET("/food-logs/:id", logs.Get)
		api.DELETE("/food-logs/:id", logs.Delete)

		api.GET("/nutrition/search", nutrition.Search)
		api.GET("/nutrition/details", nutrition.Details)

		curation := api.Group("/training-samples", middlewares.RequireRole(middlewares.RoleCurator))
		curation.POST("", samples.Create)
		curation.GET("", samples.List)
		curation.POST("/:id/verify", samples.Verify)

		if d.Push != nil {
			api.POST("/devices", controllers.NewDeviceController(d.Push).Register)
		}
		if d.Hub != nil {
			api.GET("/ws/food-logs", controllers.NewRealtimeController(d.Hub).FoodLogsWS)
		}
	}

	return r
}

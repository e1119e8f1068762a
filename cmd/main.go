package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"diettracker/config"
	"diettracker/controllers"
	"diettracker/routes"
	"diettracker/services"
	"diettracker/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	ctx := context.Background()

	var estimator services.NutritionEstimator
	switch cfg.EstimatorProvider {
	case config.ProviderGemini:
		estimator = services.NewGeminiEstimator(cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		estimator = services.NewOpenAIEstimator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}

	var classifier services.FoodClassifier
	if cfg.UseCustomModel {
		switch cfg.ClassifierBackend {
		case config.BackendRekognition:
			rek, err := utils.NewRekognitionClient(ctx, cfg.AWSRegion)
			if err != nil {
				log.Fatalf("rekognition: %v", err)
			}
			classifier = services.NewRekognitionClassifier(rek, cfg.RekognitionMinConfidence)
		default:
			local := services.NewLocalClassifier(cfg.CustomModelPath)
			// loads lazily; checked here only to warn early
			if !local.Available() {
				log.Printf("custom model not available at %s; hybrid falls back to %s only", cfg.CustomModelPath, estimator.Name())
			}
			classifier = local
		}
	}

	var images services.ImageStore = services.NoopImageStore{}
	if cfg.StorageEnabled() {
		client, err := utils.NewS3Client(ctx, cfg.S3Region)
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		images = services.NewS3ImageStore(client, cfg.S3Bucket, cfg.S3Region, cfg.CloudFrontURL)
	} else {
		log.Printf("S3_BUCKET not set; image storage and dataset feedback disabled")
	}

	usda := services.NewUSDAService(cfg.USDAAPIKey, cfg.USDABaseURL)
	recognizer := services.NewHybridRecognizer(estimator, classifier, usda, services.HybridConfig{
		UseLocal:           cfg.UseCustomModel,
		Threshold:          cfg.CustomModelThreshold,
		LocalOnlyThreshold: cfg.LocalOnlyThreshold,
		LocalTimeout:       cfg.LocalStageTimeout,
	})
	hub := services.NewRealtimeHub()
	notifiers := services.Notifiers{hub}
	var push *services.PushService
	if cfg.PushEnabled() {
		sns, err := utils.NewSNSClient(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("sns: %v", err)
		}
		push = services.NewPushService(db, sns, cfg.SNSFCMArn, cfg.SNSAPNSArn)
		notifiers = append(notifiers, push)
	}
	samples := services.NewTrainingSampleStore(db)

	r := routes.SetupRouter(routes.Deps{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Info: controllers.ServiceInfo{
			Name:               "diettracker",
			Version:            "1.0.0",
			Estimator:          estimator.Name(),
			CustomModelEnabled: recognizer.LocalEnabled(),
			StorageEnabled:     images.Enabled(),
		},
		Recognizer: recognizer,
		Logs:       services.NewFoodLogService(db, notifiers),
		Samples:    samples,
		Feedback:   services.NewDatasetFeedbackRecorder(samples, cfg.DatasetMinConfidence),
		Images:     images,
		Nutrition:  usda,
		Hub:        hub,
		Push:       push,
	})
	log.Printf("listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

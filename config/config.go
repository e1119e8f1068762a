package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"diettracker/models"
)

// Estimator providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Local-stage classifier backends.
const (
	BackendLocal       = "local"
	BackendRekognition = "rekognition"
)

type Config struct {
	Port  string
	Debug bool

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string
	DBSSLMode   string

	JWTSecret   string
	CORSOrigins []string

	EstimatorProvider string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	GeminiAPIKey      string
	GeminiModel       string

	S3Bucket      string
	S3Region      string
	CloudFrontURL string

	UseCustomModel           bool
	ClassifierBackend        string
	CustomModelPath          string
	CustomModelThreshold     float64
	LocalOnlyThreshold       float64
	LocalStageTimeout        time.Duration
	DatasetMinConfidence     float64
	RekognitionMinConfidence float64

	USDAAPIKey  string
	USDABaseURL string

	AWSRegion  string
	SNSFCMArn  string
	SNSAPNSArn string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}

	awsRegion := getEnv("AWS_REGION", "ap-south-1")
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Debug:       getBool("DEBUG", false),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnv("DB_NAME", "diettracker"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8081")),

		EstimatorProvider: strings.ToLower(getEnv("ESTIMATOR_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3Region:      getEnv("S3_REGION", awsRegion),
		CloudFrontURL: os.Getenv("CLOUDFRONT_URL"),

		UseCustomModel:    getBool("USE_CUSTOM_MODEL", false),
		ClassifierBackend: strings.ToLower(getEnv("CLASSIFIER_BACKEND", BackendLocal)),
		CustomModelPath:   getEnv("CUSTOM_MODEL_PATH", "models/food_classifier.ckpt"),

		USDAAPIKey:  os.Getenv("USDA_API_KEY"),
		USDABaseURL: getEnv("USDA_BASE_URL", "https://api.nal.usda.gov/fdc/v1"),

		AWSRegion:  awsRegion,
		SNSFCMArn:  os.Getenv("SNS_FCM_ARN"),
		SNSAPNSArn: os.Getenv("SNS_APNS_ARN"),
	}

	var err error
	if cfg.CustomModelThreshold, err = getFloat("CUSTOM_MODEL_CONFIDENCE_THRESHOLD", 0.75); err != nil {
		return nil, err
	}
	if cfg.LocalOnlyThreshold, err = getFloat("LOCAL_ONLY_CONFIDENCE_THRESHOLD", 0); err != nil {
		return nil, err
	}
	if cfg.LocalStageTimeout, err = getDuration("LOCAL_STAGE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DatasetMinConfidence, err = getFloat("DATASET_MIN_CONFIDENCE", 80); err != nil {
		return nil, err
	}
	if cfg.RekognitionMinConfidence, err = getFloat("REKOGNITION_MIN_CONFIDENCE", 50); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.EstimatorProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai estimator")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini estimator")
		}
	default:
		return fmt.Errorf("unknown ESTIMATOR_PROVIDER %q", c.EstimatorProvider)
	}
	switch c.ClassifierBackend {
	case BackendLocal, BackendRekognition:
	default:
		return fmt.Errorf("unknown CLASSIFIER_BACKEND %q", c.ClassifierBackend)
	}
	if c.CustomModelThreshold < 0 || c.CustomModelThreshold > 1 {
		return fmt.Errorf("CUSTOM_MODEL_CONFIDENCE_THRESHOLD must be in [0,1], got %g", c.CustomModelThreshold)
	}
	if c.LocalOnlyThreshold < 0 || c.LocalOnlyThreshold > 1 {
		return fmt.Errorf("LOCAL_ONLY_CONFIDENCE_THRESHOLD must be in [0,1], got %g", c.LocalOnlyThreshold)
	}
	if c.DatasetMinConfidence < 0 || c.DatasetMinConfidence > 100 {
		return fmt.Errorf("DATASET_MIN_CONFIDENCE must be in [0,100], got %g", c.DatasetMinConfidence)
	}
	return nil
}

// StorageEnabled reports whether uploaded images are persisted.
func (c *Config) StorageEnabled() bool { return c.S3Bucket != "" }

// PushEnabled reports whether SNS mobile push is configured.
func (c *Config) PushEnabled() bool { return c.SNSFCMArn != "" || c.SNSAPNSArn != "" }

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// OpenDB connects to Postgres and migrates the schema.
func OpenDB(c *Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{}
	if !c.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Warn)
	}
	db, err := gorm.Open(postgres.Open(c.DSN()), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.FoodLog{},
		&models.FoodLogItem{},
		&models.TrainingSample{},
		&models.UserDevice{},
	); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: %s=%q is not a boolean, using %v", key, v, def)
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CUSTOM_MODEL_CONFIDENCE_THRESHOLD", "")
	t.Setenv("DATASET_MIN_CONFIDENCE", "")
	t.Setenv("ESTIMATOR_PROVIDER", "")
	t.Setenv("USE_CUSTOM_MODEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CustomModelThreshold != 0.75 || cfg.DatasetMinConfidence != 80 || cfg.LocalOnlyThreshold != 0 {
		t.Fatalf("thresholds = %v %v %v", cfg.CustomModelThreshold, cfg.DatasetMinConfidence, cfg.LocalOnlyThreshold)
	}
	if cfg.EstimatorProvider != ProviderOpenAI || cfg.UseCustomModel {
		t.Fatalf("provider %q custom %v", cfg.EstimatorProvider, cfg.UseCustomModel)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadRejectsBadNumber(t *testing.T) {
	t.Setenv("CUSTOM_MODEL_CONFIDENCE_THRESHOLD", "high")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLocalStageTimeout(t *testing.T) {
	t.Setenv("LOCAL_STAGE_TIMEOUT", "")
	cfg, err := Load()
	if err != nil || cfg.LocalStageTimeout != 5*time.Second {
		t.Fatalf("default = %v, %v", cfg, err)
	}
	t.Setenv("LOCAL_STAGE_TIMEOUT", "750ms")
	if cfg, err = Load(); err != nil || cfg.LocalStageTimeout != 750*time.Millisecond {
		t.Fatalf("750ms = %v, %v", cfg, err)
	}
	for _, bad := range []string{"soon", "0s", "-1s"} {
		t.Setenv("LOCAL_STAGE_TIMEOUT", bad)
		if _, err := Load(); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		JWTSecret:            "x",
		EstimatorProvider:    ProviderGemini,
		GeminiAPIKey:         "g",
		ClassifierBackend:    BackendLocal,
		CustomModelThreshold: 0.75,
		DatasetMinConfidence: 80,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	cases := map[string]func(c *Config){
		"missing secret":    func(c *Config) { c.JWTSecret = "" },
		"missing key":       func(c *Config) { c.GeminiAPIKey = "" },
		"unknown provider":  func(c *Config) { c.EstimatorProvider = "llama" },
		"unknown backend":   func(c *Config) { c.ClassifierBackend = "tpu" },
		"threshold too big": func(c *Config) { c.CustomModelThreshold = 75 },
		"bar too big":       func(c *Config) { c.DatasetMinConfidence = 800 },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDSN(t *testing.T) {
	c := Config{DatabaseURL: "postgres://u@h/db"}
	if c.DSN() != "postgres://u@h/db" {
		t.Fatalf("DSN = %q", c.DSN())
	}
	c = Config{DBHost: "h", DBUser: "u", DBPassword: "p", DBName: "d", DBPort: "5432", DBSSLMode: "disable"}
	want := "host=h user=u password=p dbname=d port=5432 sslmode=disable"
	if c.DSN() != want {
		t.Fatalf("DSN = %q", c.DSN())
	}
}

func TestRegionsAndPush(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("S3_REGION", "")
	t.Setenv("SNS_FCM_ARN", "")
	t.Setenv("SNS_APNS_ARN", "arn:aws:sns:eu-west-1:1:app/APNS/diet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.S3Region != "eu-west-1" || cfg.AWSRegion != "eu-west-1" {
		t.Fatalf("regions = %q %q", cfg.S3Region, cfg.AWSRegion)
	}
	if !cfg.PushEnabled() {
		t.Fatal("push should be enabled by an APNS arn")
	}
}

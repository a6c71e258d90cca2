package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/appendiscan/backend/internal/chat"
	"github.com/appendiscan/backend/internal/store"
)

const (
	storeFirestore = "firestore"
	storePostgres  = "postgres"
	storeMemory    = "memory"
)

type Config struct {
	Port         string
	GinMode      string
	LogLevel     string
	LogFormat    string
	MaxBodyBytes int64

	StoreDriver         string
	FirebaseCredentials string
	FirebaseProjectID   string
	DatabaseURL         string
	Collection          string

	ONNXRuntimeLib   string
	Model1Path       string
	Model1Labels     string
	Model2Path       string
	Model2Labels     string
	DetectConfidence float64
	DetectIoU        float64

	ClassifierPath string
	ColumnsPath    string

	ChatProvider string
	GroqAPIKey   string
	GroqModel    string
	GroqBaseURL  string
	GeminiAPIKey string
	GeminiModel  string

	ChatRateLimit float64
	ChatRateBurst int

	ArchiveEnabled bool
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// loadConfig reads .env, an optional config.toml and the environment, in
// increasing order of precedence.
func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName(getEnv("CONFIG_NAME", "config"))
	v.SetConfigType("toml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("port", "8000")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("max_body_bytes", 20<<20)
	v.SetDefault("store_driver", storeFirestore)
	v.SetDefault("firebase_credentials", "key.json")
	v.SetDefault("quicktest_collection", store.DefaultCollection)
	v.SetDefault("model1_path", "models/model1.onnx")
	v.SetDefault("model1_labels", "models/model1.yaml")
	v.SetDefault("model2_path", "models/model2.onnx")
	v.SetDefault("model2_labels", "models/model2.yaml")
	v.SetDefault("detect_confidence", 0.25)
	v.SetDefault("detect_iou", 0.7)
	v.SetDefault("classifier_path", "models/decision_tree.json")
	v.SetDefault("columns_path", "models/final_columns.json")
	v.SetDefault("chat_provider", chat.ProviderGroq)
	v.SetDefault("chat_rate_limit", 0)
	v.SetDefault("chat_rate_burst", 5)
	v.SetDefault("minio_bucket", "ultrasound")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:         v.GetString("port"),
		GinMode:      v.GetString("gin_mode"),
		LogLevel:     v.GetString("log_level"),
		LogFormat:    strings.ToLower(v.GetString("log_format")),
		MaxBodyBytes: v.GetInt64("max_body_bytes"),

		StoreDriver:         strings.ToLower(v.GetString("store_driver")),
		FirebaseCredentials: v.GetString("firebase_credentials"),
		FirebaseProjectID:   v.GetString("firebase_project_id"),
		DatabaseURL:         v.GetString("database_url"),
		Collection:          v.GetString("quicktest_collection"),

		ONNXRuntimeLib:   v.GetString("onnxruntime_lib"),
		Model1Path:       v.GetString("model1_path"),
		Model1Labels:     v.GetString("model1_labels"),
		Model2Path:       v.GetString("model2_path"),
		Model2Labels:     v.GetString("model2_labels"),
		DetectConfidence: v.GetFloat64("detect_confidence"),
		DetectIoU:        v.GetFloat64("detect_iou"),

		ClassifierPath: v.GetString("classifier_path"),
		ColumnsPath:    v.GetString("columns_path"),

		ChatProvider: strings.ToLower(v.GetString("chat_provider")),
		GroqAPIKey:   v.GetString("groq_api_key"),
		GroqModel:    v.GetString("groq_model"),
		GroqBaseURL:  v.GetString("groq_base_url"),
		GeminiAPIKey: v.GetString("gemini_api_key"),
		GeminiModel:  v.GetString("gemini_model"),

		ChatRateLimit: v.GetFloat64("chat_rate_limit"),
		ChatRateBurst: v.GetInt("chat_rate_burst"),

		ArchiveEnabled: v.GetBool("archive_enabled"),
		MinIOEndpoint:  v.GetString("minio_endpoint"),
		MinIOAccessKey: v.GetString("minio_access_key"),
		MinIOSecretKey: v.GetString("minio_secret_key"),
		MinIOBucket:    v.GetString("minio_bucket"),
		MinIOUseSSL:    v.GetBool("minio_use_ssl"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	switch c.StoreDriver {
	case storeFirestore, storeMemory:
	case storePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", storePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.ChatProvider {
	case chat.ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required when CHAT_PROVIDER=%s", chat.ProviderGroq)
		}
	case chat.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when CHAT_PROVIDER=%s", chat.ProviderGemini)
		}
	default:
		return fmt.Errorf("unknown CHAT_PROVIDER %q", c.ChatProvider)
	}

	if c.DetectConfidence <= 0 || c.DetectConfidence >= 1 {
		return fmt.Errorf("DETECT_CONFIDENCE must be in (0,1), got %v", c.DetectConfidence)
	}
	if c.DetectIoU <= 0 || c.DetectIoU > 1 {
		return fmt.Errorf("DETECT_IOU must be in (0,1], got %v", c.DetectIoU)
	}

	if c.ChatRateLimit < 0 || (c.ChatRateLimit > 0 && c.ChatRateBurst < 1) {
		return fmt.Errorf("CHAT_RATE_LIMIT must be >= 0 with CHAT_RATE_BURST >= 1, got %v/%d", c.ChatRateLimit, c.ChatRateBurst)
	}

	if c.ArchiveEnabled && (c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "") {
		return errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when ARCHIVE_ENABLED=true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

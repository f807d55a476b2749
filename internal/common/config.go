package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
	Workers    WorkerConfig     `yaml:"workers"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// LLMConfig holds the external model client configuration
type LLMConfig struct {
	Provider              string  `yaml:"provider"` // openai | gemini
	APIKey                string  `yaml:"api_key"`
	BaseURL               string  `yaml:"base_url"`
	ModelName             string  `yaml:"model_name"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	MaxTokens             int     `yaml:"max_tokens"`
	Temperature           float32 `yaml:"temperature"`
}

// RequestTimeout is the bound applied to a single model call.
func (c LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ExtractionConfig holds normalization policy
type ExtractionConfig struct {
	ConfidenceFlagThreshold int     `yaml:"confidence_flag_threshold"`
	TotalTolerance          float64 `yaml:"total_tolerance"`
	PDFRenderer             string  `yaml:"pdf_renderer"` // e.g. "pdftoppm"; empty disables rendering
	MaxUploadMB             int     `yaml:"max_upload_mb"`
}

type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

type WorkerConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"
	DefaultModel   = "meta/llama-3.2-11b-vision-instruct"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "file:receipts.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		LLM: LLMConfig{
			Provider:              ProviderOpenAI,
			BaseURL:               DefaultBaseURL,
			ModelName:             DefaultModel,
			RequestTimeoutSeconds: 30,
			MaxTokens:             1000,
			Temperature:           0.1,
		},
		Extraction: ExtractionConfig{
			ConfidenceFlagThreshold: 50,
			TotalTolerance:          0.01,
			MaxUploadMB:             16,
		},
		Storage: StorageConfig{UploadDir: "./uploads"},
		Workers: WorkerConfig{Count: 4, QueueSize: 64},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig loads defaults, then the YAML file named by RECEIPTS_CONFIG (if any),
// then environment overrides.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("RECEIPTS_CONFIG"))
}

// Load is LoadConfig with an explicit YAML path; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("NVIDIA_API_KEY", c.LLM.APIKey))
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.ModelName = getEnv("LLM_MODEL", c.LLM.ModelName)
	c.LLM.RequestTimeoutSeconds = getEnvAsInt("LLM_REQUEST_TIMEOUT_SECONDS", c.LLM.RequestTimeoutSeconds)
	c.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)

	c.Extraction.ConfidenceFlagThreshold = getEnvAsInt("CONFIDENCE_FLAG_THRESHOLD", c.Extraction.ConfidenceFlagThreshold)
	c.Extraction.TotalTolerance = getEnvAsFloat64("TOTAL_TOLERANCE", c.Extraction.TotalTolerance)
	c.Extraction.PDFRenderer = getEnv("PDF_RENDERER", c.Extraction.PDFRenderer)
	c.Extraction.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", c.Extraction.MaxUploadMB)

	c.Storage.UploadDir = getEnv("UPLOAD_DIR", c.Storage.UploadDir)
	c.Workers.Count = getEnvAsInt("WORKERS", c.Workers.Count)
	c.Workers.QueueSize = getEnvAsInt("QUEUE_SIZE", c.Workers.QueueSize)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks value ranges. It does not require an API key; see RequireLLM.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("database.dsn", c.Database.DSN, Required).
		Field("llm.provider", c.LLM.Provider, OneOf(ProviderOpenAI, ProviderGemini)).
		Field("llm.model_name", c.LLM.ModelName, Required).
		Field("llm.request_timeout_seconds", c.LLM.RequestTimeoutSeconds, IntRange(1, 600)).
		Field("extraction.confidence_flag_threshold", c.Extraction.ConfidenceFlagThreshold, IntRange(0, 100)).
		Field("extraction.total_tolerance", c.Extraction.TotalTolerance, NonNegative).
		Field("extraction.max_upload_mb", c.Extraction.MaxUploadMB, IntRange(1, 1024)).
		Field("storage.upload_dir", c.Storage.UploadDir, Required)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// RequireLLM reports a CONFIG_ERROR when no model credentials are configured.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required", ErrInvalidInput)
	}
	return nil
}

package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lukasedel/docsorter/constants"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	OCR       OCRConfig       `yaml:"ocr"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	LogLevel  string          `yaml:"log_level"`
}

// DatabaseConfig holds document-store configuration.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "pgx" | "sqlite"
	DSN    string `yaml:"dsn"`
}

// ServerConfig holds the metrics endpoint configuration.
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// InferenceConfig holds proxy connection, model selection and retry policy.
type InferenceConfig struct {
	ProxyURL string        `yaml:"proxy_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`

	TriageModel string `yaml:"triage_model"`
	DetailModel string `yaml:"detail_model"`
	OCRModel    string `yaml:"ocr_model"`

	TriageMaxTokens int `yaml:"triage_max_tokens"`
	DetailMaxTokens int `yaml:"detail_max_tokens"`
	OCRMaxTokens    int `yaml:"ocr_max_tokens"`

	// Empty prompts fall back to the built-in defaults.
	TriageSystemPrompt string `yaml:"triage_system_prompt"`
	DetailSystemPrompt string `yaml:"detail_system_prompt"`

	Concurrency   int     `yaml:"concurrency"`
	MaxRetries    int     `yaml:"max_retries"`
	BackoffFactor float64 `yaml:"backoff_factor"`

	BreakerEnabled bool `yaml:"breaker_enabled"`
}

// OCRConfig holds rasterization and local-recognition configuration.
type OCRConfig struct {
	Pdftoppm  string `yaml:"pdftoppm"`  // binary name or absolute path
	Tesseract string `yaml:"tesseract"` // binary name or absolute path

	TesseractLang  string `yaml:"tesseract_lang"`
	DPI            int    `yaml:"dpi"`
	LocalPageLimit int    `yaml:"local_page_limit"`
	CloudPageLimit int    `yaml:"cloud_page_limit"`

	// NativeTextThreshold is the minimum number of native-layer characters
	// (across the first NativeCheckPages pages) that lets a document skip OCR.
	NativeTextThreshold int `yaml:"native_text_threshold"`
	NativeCheckPages    int `yaml:"native_check_pages"`
}

// PipelineConfig holds batch-loop behavior.
type PipelineConfig struct {
	Workers           int                         `yaml:"workers"`
	BatchLimit        int                         `yaml:"batch_limit"`
	EscalationTrigger constants.EscalationTrigger `yaml:"escalation_trigger"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "pgx"),
			DSN:    getEnv("DB_URL", ""),
		},
		Server: ServerConfig{
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		Inference: InferenceConfig{
			ProxyURL: getEnv("INFERENCE_PROXY_URL", ""),
			APIKey:   getEnv("INFERENCE_API_KEY", ""),
			Timeout:  getEnvAsDuration("INFERENCE_TIMEOUT", 120*time.Second),

			TriageModel: getEnv("TRIAGE_MODEL", "gpt-4o-mini"),
			DetailModel: getEnv("DETAIL_MODEL", "gpt-4o"),
			OCRModel:    getEnv("OCR_MODEL", "gpt-4o"),

			TriageMaxTokens: getEnvAsInt("TRIAGE_MAX_TOKENS", 500),
			DetailMaxTokens: getEnvAsInt("DETAIL_MAX_TOKENS", 1500),
			OCRMaxTokens:    getEnvAsInt("OCR_MAX_TOKENS", 4000),

			TriageSystemPrompt: getEnv("TRIAGE_SYSTEM_PROMPT", ""),
			DetailSystemPrompt: getEnv("DETAIL_SYSTEM_PROMPT", ""),

			Concurrency:   getEnvAsInt("INFERENCE_CONCURRENCY", 5),
			MaxRetries:    getEnvAsInt("INFERENCE_MAX_RETRIES", 4),
			BackoffFactor: getEnvAsFloat64("INFERENCE_BACKOFF_FACTOR", 1.5),

			BreakerEnabled: getEnvAsBool("INFERENCE_BREAKER_ENABLED", false),
		},
		OCR: OCRConfig{
			Pdftoppm:  getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract: getEnv("TESSERACT_BIN", "tesseract"),

			TesseractLang:  getEnv("TESSERACT_LANG", "deu+eng"),
			DPI:            getEnvAsInt("OCR_DPI", 150),
			LocalPageLimit: getEnvAsInt("OCR_LOCAL_PAGE_LIMIT", 2),
			CloudPageLimit: getEnvAsInt("OCR_CLOUD_PAGE_LIMIT", 5),

			NativeTextThreshold: getEnvAsInt("NATIVE_TEXT_THRESHOLD", 50),
			NativeCheckPages:    getEnvAsInt("NATIVE_CHECK_PAGES", 3),
		},
		Pipeline: PipelineConfig{
			Workers:           getEnvAsInt("PIPELINE_WORKERS", 1),
			BatchLimit:        getEnvAsInt("PIPELINE_BATCH_LIMIT", 0),
			EscalationTrigger: constants.EscalationTrigger(getEnv("ESCALATION_TRIGGER", string(constants.EscalateOnLow))),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ApplyFile overlays values from a YAML config file onto c.
// Fields absent from the file keep their current (env or default) values.
func (c *Config) ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.Inference.ProxyURL == "" {
		return NewAppError("CONFIG_ERROR", "INFERENCE_PROXY_URL is required", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.Pipeline.EscalationTrigger {
	case constants.EscalateOnLow, constants.EscalateOnLowOrMedium:
	default:
		return NewAppError("CONFIG_ERROR", "ESCALATION_TRIGGER must be 'low' or 'low_or_medium'", ErrInvalidInput)
	}
	return nil
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

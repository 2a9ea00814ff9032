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
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Queue      QueueConfig      `yaml:"queue"`
	OCR        OCRConfig        `yaml:"ocr"`
	LLM        LLMConfig        `yaml:"llm"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds the upload and archive directories.
type StorageConfig struct {
	UploadDir  string `yaml:"upload_dir"`
	ArchiveDir string `yaml:"archive_dir"`
}

// ExtractionConfig holds the task guards.
type ExtractionConfig struct {
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	TaskTimeout    time.Duration `yaml:"task_timeout"`
	TaskTTL        time.Duration `yaml:"task_ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

// QueueConfig holds worker pool configuration
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	Size           int           `yaml:"size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine      string `yaml:"engine"` // tesseract | gosseract
	Mode        string `yaml:"mode"`   // fast | full
	Lang        string `yaml:"lang"`
	BlockSize   int    `yaml:"block_size"`
	Tesseract   string `yaml:"tesseract"`
	Pdftoppm    string `yaml:"pdftoppm"`
	TessdataDir string `yaml:"tessdata_dir"`
	DPI         int    `yaml:"dpi"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"-"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":5000",
			GRPCAddr:        ":5001",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir:  "uploads",
			ArchiveDir: "archive",
		},
		Extraction: ExtractionConfig{
			MaxUploadBytes: 10 << 20,
			TaskTimeout:    25 * time.Second,
			TaskTTL:        time.Hour,
			SweepInterval:  time.Minute,
		},
		Queue: QueueConfig{
			Workers:        4,
			Size:           256,
			ProcessTimeout: 2 * time.Minute,
		},
		OCR: OCRConfig{
			Engine:    "tesseract",
			Mode:      "fast",
			Lang:      "ita+eng",
			BlockSize: 31,
			Tesseract: "tesseract",
			Pdftoppm:  "pdftoppm",
			DPI:       300,
		},
		LLM: LLMConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:       "gemini-1.5-flash",
			Temperature: 0.2,
			Timeout:     45 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by DOCEXTRACT_CONFIG, and environment variables (highest precedence).
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("DOCEXTRACT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Storage.UploadDir = getEnv("UPLOAD_DIR", c.Storage.UploadDir)
	c.Storage.ArchiveDir = getEnv("ARCHIVE_DIR", c.Storage.ArchiveDir)

	c.Extraction.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Extraction.MaxUploadBytes)
	c.Extraction.TaskTimeout = getEnvAsDuration("TASK_TIMEOUT", c.Extraction.TaskTimeout)
	c.Extraction.TaskTTL = getEnvAsDuration("TASK_TTL", c.Extraction.TaskTTL)
	c.Extraction.SweepInterval = getEnvAsDuration("TASK_SWEEP_INTERVAL", c.Extraction.SweepInterval)

	c.Queue.Workers = getEnvAsInt("WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)
	c.Queue.ProcessTimeout = getEnvAsDuration("PROCESS_TIMEOUT", c.Queue.ProcessTimeout)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Mode = getEnv("OCR_MODE", c.OCR.Mode)
	c.OCR.Lang = getEnv("OCR_LANG", c.OCR.Lang)
	c.OCR.BlockSize = getEnvAsInt("OCR_BLOCK_SIZE", c.OCR.BlockSize)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM_BIN", c.OCR.Pdftoppm)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.DPI = getEnvAsInt("PDF_DPI", c.OCR.DPI)

	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("GOOGLE_API_KEY", c.LLM.APIKey))
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)

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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.UploadDir == "" || c.Storage.ArchiveDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR and ARCHIVE_DIR are required", ErrInvalidInput)
	}
	if c.Extraction.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.Extraction.TaskTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "TASK_TIMEOUT must be positive", ErrInvalidInput)
	}
	switch c.OCR.Mode {
	case "fast", "full":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OCR_MODE must be fast or full, got %q", c.OCR.Mode), ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "tesseract", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OCR_ENGINE must be tesseract or gosseract, got %q", c.OCR.Engine), ErrInvalidInput)
	}
	if c.OCR.BlockSize < 3 || c.OCR.BlockSize%2 == 0 {
		return NewAppError("CONFIG_ERROR", "OCR_BLOCK_SIZE must be an odd number >= 3", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "PDF_DPI must be positive", ErrInvalidInput)
	}
	return nil
}

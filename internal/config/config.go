package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env           string        `yaml:"env"`
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	Workers       int           `yaml:"workers"`

	MigrateOnStart bool `yaml:"migrate_on_start"`

	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	CV         CVConfig         `yaml:"cv"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Admin      AdminConfig      `yaml:"admin"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig selects the blob backend. Provider is "azure" or "local".
type StorageConfig struct {
	Provider           string `yaml:"provider"`
	AzureConnection    string `yaml:"azure_connection_string"`
	CVContainer        string `yaml:"cv_container"`
	InterviewContainer string `yaml:"interview_container"`
	LocalRoot          string `yaml:"local_root"`
	LocalPublicURL     string `yaml:"local_public_url"`
	LocalSigningKey    string `yaml:"local_signing_key"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
}

type ElevenLabsConfig struct {
	APIKey               string        `yaml:"api_key"`
	BaseURL              string        `yaml:"base_url"`
	TokenEndpoint        string        `yaml:"token_endpoint"`
	AgentID              string        `yaml:"agent_id"`
	WebhookSecret        string        `yaml:"webhook_secret"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	Timeout              time.Duration `yaml:"timeout"`
}

type RabbitMQConfig struct {
	URL          string `yaml:"url"`
	Queue        string `yaml:"queue"`
	SourceRegion string `yaml:"source_region"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

// CVConfig controls LLM based CV structuring.
type CVConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Model         string        `yaml:"model"`
	PromptName    string        `yaml:"prompt_name"`
	SchemaVersion string        `yaml:"schema_version"`
	Timeout       time.Duration `yaml:"timeout"`
}

type ScoringConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AdminConfig seeds the first admin account on startup when both fields are set.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

const insecureJWTSecret = "supersecretkey"

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Env:           getEnv("RECRUITER_ENV", "development"),
		Addr:          getEnv("RECRUITER_ADDR", ":8080"),
		JWTSecret:     getEnv("RECRUITER_JWT_SECRET", insecureJWTSecret),
		APITimeout:    getEnvDuration("RECRUITER_TIMEOUT", 15*time.Second),
		DatabasePath:  getEnv("RECRUITER_DATABASE_PATH", "recruiter.db"),
		TokenDuration: getEnvDuration("RECRUITER_TOKEN_DURATION", 1*time.Hour),
		Workers:       getEnvInt("RECRUITER_WORKERS", 2),

		MigrateOnStart: getEnv("RECRUITER_MIGRATE_ON_START", "true") == "true",
		Log:            LogConfig{Level: getEnv("RECRUITER_LOG_LEVEL", "info")},
		Storage: StorageConfig{
			Provider:           getEnv("RECRUITER_STORAGE_PROVIDER", "local"),
			AzureConnection:    getEnv("RECRUITER_AZURE_STORAGE_CONNECTION_STRING", ""),
			CVContainer:        getEnv("RECRUITER_CV_CONTAINER", "candidate-files"),
			InterviewContainer: getEnv("RECRUITER_INTERVIEW_CONTAINER", "interviews"),
			LocalRoot:          getEnv("RECRUITER_STORAGE_ROOT", "data/blobs"),
			LocalPublicURL:     getEnv("RECRUITER_STORAGE_PUBLIC_URL", "http://localhost:8080"),
			LocalSigningKey:    getEnv("RECRUITER_STORAGE_SIGNING_KEY", ""),
			MaxUploadBytes:     10 << 20,
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:               getEnv("RECRUITER_ELEVENLABS_API_KEY", ""),
			BaseURL:              getEnv("RECRUITER_ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
			TokenEndpoint:        getEnv("RECRUITER_ELEVENLABS_TOKEN_ENDPOINT", "/v1/convai/conversation/token"),
			AgentID:              getEnv("RECRUITER_ELEVENLABS_AGENT_ID", ""),
			WebhookSecret:        getEnv("RECRUITER_ELEVENLABS_WEBHOOK_SECRET", ""),
			MaxRequestsPerMinute: getEnvInt("RECRUITER_ELEVENLABS_MAX_RPM", 30),
			Timeout:              30 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			URL:          getEnv("RECRUITER_RABBITMQ_URL", ""),
			Queue:        getEnv("RECRUITER_RABBITMQ_QUEUE", "syncing-queue"),
			SourceRegion: getEnv("RECRUITER_SOURCE_REGION", "local"),
		},
		Ollama: OllamaConfig{
			BaseURL:                 getEnv("RECRUITER_OLLAMA_URL", "http://localhost:11434"),
			Timeout:                 60 * time.Second,
			Retries:                 2,
			Backoff:                 500 * time.Millisecond,
			CircuitFailureThreshold: 5,
			CircuitReset:            30 * time.Second,
		},
		CV: CVConfig{
			Enabled:       getEnv("RECRUITER_CV_ENABLED", "true") == "true",
			Model:         getEnv("RECRUITER_CV_MODEL", "llama3"),
			PromptName:    "cv-extraction",
			SchemaVersion: "cv_extraction_v1",
			Timeout:       90 * time.Second,
		},
		Scoring: ScoringConfig{
			URL:     getEnv("RECRUITER_SCORING_URL", ""),
			Timeout: 15 * time.Second,
		},
		Admin: AdminConfig{
			Email:    getEnv("RECRUITER_ADMIN_EMAIL", ""),
			Password: getEnv("RECRUITER_ADMIN_PASSWORD", ""),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required settings and fills defaults that YAML may have zeroed.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.JWTSecret == insecureJWTSecret && !c.IsDevelopment() {
		errs = append(errs, errors.New("jwt_secret uses the insecure default outside development"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token_duration must be positive"))
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}

	switch c.Storage.Provider {
	case "azure":
		if c.Storage.AzureConnection == "" {
			errs = append(errs, errors.New("storage.azure_connection_string is required for the azure provider"))
		}
	case "local":
		if c.Storage.LocalRoot == "" {
			errs = append(errs, errors.New("storage.local_root is required for the local provider"))
		}
		if c.Storage.LocalSigningKey == "" {
			c.Storage.LocalSigningKey = c.JWTSecret
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage provider %q", c.Storage.Provider))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		c.Storage.MaxUploadBytes = 10 << 20
	}

	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "syncing-queue"
	}

	if c.CV.Enabled && c.CV.Model == "" {
		errs = append(errs, errors.New("cv.model is required when cv.enabled is set"))
	}

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = 60 * time.Second
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = 5
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = 30 * time.Second
	}
	if c.ElevenLabs.Timeout <= 0 {
		c.ElevenLabs.Timeout = 30 * time.Second
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in development mode.
// RECRUITER_ENV takes precedence over the configured env.
func (c *Config) IsDevelopment() bool {
	env := os.Getenv("RECRUITER_ENV")
	if env == "" {
		env = c.Env
	}
	return strings.EqualFold(env, "development") || strings.EqualFold(env, "dev")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}

	return def
}

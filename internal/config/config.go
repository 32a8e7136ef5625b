package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Sampling SamplingConfig `yaml:"sampling"`
	Matching MatchingConfig `yaml:"matching"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// PipelineConfig tunes the event processor core.
type PipelineConfig struct {
	QueueCapacity   int           `yaml:"queue_capacity"`
	WorkerCount     int           `yaml:"worker_count"`
	Cooldown        time.Duration `yaml:"cooldown"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	PersistRetries  int           `yaml:"persist_retries"`
	PersistBackoff  time.Duration `yaml:"persist_backoff"`
}

// ProviderConfig describes one AI vision provider endpoint.
type ProviderConfig struct {
	Name            string        `yaml:"name"`
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Capabilities    []string      `yaml:"capabilities"` // single_frame, multi_frame, video_native
	MaxImages       int           `yaml:"max_images"`
	MaxClipDuration time.Duration `yaml:"max_clip_duration"`
	TokensPerImage  int           `yaml:"tokens_per_image"`
	InputRatePer1K  float64       `yaml:"input_rate_per_1k"`
	OutputRatePer1K float64       `yaml:"output_rate_per_1k"`
	Timeout         time.Duration `yaml:"timeout"`
}

type AnalysisConfig struct {
	DefaultMode  string           `yaml:"default_mode"`
	VideoTimeout time.Duration    `yaml:"video_timeout"`
	Providers    []ProviderConfig `yaml:"providers"`
}

type SamplingConfig struct {
	Strategy      string  `yaml:"strategy"` // uniform, adaptive, hybrid
	TargetFrames  int     `yaml:"target_frames"`
	BlurThreshold float64 `yaml:"blur_threshold"`
}

type MatchingConfig struct {
	Threshold    float64 `yaml:"threshold"`
	ModelPath    string  `yaml:"model_path"`
	EmbeddingDim int     `yaml:"embedding_dim"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	SetDefaults(cfg)

	return cfg, nil
}

// SetDefaults fills unset fields with working defaults. Exported so tests
// can build a baseline config without a file on disk.
func SetDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Pipeline.QueueCapacity == 0 {
		cfg.Pipeline.QueueCapacity = 50
	}
	if cfg.Pipeline.WorkerCount == 0 {
		cfg.Pipeline.WorkerCount = 2
	}
	if cfg.Pipeline.WorkerCount > 5 {
		cfg.Pipeline.WorkerCount = 5
	}
	if cfg.Pipeline.Cooldown == 0 {
		// Field reports range from 3s to 30s; 30s holds up better against
		// cameras that re-trigger on the same pass.
		cfg.Pipeline.Cooldown = 30 * time.Second
	}
	if cfg.Pipeline.ShutdownTimeout == 0 {
		cfg.Pipeline.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Pipeline.PersistRetries == 0 {
		cfg.Pipeline.PersistRetries = 3
	}
	if cfg.Pipeline.PersistBackoff == 0 {
		cfg.Pipeline.PersistBackoff = 500 * time.Millisecond
	}
	if cfg.Analysis.DefaultMode == "" {
		cfg.Analysis.DefaultMode = "single_frame"
	}
	if cfg.Analysis.VideoTimeout == 0 {
		cfg.Analysis.VideoTimeout = 30 * time.Second
	}
	for i := range cfg.Analysis.Providers {
		p := &cfg.Analysis.Providers[i]
		if p.Timeout == 0 {
			p.Timeout = 30 * time.Second
		}
		if p.MaxImages == 0 {
			p.MaxImages = 10
		}
		if p.TokensPerImage == 0 {
			p.TokensPerImage = 765
		}
	}
	if cfg.Sampling.Strategy == "" {
		cfg.Sampling.Strategy = "uniform"
	}
	if cfg.Sampling.TargetFrames == 0 {
		cfg.Sampling.TargetFrames = 5
	}
	if cfg.Sampling.BlurThreshold == 0 {
		cfg.Sampling.BlurThreshold = 35.0
	}
	if cfg.Matching.Threshold == 0 {
		cfg.Matching.Threshold = 0.75
	}
	if cfg.Matching.EmbeddingDim == 0 {
		cfg.Matching.EmbeddingDim = 512
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HW_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("HW_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HW_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("HW_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("HW_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HW_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("HW_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HW_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("HW_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("HW_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("HW_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("HW_MODEL_PATH"); v != "" {
		cfg.Matching.ModelPath = v
	}
	if v := os.Getenv("HW_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.WorkerCount = n
		}
	}
	if v := os.Getenv("HW_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.Cooldown = d
		}
	}
}

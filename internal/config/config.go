package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// Read and write timeouts default to 0: multi-hundred-megabyte uploads
	// and long-lived streaming responses outlive any fixed limit.
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"0"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// Storage roots for uploaded originals, scratch extracted audio,
	// and finished clips. Resolved to absolute paths at load time.
	UploadDir string `env:"UPLOAD_DIR" envDefault:"./data/uploads"`
	AudioDir  string `env:"AUDIO_DIR" envDefault:"./data/audio"`
	ClipsDir  string `env:"CLIPS_DIR" envDefault:"./data/clips"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"524288000"` // 500 MiB

	WhisperURL     string        `env:"WHISPER_URL,required"`
	WhisperModel   string        `env:"WHISPER_MODEL" envDefault:"whisper-1"`
	WhisperAPIKey  string        `env:"WHISPER_API_KEY"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`

	AssembleTimeout time.Duration `env:"ASSEMBLE_TIMEOUT" envDefault:"15m"`

	PipelineWorkers int `env:"PIPELINE_WORKERS" envDefault:"4"`

	// Scratch janitor: extracted audio older than this is swept.
	// 0 disables the sweep.
	ScratchRetention time.Duration `env:"SCRATCH_RETENTION" envDefault:"6h"`

	S3 S3Config

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config enables optional archival of finished clips to an
// S3-compatible object store. Disabled unless a bucket is set.
type S3Config struct {
	Endpoint      string        `env:"S3_ENDPOINT"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket        string        `env:"S3_BUCKET"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults. Storage roots are resolved to absolute paths.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}

	for _, dir := range []*string{&cfg.UploadDir, &cfg.AudioDir, &cfg.ClipsDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, err
		}
		*dir = abs
	}

	return cfg, nil
}

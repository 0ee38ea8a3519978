package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".planforge/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"planforge/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

// WorkflowEnv tunes the simulated progress band. Each start-work command
// advances progress by a random amount in [MinIncrement, MaxIncrement].
type WorkflowEnv struct {
	MinIncrement int `envconfig:"WORKFLOW_MIN_INCREMENT" default:"10"`
	MaxIncrement int `envconfig:"WORKFLOW_MAX_INCREMENT" default:"29"`
}

type AnalyticsEnv struct {
	CacheTTL time.Duration `envconfig:"ANALYTICS_CACHE_TTL" default:"30s"`
}

type Env struct {
	BaseEnv
	StorageEnv
	WorkflowEnv
	AnalyticsEnv
}

const namespace = "PLANFORGE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.WorkflowEnv.MinIncrement < 1 || env.WorkflowEnv.MaxIncrement < env.WorkflowEnv.MinIncrement {
		return nil, fmt.Errorf("invalid workflow increment band [%d, %d]", env.WorkflowEnv.MinIncrement, env.WorkflowEnv.MaxIncrement)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// All config for the application. Loaded from the environment with the
// FILEAGENT prefix, e.g. FILEAGENT_WATCHER_ROOT.
type Config struct {
	Watcher  WatcherConfig  `envconfig:"WATCHER"`
	Pipeline PipelineConfig `envconfig:"PIPELINE"`
	Decision DecisionConfig `envconfig:"DECISION"`
	OpenAI   OpenAIConfig   `envconfig:"OPENAI"`
	Audit    AuditConfig    `envconfig:"AUDIT"`
	RabbitMQ RabbitMQConfig `envconfig:"RABBITMQ"`
	S3       S3Config       `envconfig:"S3"`
}

// WatcherConfig selects what the event source adapter observes.
type WatcherConfig struct {
	Root       string   `envconfig:"ROOT" default:"."`
	Recursive  bool     `envconfig:"RECURSIVE" default:"true"`
	Extensions []string `envconfig:"EXTENSIONS" default:".txt,.md,.csv,.log,.pdf"`
}

// PipelineConfig tunes debouncing, readiness polling and sampling.
type PipelineConfig struct {
	QuietWindow     time.Duration `envconfig:"QUIET_WINDOW" default:"500ms"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"250ms"`
	ReadyTimeout    time.Duration `envconfig:"READY_TIMEOUT" default:"5s"`
	MaxPreviewBytes int           `envconfig:"MAX_PREVIEW_BYTES" default:"4096"`
	MaxWorkers      int           `envconfig:"MAX_WORKERS" default:"4"`
}

// DecisionConfig drives the classify/summarize policy.
type DecisionConfig struct {
	SummaryMarker string `envconfig:"SUMMARY_MARKER" default:"@sum"`
	// closed category set; labels outside it are classification failures
	Categories []string `envconfig:"CATEGORIES" default:"School,Work,Personal,Finance,Other"`
	// extensions routed by the classifier rather than the static rules
	ClassifyExtensions []string `envconfig:"CLASSIFY_EXTENSIONS" default:".txt"`
	// textual extensions the sampler will read
	SampleExtensions []string `envconfig:"SAMPLE_EXTENSIONS" default:".txt,.md,.csv,.log"`
	// static extension -> folder rules for types not worth a model call
	ExtensionRoutes map[string]string `envconfig:"EXTENSION_ROUTES" default:".pdf:PDFs,.md:Docs,.csv:Data,.log:Logs"`
	MaxAttempts     int               `envconfig:"MAX_ATTEMPTS" default:"3"`
}

// OpenAIConfig configures the external classifier/summarizer.
type OpenAIConfig struct {
	APIKey     string        `envconfig:"API_KEY"`
	Model      string        `envconfig:"MODEL" default:"gpt-4o-mini"`
	BaseURL    string        `envconfig:"BASE_URL"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"30s"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"2s"`
}

// AuditConfig points at the append-only audit targets.
type AuditConfig struct {
	LogFile     string `envconfig:"LOG_FILE" default:"fileagent_audit.jsonl"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
}

// RabbitMQConfig enables publishing of completed actions when URI is set.
type RabbitMQConfig struct {
	URI      string `envconfig:"URI"`
	Exchange string `envconfig:"EXCHANGE" default:"fileagent.action.events"`
}

// S3Config enables archiving of summary sidecars when Bucket is set.
type S3Config struct {
	Bucket    string `envconfig:"BUCKET"`
	Region    string `envconfig:"REGION" default:"us-west-2"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("FILEAGENT", &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Watcher.Root == "" {
		return fmt.Errorf("watcher root is required")
	}
	if c.Pipeline.QuietWindow <= 0 {
		return fmt.Errorf("quiet window must be positive, got %v", c.Pipeline.QuietWindow)
	}
	if c.Pipeline.PollInterval <= 0 || c.Pipeline.ReadyTimeout < c.Pipeline.PollInterval {
		return fmt.Errorf("ready timeout %v must cover at least one poll interval %v",
			c.Pipeline.ReadyTimeout, c.Pipeline.PollInterval)
	}
	if c.Pipeline.MaxPreviewBytes <= 0 {
		return fmt.Errorf("max preview bytes must be positive, got %d", c.Pipeline.MaxPreviewBytes)
	}
	if c.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive, got %d", c.Pipeline.MaxWorkers)
	}
	if len(c.Decision.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	if c.Decision.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.Decision.MaxAttempts)
	}
	if c.OpenAI.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %v", c.OpenAI.RetryDelay)
	}
	return nil
}

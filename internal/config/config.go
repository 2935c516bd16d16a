package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *DatabaseConfig
	Service  *svcConfig
	Storage  *storageConfig
	ODM      *odmConfig
	Webhook  *webhookConfig
	Pipeline *pipelineConfig
}

type DatabaseConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"orthoflow"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	// every running pipeline holds a connection only while it updates its record
	MaxOpenConns int `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns int `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
}

type svcConfig struct {
	Address           string        `envconfig:"ORTHOFLOW_ADDRESS" default:":5000"`
	MetricsAddress    string        `envconfig:"ORTHOFLOW_METRICS_ADDRESS" default:":8080"`
	LogLevel          string        `envconfig:"ORTHOFLOW_LOG_LEVEL" default:"info"`
	LogFormat         string        `envconfig:"ORTHOFLOW_LOG_FORMAT" default:"console"`
	APIKey            string        `envconfig:"ORTHOFLOW_API_KEY" default:""`
	AllowedOrigins    []string      `envconfig:"ORTHOFLOW_ALLOWED_ORIGINS" default:"*"`
	MigrationFolder   string        `envconfig:"ORTHOFLOW_MIGRATIONS_FOLDER" default:""`
	MaxConcurrentRuns int           `envconfig:"ORTHOFLOW_MAX_CONCURRENT_RUNS" default:"0"` // 0 means unbounded
	ShutdownTimeout   time.Duration `envconfig:"ORTHOFLOW_SHUTDOWN_TIMEOUT" default:"30s"`
}

type storageConfig struct {
	Endpoint      string `envconfig:"ORTHOFLOW_S3_ENDPOINT" default:"localhost:9000"`
	AccessKey     string `envconfig:"ORTHOFLOW_S3_ACCESS_KEY" default:""`
	SecretKey     string `envconfig:"ORTHOFLOW_S3_SECRET_KEY" default:""`
	Region        string `envconfig:"ORTHOFLOW_S3_REGION" default:""`
	UseSSL        bool   `envconfig:"ORTHOFLOW_S3_USE_SSL" default:"false"`
	InputBucket   string `envconfig:"ORTHOFLOW_S3_INPUT_BUCKET" default:"uploads"`
	OutputBucket  string `envconfig:"ORTHOFLOW_S3_OUTPUT_BUCKET" default:"orthomosaics"`
	PublicBaseURL string `envconfig:"ORTHOFLOW_S3_PUBLIC_BASE_URL" default:"http://localhost:9000"`
}

type odmConfig struct {
	URL            string        `envconfig:"ORTHOFLOW_ODM_URL" default:"http://localhost:3000"`
	Token          string        `envconfig:"ORTHOFLOW_ODM_TOKEN" default:""`
	RequestTimeout time.Duration `envconfig:"ORTHOFLOW_ODM_REQUEST_TIMEOUT" default:"10m"`
	MaxPollErrors  int           `envconfig:"ORTHOFLOW_ODM_MAX_POLL_ERRORS" default:"10"`
}

type webhookConfig struct {
	URL     string        `envconfig:"ORTHOFLOW_WEBHOOK_URL" default:""`
	Timeout time.Duration `envconfig:"ORTHOFLOW_WEBHOOK_TIMEOUT" default:"30s"`
}

type pipelineConfig struct {
	Preset       string        `envconfig:"ORTHOFLOW_PRESET" default:"default"`
	PresetsFile  string        `envconfig:"ORTHOFLOW_PRESETS_FILE" default:""`
	PollInterval time.Duration `envconfig:"ORTHOFLOW_POLL_INTERVAL" default:"30s"`
	MaxWait      time.Duration `envconfig:"ORTHOFLOW_MAX_WAIT" default:"18h"`
	TempDir      string        `envconfig:"ORTHOFLOW_TEMP_DIR" default:""`
	Timezone     string        `envconfig:"ORTHOFLOW_TIMEZONE" default:"America/Sao_Paulo"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a fresh, uncached configuration. Values that fail to
// parse from the environment are left at their zero value.
func NewDefault() *Config {
	cfg := new(Config)
	_ = envconfig.Process("", cfg)
	return cfg
}

// Validate reports the settings a running service cannot do without. The API
// refuses every request when no key is set, so the key is required as well.
func (c *Config) Validate() error {
	required := []struct{ name, value string }{
		{"ORTHOFLOW_API_KEY", c.Service.APIKey},
		{"ORTHOFLOW_ODM_URL", c.ODM.URL},
		{"ORTHOFLOW_S3_ENDPOINT", c.Storage.Endpoint},
		{"ORTHOFLOW_S3_ACCESS_KEY", c.Storage.AccessKey},
		{"ORTHOFLOW_S3_SECRET_KEY", c.Storage.SecretKey},
	}

	missing := []string{}
	for _, setting := range required {
		if strings.TrimSpace(setting.value) == "" {
			missing = append(missing, setting.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

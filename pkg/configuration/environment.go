package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/statreg/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files found in the working directory. When none of them
// exist there, the nearest parent directory holding a go.mod is tried instead.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := moduleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := wd; ; {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"statreg"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable pool_max_conns=%d",
		d.Host, d.Port, d.User, d.Name, d.Password, d.MaxConns,
	)
}

type RedisOptions struct {
	URL            string        `env:"REDIS_URL" envDefault:""`
	LookupCacheTTL time.Duration `env:"LOOKUP_CACHE_TTL" envDefault:"10m"`
}

type LogOptions struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	Path  string `env:"LOG_PATH" envDefault:"./logs/import.log"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"statreg-import"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
	OpsAddr string `env:"OPS_ADDR" envDefault:":9464"`
}

type AuthzOptions struct {
	ModelPath  string `env:"AUTHZ_MODEL_PATH" envDefault:"config/access/model.conf"`
	PolicyPath string `env:"AUTHZ_POLICY_PATH" envDefault:"config/access/policy.csv"`
	ModeFile   string `env:"AUTHZ_MODE_FILE" envDefault:"config/access/authz_mode.yaml"`
	Mode       string `env:"AUTHZ_MODE" envDefault:"shadow"`
}

type OutboxOptions struct {
	Table                string        `env:"OUTBOX_TABLE" envDefault:"statunit_outbox"`
	RelayEnabled         bool          `env:"OUTBOX_RELAY_ENABLED" envDefault:"true"`
	RelayPollInterval    time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"1s"`
	RelayBatchSize       int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
	RelayLockTTL         time.Duration `env:"OUTBOX_RELAY_LOCK_TTL" envDefault:"60s"`
	RelayMaxAttempts     int           `env:"OUTBOX_RELAY_MAX_ATTEMPTS" envDefault:"25"`
	RelaySingleActive    bool          `env:"OUTBOX_RELAY_SINGLE_ACTIVE" envDefault:"true"`
	RelayDispatchTimeout time.Duration `env:"OUTBOX_RELAY_DISPATCH_TIMEOUT" envDefault:"30s"`
	LastErrorMaxBytes    int           `env:"OUTBOX_LAST_ERROR_MAX_BYTES" envDefault:"2048"`

	CleanerEnabled       bool          `env:"OUTBOX_CLEANER_ENABLED" envDefault:"true"`
	CleanerInterval      time.Duration `env:"OUTBOX_CLEANER_INTERVAL" envDefault:"1m"`
	CleanerRetention     time.Duration `env:"OUTBOX_CLEANER_RETENTION" envDefault:"168h"`
	CleanerDeadRetention time.Duration `env:"OUTBOX_CLEANER_DEAD_RETENTION" envDefault:"0s"`
}

type SearchIndexOptions struct {
	URL      string        `env:"SEARCH_INDEX_URL" envDefault:""`
	Index    string        `env:"SEARCH_INDEX_NAME" envDefault:"statunits"`
	Required bool          `env:"SEARCH_INDEX_REQUIRED" envDefault:"false"`
	Timeout  time.Duration `env:"SEARCH_INDEX_TIMEOUT" envDefault:"5s"`
}

func (s *SearchIndexOptions) Validate() error {
	if s.Required && strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("SEARCH_INDEX_URL is required when SEARCH_INDEX_REQUIRED=true")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("search index timeout must be positive, got %s", s.Timeout)
	}
	return nil
}

type AMQPOptions struct {
	URL   string `env:"AMQP_URL" envDefault:""`
	Queue string `env:"AMQP_QUEUE" envDefault:"statreg.import.jobs"`
}

type ImportOptions struct {
	PollInterval           time.Duration `env:"IMPORT_POLL_INTERVAL" envDefault:"5s"`
	ReclaimInterval        time.Duration `env:"IMPORT_RECLAIM_INTERVAL" envDefault:"1m"`
	DequeueTimeout         time.Duration `env:"IMPORT_DEQUEUE_TIMEOUT" envDefault:"1h"`
	LogBufferMax           int           `env:"IMPORT_LOG_BUFFER_MAX" envDefault:"100"`
	WriteBufferMax         int           `env:"IMPORT_WRITE_BUFFER_MAX" envDefault:"500"`
	PersonsGoodQuality     bool          `env:"IMPORT_PERSONS_GOOD_QUALITY" envDefault:"true"`
	ValidateStatIDChecksum bool          `env:"IMPORT_VALIDATE_STAT_ID_CHECKSUM" envDefault:"false"`
	AnalysisRulesPath      string        `env:"IMPORT_ANALYSIS_RULES_PATH" envDefault:""`
	UploadsRoot            string        `env:"IMPORT_UPLOADS_ROOT" envDefault:"uploads"`
}

// Validate checks the import pipeline configuration for errors
func (o *ImportOptions) Validate() error {
	if o.PollInterval <= 0 {
		return fmt.Errorf("import poll interval must be positive, got %s", o.PollInterval)
	}
	if o.ReclaimInterval <= 0 {
		return fmt.Errorf("import reclaim interval must be positive, got %s", o.ReclaimInterval)
	}
	if o.DequeueTimeout <= 0 {
		return fmt.Errorf("import dequeue timeout must be positive, got %s", o.DequeueTimeout)
	}
	if o.LogBufferMax < 1 {
		return fmt.Errorf("import log buffer max must be at least 1, got %d", o.LogBufferMax)
	}
	if o.WriteBufferMax < 1 {
		return fmt.Errorf("import write buffer max must be at least 1, got %d", o.WriteBufferMax)
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	Redis         RedisOptions
	Log           LogOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	Authz         AuthzOptions
	Outbox        OutboxOptions
	SearchIndex   SearchIndexOptions
	AMQP          AMQPOptions
	Import        ImportOptions

	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`

	logFile io.Closer
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Load builds a Configuration from the given env files without touching the singleton.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if err := c.SearchIndex.Validate(); err != nil {
		return fmt.Errorf("search index configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.Log.Path)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}

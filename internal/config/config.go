// Package config loads pathedit.cfg.json through viper and validates the typed result.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldpath/pathedit/internal/database"
	"github.com/fieldpath/pathedit/internal/interaction"
	"github.com/fieldpath/pathedit/internal/waypoint"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is looked up in the config directory.
const FileName = "pathedit.cfg.json"

// Config is the full typed configuration.
type Config struct {
	LogLevel  string          `mapstructure:"logLevel" validate:"oneof=TRACE DEBUG INFO WARN ERROR trace debug info warn error"`
	LogsDir   string          `mapstructure:"logsDir"`
	Graylog   GraylogConfig   `mapstructure:"graylog"`
	Solver    SolverConfig    `mapstructure:"solver"`
	Editor    EditorConfig    `mapstructure:"editor"`
	Field     FieldConfig     `mapstructure:"field"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Influx    InfluxConfig    `mapstructure:"influx"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Robot     RobotConfig     `mapstructure:"robot"`

	// File is the config file that was read; empty when only defaults apply.
	File string `mapstructure:"-"`
}

// GraylogConfig enables the GELF log sink.
type GraylogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// SolverConfig addresses the trajectory service.
type SolverConfig struct {
	Address        string        `mapstructure:"address" validate:"required,hostname_port"`
	Backoff        time.Duration `mapstructure:"backoff" validate:"gt=0"`
	Attempts       int           `mapstructure:"attempts" validate:"gte=0"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout" validate:"gt=0"`
}

// EditorConfig tunes the editing session.
type EditorConfig struct {
	Mode      string            `mapstructure:"mode" validate:"oneof=sync async"`
	Routines  int               `mapstructure:"routines" validate:"gte=1"`
	QueueSize int               `mapstructure:"queueSize" validate:"gte=1"`
	Radii     interaction.Radii `mapstructure:"radii"`
	Defaults  waypoint.Defaults `mapstructure:"defaults"`
}

// FieldConfig is the physical field and its on-screen frame.
type FieldConfig struct {
	Width      float64 `mapstructure:"width" validate:"gt=0"`
	Height     float64 `mapstructure:"height" validate:"gt=0"`
	Margin     float64 `mapstructure:"margin" validate:"gte=0"`
	BorderSize float64 `mapstructure:"borderSize" validate:"gte=0"`
}

// StorageConfig selects the generation journal backend.
type StorageConfig struct {
	Type      string          `mapstructure:"type" validate:"oneof=none memory sqlite postgres websocket"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// MemoryConfig holds in-memory journal settings
type MemoryConfig struct {
	// Limit caps kept generations per routine; 0 keeps everything.
	Limit int `json:"limit" mapstructure:"limit" validate:"gte=0"`
}

// SQLiteConfig holds SQLite journal settings.
type SQLiteConfig struct {
	Path          string        `mapstructure:"path"`
	DumpPath      string        `mapstructure:"dumpPath"`
	DumpInterval  time.Duration `mapstructure:"dumpInterval" validate:"gte=0"`
	FlushInterval time.Duration `mapstructure:"flushInterval" validate:"gte=0"`
}

// PostgresConfig holds Postgres journal settings.
type PostgresConfig struct {
	database.PostgresConfig `mapstructure:",squash"`
	FlushInterval           time.Duration `mapstructure:"flushInterval" validate:"gte=0"`
	QueueLimit              int           `mapstructure:"queueLimit" validate:"gte=0"`
}

// WebSocketConfig holds the stream publisher settings.
type WebSocketConfig struct {
	URL          string        `mapstructure:"url"`
	Secret       string        `mapstructure:"secret"`
	AckTimeout   time.Duration `mapstructure:"ackTimeout" validate:"gte=0"`
	MaxReconnect int           `mapstructure:"maxReconnect" validate:"gte=0"`
	// Enabled adds the stream as an extra sink next to the primary backend.
	Enabled bool `mapstructure:"enabled"`
}

// InfluxConfig holds InfluxDB settings for generation latency points.
type InfluxConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      string `mapstructure:"port"`
	Protocol  string `mapstructure:"protocol" validate:"oneof=http https"`
	Token     string `mapstructure:"token"`
	Org       string `mapstructure:"org"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	BackupDir string `mapstructure:"backupDir"`
}

// TelemetryConfig exposes Prometheus metrics.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// ReferenceConfig configures the bundled reference solver.
type ReferenceConfig struct {
	Listen  string `mapstructure:"listen" validate:"required,hostname_port"`
	Samples int    `mapstructure:"samples" validate:"gte=1"`
}

// RobotConfig places the simulated robot and its optional status link.
type RobotConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Link    RobotLinkConfig `mapstructure:"link"`
}

// RobotLinkConfig addresses the robot bridge.
type RobotLinkConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Address string        `mapstructure:"address" validate:"required_if=Enabled true"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// SetDefaults registers every default on viper's global instance.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./pathedit-logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("solver.address", "127.0.0.1:65426")
	viper.SetDefault("solver.backoff", "1s")
	viper.SetDefault("solver.attempts", 0)
	viper.SetDefault("solver.requestTimeout", "5s")

	viper.SetDefault("editor.mode", "sync")
	viper.SetDefault("editor.routines", 2)
	viper.SetDefault("editor.queueSize", 64)
	viper.SetDefault("editor.radii.waypoint", 15.0)
	viper.SetDefault("editor.radii.anchorHit", 10.0)
	viper.SetDefault("editor.radii.anchorRevolution", 25.0)
	d := waypoint.DefaultPositions()
	viper.SetDefault("editor.defaults.start", map[string]float64{"x": d.Start.X, "y": d.Start.Y})
	viper.SetDefault("editor.defaults.seedEnd", map[string]float64{"x": d.SeedEnd.X, "y": d.SeedEnd.Y})
	viper.SetDefault("editor.defaults.newWaypoint", map[string]float64{"x": d.NewWaypoint.X, "y": d.NewWaypoint.Y})
	viper.SetDefault("editor.defaults.newRoutineEnd", map[string]float64{"x": d.NewRoutineEnd.X, "y": d.NewRoutineEnd.Y})

	viper.SetDefault("field.width", 16.4592)
	viper.SetDefault("field.height", 8.2296)
	viper.SetDefault("field.margin", 20.0)
	viper.SetDefault("field.borderSize", 15.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.limit", 256)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./pathedit-journal.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.flushInterval", "2s")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "pathedit")
	viper.SetDefault("storage.postgres.flushInterval", "2s")
	viper.SetDefault("storage.postgres.queueLimit", 10000)
	viper.SetDefault("storage.websocket.enabled", false)
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.ackTimeout", "10s")
	viper.SetDefault("storage.websocket.maxReconnect", 10)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "pathedit")
	viper.SetDefault("influx.bucket", "trajectories")
	viper.SetDefault("influx.backupDir", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.address", "127.0.0.1:9464")

	viper.SetDefault("reference.listen", "127.0.0.1:65426")
	viper.SetDefault("reference.samples", 8)

	viper.SetDefault("robot.enabled", true)
	viper.SetDefault("robot.link.enabled", false)
	viper.SetDefault("robot.link.address", "127.0.0.1:3042")
	viper.SetDefault("robot.link.timeout", "1s")
}

// Load reads FileName from configDir over the defaults, then decodes and validates.
// A missing file is not an error; a malformed one is.
func Load(configDir string) (*Config, error) {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	file := ""
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		file = viper.ConfigFileUsed()
	}

	cfg, err := Decode()
	if err != nil {
		return nil, err
	}
	cfg.File = file
	return cfg, nil
}

// Decode unmarshals viper's current state into a Config and validates it.
func Decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if (cfg.Storage.Type == "websocket" || cfg.Storage.WebSocket.Enabled) && cfg.Storage.WebSocket.URL == "" {
		return fmt.Errorf("invalid config: storage.websocket.url is required when streaming")
	}
	return nil
}

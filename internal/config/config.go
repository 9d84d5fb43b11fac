// Package config loads the gateway configuration from an optional YAML file,
// a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Warehouse types understood by database.NewConnector.
const (
	TypeSnowflake  = "snowflake"
	TypeBigQuery   = "bigquery"
	TypeDatabricks = "databricks"
	TypePostgres   = "postgres"
	TypeMSSQL      = "mssql"
	TypeMySQL      = "mysql"
	TypeDuckDB     = "duckdb"
	TypeSQLite     = "sqlite"
)

// Run store backends.
const (
	StateMemory     = "memory"
	StateFile       = "file"
	StateKubernetes = "kubernetes"
)

// WarehouseConfig holds the connection settings for the target warehouse.
type WarehouseConfig struct {
	// Common fields
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`

	// Snowflake specific
	Account   string `yaml:"account"`
	Warehouse string `yaml:"warehouse"`
	Role      string `yaml:"role"`

	// BigQuery specific
	ProjectID       string `yaml:"project"`
	CredentialsFile string `yaml:"credentials_file"`

	// Databricks specific
	HTTPPath string `yaml:"http_path"`
	Token    string `yaml:"token"`
	Catalog  string `yaml:"catalog"`

	// Timeout bounds session establishment (login / connect).
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the immutable gateway configuration. It is built once at startup
// and passed by pointer into the constructors that need it.
type Config struct {
	ListenAddr string `yaml:"listen_addr"` // HTTP listen address (default ":8080")
	SourcePath string `yaml:"source_path"` // tabular file loaded by /create
	LogLevel   string `yaml:"log_level"`   // debug, info, warn, error (default "info")
	LogFormat  string `yaml:"log_format"`  // text or json (default "text")

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"` // default ["*"]

	// Rate limiting, disabled when RateLimitRPS is zero.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Run store
	StateBackend     string `yaml:"state_backend"`   // memory, file or kubernetes
	StateDir         string `yaml:"state_dir"`       // file backend directory
	StateNamespace   string `yaml:"state_namespace"` // kubernetes backend namespace
	ProgressInterval int    `yaml:"progress_interval"`
	StateRetain      int    `yaml:"state_retain"` // finished runs kept, oldest pruned first

	Warehouse WarehouseConfig `yaml:"warehouse"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.SourcePath, "SOURCE_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.StateBackend, "STATE_BACKEND")
	setString(&cfg.StateDir, "STATE_DIR")
	setString(&cfg.StateNamespace, "STATE_NAMESPACE")

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		cfg.RateLimitRPS = f
	}
	if err := setInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST"); err != nil {
		return err
	}
	if err := setInt(&cfg.ProgressInterval, "PROGRESS_INTERVAL"); err != nil {
		return err
	}
	if err := setInt(&cfg.StateRetain, "STATE_RETAIN"); err != nil {
		return err
	}

	w := &cfg.Warehouse
	setString(&w.Type, "WAREHOUSE_TYPE")
	setString(&w.Host, "WAREHOUSE_HOST")
	setString(&w.User, "WAREHOUSE_USER")
	setString(&w.Password, "WAREHOUSE_PASSWORD")
	setString(&w.Database, "WAREHOUSE_DATABASE")
	setString(&w.Schema, "WAREHOUSE_SCHEMA")
	setString(&w.Account, "WAREHOUSE_ACCOUNT")
	setString(&w.Warehouse, "WAREHOUSE_NAME")
	setString(&w.Role, "WAREHOUSE_ROLE")
	setString(&w.ProjectID, "WAREHOUSE_PROJECT")
	setString(&w.CredentialsFile, "WAREHOUSE_CREDENTIALS_FILE")
	setString(&w.HTTPPath, "WAREHOUSE_HTTP_PATH")
	setString(&w.Token, "WAREHOUSE_TOKEN")
	setString(&w.Catalog, "WAREHOUSE_CATALOG")
	if err := setInt(&w.Port, "WAREHOUSE_PORT"); err != nil {
		return err
	}
	if v := os.Getenv("WAREHOUSE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid WAREHOUSE_TIMEOUT %q: %w", v, err)
		}
		w.Timeout = d
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.SourcePath == "" {
		cfg.SourcePath = "iris_data.csv"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = int(cfg.RateLimitRPS * 2)
		if cfg.RateLimitBurst < 1 {
			cfg.RateLimitBurst = 1
		}
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = StateMemory
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "state"
	}
	if cfg.StateNamespace == "" {
		cfg.StateNamespace = "default"
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 1000
	}
	if cfg.StateRetain == 0 {
		cfg.StateRetain = 100
	}
	if cfg.Warehouse.Type == "" {
		cfg.Warehouse.Type = TypeSnowflake
	}
	if cfg.Warehouse.Timeout == 0 {
		cfg.Warehouse.Timeout = 30 * time.Second
	}
}

// Validate checks that every setting the selected warehouse needs is present.
func (c *Config) Validate() error {
	switch c.StateBackend {
	case StateMemory, StateFile, StateKubernetes:
	default:
		return fmt.Errorf("unsupported state backend: %s", c.StateBackend)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("PROGRESS_INTERVAL must not be negative")
	}
	if c.StateRetain < 0 {
		return fmt.Errorf("STATE_RETAIN must not be negative")
	}
	return c.Warehouse.Validate()
}

// Validate reports every missing setting for the configured warehouse type.
func (w *WarehouseConfig) Validate() error {
	type field struct {
		env string
		ok  bool
	}
	var required []field
	switch w.Type {
	case TypeSnowflake:
		required = []field{
			{"WAREHOUSE_USER", w.User != ""},
			{"WAREHOUSE_PASSWORD", w.Password != ""},
			{"WAREHOUSE_ACCOUNT", w.Account != ""},
			{"WAREHOUSE_ROLE", w.Role != ""},
			{"WAREHOUSE_NAME", w.Warehouse != ""},
			{"WAREHOUSE_DATABASE", w.Database != ""},
			{"WAREHOUSE_SCHEMA", w.Schema != ""},
		}
	case TypePostgres, TypeMSSQL, TypeMySQL:
		required = []field{
			{"WAREHOUSE_HOST", w.Host != ""},
			{"WAREHOUSE_PORT", w.Port != 0},
			{"WAREHOUSE_USER", w.User != ""},
			{"WAREHOUSE_PASSWORD", w.Password != ""},
			{"WAREHOUSE_DATABASE", w.Database != ""},
		}
	case TypeBigQuery:
		required = []field{
			{"WAREHOUSE_PROJECT", w.ProjectID != ""},
		}
	case TypeDatabricks:
		required = []field{
			{"WAREHOUSE_HOST", w.Host != ""},
			{"WAREHOUSE_HTTP_PATH", w.HTTPPath != ""},
			{"WAREHOUSE_TOKEN", w.Token != ""},
		}
	case TypeDuckDB, TypeSQLite:
		required = []field{
			{"WAREHOUSE_DATABASE", w.Database != ""},
		}
	default:
		return fmt.Errorf("unsupported warehouse type: %s", w.Type)
	}

	var missing []string
	for _, f := range required {
		if !f.ok {
			missing = append(missing, f.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required %s settings: %s", w.Type, strings.Join(missing, ", "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv seeds the environment from a file of KEY=VALUE lines. A
// variable that already has a non-empty value is left alone, matching how
// applyEnv treats empty variables. A missing file is not an error.
func LoadDotEnv(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}

	for n, line := range strings.Split(string(data), "\n") {
		key, value, ok, err := parseEnvLine(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, n+1, err)
		}
		if !ok || os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("setenv %s: %w", key, err)
		}
	}
	return nil
}

// parseEnvLine returns ok=false for blank and comment lines. Values may be
// wrapped in matching single or double quotes; unquoted values lose a
// trailing " #" comment. An optional "export " prefix is accepted.
func parseEnvLine(line string) (key, value string, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false, nil
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false, fmt.Errorf("expected KEY=VALUE, got %q", line)
	}

	value = strings.TrimSpace(value)
	if n := len(value); n >= 2 && (value[0] == '"' || value[0] == '\'') && value[n-1] == value[0] {
		return key, value[1 : n-1], true, nil
	}
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return key, value, true, nil
}

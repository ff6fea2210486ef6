package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config is the gateway configuration, loaded from config.yaml with
// environment overrides.
type Config struct {
	Auth    AuthConfig    `mapstructure:"auth"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type AuthConfig struct {
	ClientID string `mapstructure:"client_id"`
	TenantID string `mapstructure:"tenant_id"`
}

type PathsConfig struct {
	StateDir string `mapstructure:"state_dir"`
}

// LimitsConfig bounds what a single tool call can pull into context.
type LimitsConfig struct {
	MaxDaxRows         int `mapstructure:"max_dax_rows"`
	MaxSQLResultRows   int `mapstructure:"max_sql_result_rows"`
	MaxTablesInContext int `mapstructure:"max_tables_in_context"`
	MaxColumnsPerTable int `mapstructure:"max_columns_per_table"`
	SampleRows         int `mapstructure:"sample_rows"`
}

type BridgeConfig struct {
	Executor string        `mapstructure:"executor"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionPath is the well-known location of the persisted session.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Paths.StateDir, "session.yaml")
}

// TokenCachePath is the well-known location of the credential cache.
func (c *Config) TokenCachePath() string {
	return filepath.Join(c.Paths.StateDir, "token_cache.yaml")
}

// Load loads the configuration from .env, config file and environment.
func Load(configFile string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warnln("Could not load .env file")
	}

	v := viper.New()

	if err := setupViperConfig(v, configFile); err != nil {
		return nil, err
	}

	bindEnvironmentVariables(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment are enough.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.Paths.StateDir = expandHome(config.Paths.StateDir)

	if err := setupLogging(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setupViperConfig(v *viper.Viper, configFile string) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fabric-gateway")
	v.AddConfigPath("~/.fabric-gateway")

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setDefaults(v)

	v.SetEnvPrefix("FABRIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.tenant_id", "organizations")
	v.SetDefault("paths.state_dir", "~/.fabric-gateway")
	v.SetDefault("limits.max_dax_rows", 1000)
	v.SetDefault("limits.max_sql_result_rows", 500)
	v.SetDefault("limits.max_tables_in_context", 50)
	v.SetDefault("limits.max_columns_per_table", 100)
	v.SetDefault("limits.sample_rows", 10)
	v.SetDefault("bridge.timeout", 2*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func bindEnvironmentVariables(v *viper.Viper) {
	v.BindEnv("auth.client_id", "FABRIC_CLIENT_ID")
	v.BindEnv("auth.tenant_id", "FABRIC_TENANT_ID")
	v.BindEnv("paths.state_dir", "FABRIC_STATE_DIR")
	v.BindEnv("bridge.executor", "FABRIC_BRIDGE_EXECUTOR")
	v.BindEnv("bridge.timeout", "FABRIC_BRIDGE_TIMEOUT")
	v.BindEnv("logging.level", "FABRIC_LOGGING_LEVEL")
	v.BindEnv("logging.format", "FABRIC_LOGGING_FORMAT")
}

// setupLogging configures logrus. Everything goes to stderr: stdout is the
// JSON-RPC channel and must stay clean.
func setupLogging(config *Config) error {
	logrus.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid logging level %q: %w", config.Logging.Level, err)
	}
	logrus.SetLevel(level)

	if strings.EqualFold(config.Logging.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	usr, err := user.Current()
	if err != nil {
		logrus.WithError(err).Warnln("Could not resolve home directory")
		return path
	}

	return filepath.Join(usr.HomeDir, strings.TrimPrefix(path, "~"))
}

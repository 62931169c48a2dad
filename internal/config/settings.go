package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFileName = "weebctl"
	envPrefix      = "WEEB"
)

// DefaultAssociationCandidates lists the association resource spellings the
// backend has been seen to expose, in probing order.
var DefaultAssociationCandidates = []string{
	"article-genres",
	"articles-genres",
	"articlesgenres",
	"articlegenre",
	"article-genres-links",
}

// Config represents the application configuration
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Associations AssociationsConfig `mapstructure:"associations"`
	Reconcile    ReconcileConfig    `mapstructure:"reconcile"`
	Log          LogConfig          `mapstructure:"log"`
	DevServer    DevServerConfig    `mapstructure:"devserver"`
}

// APIConfig configures the REST client
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AssociationsConfig describes where article-genre links live.
// A non-empty Endpoint disables probing.
type AssociationsConfig struct {
	Endpoint   string   `mapstructure:"endpoint"`
	Candidates []string `mapstructure:"candidates"`
	PageSize   int      `mapstructure:"page_size"`
}

// ReconcileConfig configures a reconciliation pass
type ReconcileConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Strict  bool          `mapstructure:"strict"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DevServerConfig configures the local reference backend
type DevServerConfig struct {
	Addr            string `mapstructure:"addr"`
	DatabaseURL     string `mapstructure:"database_url"`
	AssociationPath string `mapstructure:"association_path"`
	AdminUsername   string `mapstructure:"admin_username"`
	AdminPassword   string `mapstructure:"admin_password"`
}

// Load loads configuration from defaults, an optional YAML file and WEEB_*
// environment variables. An empty path searches the usual locations; a
// missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("associations.endpoint", "")
	v.SetDefault("associations.candidates", DefaultAssociationCandidates)
	v.SetDefault("associations.page_size", 1000)
	v.SetDefault("reconcile.timeout", 30*time.Second)
	v.SetDefault("reconcile.strict", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("devserver.addr", ":8000")
	v.SetDefault("devserver.database_url", "")
	v.SetDefault("devserver.association_path", "article-genres")
	v.SetDefault("devserver.admin_username", "admin")
	v.SetDefault("devserver.admin_password", "admin")
}

// Validate checks the values that the rest of the program relies on.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Reconcile.Timeout <= 0 {
		return fmt.Errorf("reconcile.timeout must be positive, got %s", c.Reconcile.Timeout)
	}
	if c.Associations.PageSize <= 0 {
		return fmt.Errorf("associations.page_size must be positive, got %d", c.Associations.PageSize)
	}
	if c.Associations.Endpoint == "" && len(c.Associations.Candidates) == 0 {
		return errors.New("associations.candidates must not be empty when no endpoint is configured")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// FilePath returns the default YAML config location under the config dir.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName+".yaml"), nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yml"

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxUploadMB     int64         `yaml:"max_upload_mb"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // "postgres" or "sqlite"
		URL    string `yaml:"url"`    // PostgreSQL URL or SQLite file path
	} `yaml:"database"`

	Auth struct {
		JWTSecret           string        `yaml:"jwt_secret"`
		TokenTTL            time.Duration `yaml:"token_ttl"`
		Issuer              string        `yaml:"issuer"`
		AllowInsecureSecret bool          `yaml:"allow_insecure_secret"`
	} `yaml:"auth"`

	Revocation struct {
		Backend string `yaml:"backend"` // "none", "memory" or "redis"
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"revocation"`

	Provider struct {
		Type              string `yaml:"type"` // "gemini", "groq" or "openrouter"
		APIKey            string `yaml:"api_key"`
		ModelName         string `yaml:"model_name"`
		VisionModelName   string `yaml:"vision_model_name"`
		BaseURL           string `yaml:"base_url"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
	} `yaml:"provider"`

	Gateway struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"gateway"`

	Archive struct {
		Enabled   bool   `yaml:"enabled"`
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"archive"`

	Log struct {
		Development bool `yaml:"development"`
	} `yaml:"log"`
}

// Path returns the config file location, honouring CONFIG_PATH.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig reads configuration from the specified YAML file, applies defaults
// and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.expandEnv()
	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) expandEnv() {
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
	c.Provider.APIKey = os.ExpandEnv(c.Provider.APIKey)
	c.Revocation.Redis.Password = os.ExpandEnv(c.Revocation.Redis.Password)
	c.Archive.AccessKey = os.ExpandEnv(c.Archive.AccessKey)
	c.Archive.SecretKey = os.ExpandEnv(c.Archive.SecretKey)

	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 10
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "agroai"
	}

	if c.Revocation.Backend == "" {
		c.Revocation.Backend = "memory"
	}
	if c.Revocation.Redis.Addr == "" {
		c.Revocation.Redis.Addr = "localhost:6379"
	}

	if c.Provider.Type == "" {
		c.Provider.Type = "gemini"
	}
	if c.Provider.ModelName == "" && c.Provider.Type == "gemini" {
		c.Provider.ModelName = "gemini-1.5-flash"
	}

	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 60 * time.Second
	}

	if c.Archive.Bucket == "" {
		c.Archive.Bucket = "agroai-diagnoses"
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	} else if len(c.Auth.JWTSecret) < 16 && !c.Auth.AllowInsecureSecret {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 bytes"))
	}
	if c.Auth.TokenTTL < 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}

	switch c.Revocation.Backend {
	case "none", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported revocation backend %q", c.Revocation.Backend))
	}

	switch c.Provider.Type {
	case "gemini", "groq", "openrouter":
	default:
		errs = append(errs, fmt.Errorf("unsupported provider type %q", c.Provider.Type))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required"))
	}

	if c.Archive.Enabled && c.Archive.Endpoint == "" {
		errs = append(errs, errors.New("archive.endpoint is required when the archive is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

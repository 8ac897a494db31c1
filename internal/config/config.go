package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Gemini struct {
		APIKey             string  `yaml:"apiKey"`
		Endpoint           string  `yaml:"endpoint"`
		Model              string  `yaml:"model"`
		MinIntervalSeconds int     `yaml:"minIntervalSeconds"`
		MaxRetries         int     `yaml:"maxRetries"`
		Temperature        float32 `yaml:"temperature"`
		MaxOutputTokens    int     `yaml:"maxOutputTokens"`
	} `yaml:"gemini"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	// Provider selects the analysis backend: "gemini" (default) or "openai".
	Provider string `yaml:"provider"`

	Cache struct {
		// Driver is "mysql", "postgres", or "none".
		Driver     string `yaml:"driver"`
		MaxAgeDays int    `yaml:"maxAgeDays"`

		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"cache"`

	Registry struct {
		BaseURL string `yaml:"baseURL"`
	} `yaml:"registry"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Default returns the configuration used when no config.yaml exists.
// A missing API key is not an error here; the client rejects empty keys
// when it is actually constructed.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Provider = "gemini"
	cfg.Gemini.Model = "gemini-2.5-flash"
	cfg.Gemini.MinIntervalSeconds = 2
	cfg.Gemini.MaxRetries = 2
	cfg.Cache.Driver = "none"
	cfg.Cache.MaxAgeDays = 90
	cfg.Cache.Port = 3306
	return &cfg
}

// Load reads the config file at path and applies environment overrides.
// A missing file yields the defaults; any other read or parse error is fatal
// to the caller.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CRATEGUARD_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Gemini.APIKey == "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = v
	}
}

// MinInterval is the configured spacing between analysis calls.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Gemini.MinIntervalSeconds) * time.Second
}

// MySQLDSN builds the DSN for the mysql cache driver.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Cache.User,
		c.Cache.Password,
		c.Cache.Host,
		c.Cache.Port,
		c.Cache.Name,
	)
}

// PostgresDSN builds the DSN for the postgres cache driver.
func (c *Config) PostgresDSN() string {
	sslMode := c.Cache.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Cache.Host,
		c.Cache.Port,
		c.Cache.User,
		c.Cache.Password,
		c.Cache.Name,
		sslMode,
	)
}

// CacheDSN maps the configured driver to its DSN. Unknown drivers return an
// empty string; the cache opener reports those.
func (c *Config) CacheDSN() string {
	switch c.Cache.Driver {
	case "mysql":
		return c.MySQLDSN()
	case "postgres":
		return c.PostgresDSN()
	default:
		return ""
	}
}

// Write serializes the config to path, used by the init command to produce
// a starting config.yaml.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

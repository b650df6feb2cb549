package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		IdleTimeout     time.Duration `yaml:"idleTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		AllowedOrigins  []string      `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver      string `yaml:"driver"` // postgres | mysql | sqlite
		URL         string `yaml:"url"`
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Name        string `yaml:"name"`
		SSLMode     string `yaml:"sslMode"`
		Path        string `yaml:"path"`
		AutoMigrate bool   `yaml:"autoMigrate"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`

	Encryption struct {
		MasterKey  string `yaml:"masterKey"`
		Iterations int    `yaml:"iterations"`
	} `yaml:"encryption"`

	OpenAI struct {
		APIKey    string `yaml:"apiKey"`
		BaseURL   string `yaml:"baseURL"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"maxTokens"`
	} `yaml:"openai"`

	Classification struct {
		MaxCandidates       int           `yaml:"maxCandidates"`
		MinSentenceLength   int           `yaml:"minSentenceLength"`
		MaxAttempts         int           `yaml:"maxAttempts"`
		RetryDelay          time.Duration `yaml:"retryDelay"`
		PacingDelay         time.Duration `yaml:"pacingDelay"`
		ConfidenceThreshold float64       `yaml:"confidenceThreshold"`
	} `yaml:"classification"`

	Analyses struct {
		MaxCustomSearches  int    `yaml:"maxCustomSearches"`
		DefaultLanguage    string `yaml:"defaultLanguage"`
		AnalysisVersion    string `yaml:"analysisVersion"`
		SavedSearchesLimit int    `yaml:"savedSearchesLimit"`
	} `yaml:"analyses"`

	Minio struct {
		Enabled       bool   `yaml:"enabled"`
		Endpoint      string `yaml:"endpoint"`
		AccessKey     string `yaml:"accessKey"`
		SecretKey     string `yaml:"secretKey"`
		BucketName    string `yaml:"bucketName"`
		Region        string `yaml:"region"`
		UseSSL        bool   `yaml:"useSSL"`
		PublicBaseURL string `yaml:"publicBaseURL"`
	} `yaml:"minio"`

	RateLimit struct {
		ClassificationPerMinute int `yaml:"classificationPerMinute"`
		Burst                   int `yaml:"burst"`
	} `yaml:"rateLimit"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads the YAML file at path, overlays .env and the process environment,
// then fills defaults. A missing file is not an error when the environment
// carries everything needed.
func Load(path string) (*Config, error) {
	// .env optional, abaikan kalau tidak ada
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"DATABASE_DRIVER", &c.Database.Driver},
		{"DATABASE_URL", &c.Database.URL},
		{"SQLITE_PATH", &c.Database.Path},
		{"JWT_SECRET", &c.Auth.JWTSecret},
		{"ENCRYPTION_MASTER_KEY", &c.Encryption.MasterKey},
		{"OPENAI_API_KEY", &c.OpenAI.APIKey},
		{"OPENAI_BASE_URL", &c.OpenAI.BaseURL},
		{"OPENAI_MODEL", &c.OpenAI.Model},
		{"MINIO_ACCESS_KEY", &c.Minio.AccessKey},
		{"MINIO_SECRET_KEY", &c.Minio.SecretKey},
		{"LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// classification batches pace their outbound calls, so writes need headroom
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Path == "" {
		c.Database.Path = "sessionlens.db"
	}
	if c.Encryption.Iterations == 0 {
		c.Encryption.Iterations = 100000
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 4000
	}
	if c.Classification.MaxCandidates == 0 {
		c.Classification.MaxCandidates = 30
	}
	if c.Classification.MinSentenceLength == 0 {
		c.Classification.MinSentenceLength = 15
	}
	if c.Classification.MaxAttempts == 0 {
		c.Classification.MaxAttempts = 2
	}
	if c.Classification.RetryDelay == 0 {
		c.Classification.RetryDelay = 2 * time.Second
	}
	if c.Classification.PacingDelay == 0 {
		c.Classification.PacingDelay = time.Second
	}
	if c.Classification.ConfidenceThreshold == 0 {
		c.Classification.ConfidenceThreshold = 0.4
	}
	if c.Analyses.MaxCustomSearches == 0 {
		c.Analyses.MaxCustomSearches = 50
	}
	if c.Analyses.DefaultLanguage == "" {
		c.Analyses.DefaultLanguage = "italian"
	}
	if c.Analyses.AnalysisVersion == "" {
		c.Analyses.AnalysisVersion = "1.0.0"
	}
	if c.Analyses.SavedSearchesLimit == 0 {
		c.Analyses.SavedSearchesLimit = 20
	}
	if c.RateLimit.ClassificationPerMinute == 0 {
		c.RateLimit.ClassificationPerMinute = 6
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 2
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q not supported (postgres, mysql, sqlite)", c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret (JWT_SECRET) is required"))
	}
	if len(c.Encryption.MasterKey) < 32 {
		errs = append(errs, errors.New("encryption.masterKey (ENCRYPTION_MASTER_KEY) must be at least 32 characters"))
	}
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.apiKey (OPENAI_API_KEY) is required"))
	}
	if c.Classification.MaxAttempts < 1 {
		errs = append(errs, errors.New("classification.maxAttempts must be at least 1"))
	}
	if c.Classification.MaxCandidates < 1 {
		errs = append(errs, errors.New("classification.maxCandidates must be at least 1"))
	}
	if c.Classification.MinSentenceLength < 1 {
		errs = append(errs, errors.New("classification.minSentenceLength must be at least 1"))
	}
	if t := c.Classification.ConfidenceThreshold; t <= 0 || t >= 1 {
		errs = append(errs, errors.New("classification.confidenceThreshold must be in (0,1)"))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required when minio is enabled"))
	}
	return errors.Join(errs...)
}

// MySQLDSN builds the go-sql-driver DSN. parseTime is required for DATETIME scans.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN prefers database.url / DATABASE_URL and falls back to the discrete fields.
func (c *Config) PostgresDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

package config

import (
	"fmt"
	"os"
	"time"

	"grading-service/internal/batch"
	"grading-service/internal/grademap"
	"grading-service/internal/llm"
	"grading-service/internal/notify"
	"grading-service/internal/prompt"

	"gopkg.in/yaml.v3"
)

const (
	// MaxTemperature bounds every roster model to near-deterministic sampling
	MaxTemperature = 0.3
	// MaxRetries is the retry ceiling for one grading call
	MaxRetries = 1

	DefaultPath = "configs/config.yml"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		MaxUploadMB int64  `yaml:"max_upload_mb"`
	} `yaml:"server"`

	Log struct {
		Development bool   `yaml:"development"`
		Level       string `yaml:"level"`
	} `yaml:"log"`

	Database struct {
		Driver  string `yaml:"driver"` // "sqlite" or "postgres"
		URL     string `yaml:"url"`    // SQLite path or PostgreSQL URL
		Migrate *bool  `yaml:"migrate"`
	} `yaml:"database"`

	// Models is the grading roster, every entry grades every submission
	Models []llm.ProviderConfig `yaml:"models"`

	Embedding struct {
		llm.ProviderConfig `yaml:",inline"`
		Enabled            bool `yaml:"enabled"`
		MaxChars           int  `yaml:"max_chars"`
	} `yaml:"embedding"`

	Grading struct {
		ApplyCalibration    bool `yaml:"apply_calibration"`
		DiscussionPointsMax int  `yaml:"discussion_points_max"`
	} `yaml:"grading"`

	Batch struct {
		Parallelism    int    `yaml:"parallelism"`
		SecondsPerItem int    `yaml:"seconds_per_item"`
		MaxFiles       int    `yaml:"max_files"`
		MaxFileMB      int64  `yaml:"max_file_mb"`
		UploadsDir     string `yaml:"uploads_dir"`
	} `yaml:"batch"`

	GradeMap struct {
		Path      string  `yaml:"path"`
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"grade_map"`

	Telegram notify.Config `yaml:"telegram"`
}

// Path returns the config location, honouring GRADER_CONFIG
func Path() string {
	if p := os.Getenv("GRADER_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig loads configuration from YAML file
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

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 256
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.URL == "" && c.Database.Driver == "sqlite" {
		c.Database.URL = "./data/grading.db"
	}
	if c.Database.Migrate == nil {
		migrate := true
		c.Database.Migrate = &migrate
	}
	c.Database.URL = os.ExpandEnv(c.Database.URL)

	// Expand environment variables in roster API keys and clamp sampling
	for i := range c.Models {
		m := &c.Models[i]
		m.APIKey = os.ExpandEnv(m.APIKey)
		if m.ID == "" {
			m.ID = m.ModelName
		}
		if m.Temperature != nil {
			t := *m.Temperature
			if t < 0 {
				t = 0
			}
			if t > MaxTemperature {
				t = MaxTemperature
			}
			m.Temperature = &t
		}
		if m.Timeout == 0 {
			m.Timeout = 120 * time.Second
		}
		if m.MaxRetries > MaxRetries {
			m.MaxRetries = MaxRetries
		}
		if m.RetryDelay == 0 {
			m.RetryDelay = 2 * time.Second
		}
	}

	c.Embedding.APIKey = os.ExpandEnv(c.Embedding.APIKey)
	if c.Embedding.MaxChars == 0 {
		c.Embedding.MaxChars = 10000
	}

	if c.Grading.DiscussionPointsMax == 0 {
		c.Grading.DiscussionPointsMax = prompt.DiscussionPointsCount
	}

	if c.Batch.Parallelism <= 0 {
		c.Batch.Parallelism = batch.DefaultParallelism
	}
	if c.Batch.SecondsPerItem <= 0 {
		c.Batch.SecondsPerItem = batch.DefaultSecondsPerItem
	}
	if c.Batch.MaxFiles == 0 {
		c.Batch.MaxFiles = 200
	}
	if c.Batch.MaxFileMB == 0 {
		c.Batch.MaxFileMB = 10
	}
	if c.Batch.UploadsDir == "" {
		c.Batch.UploadsDir = "./data/uploads"
	}

	if c.GradeMap.Tolerance == 0 {
		c.GradeMap.Tolerance = grademap.DefaultTolerance
	}

	c.Telegram.BotToken = os.ExpandEnv(c.Telegram.BotToken)
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("config: at least one model is required in models")
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.ModelName == "" {
			return fmt.Errorf("config: model %q has no model_name", m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("config: duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("config: database.url is required for %s", c.Database.Driver)
	}
	return nil
}

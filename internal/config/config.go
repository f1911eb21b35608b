// Package config defines the configuration structures for trialscope.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// ChEMBLConfig holds knowledge-base client parameters.
type ChEMBLConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RPS          float64       `mapstructure:"rps"`
	Burst        int64         `mapstructure:"burst"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	PageLimit    int           `mapstructure:"page_limit"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// NCBIConfig holds E-utilities parameters for MeSH normalization.
type NCBIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Email          string        `mapstructure:"email"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RPS            float64       `mapstructure:"rps"`
	RateLimitRetry time.Duration `mapstructure:"rate_limit_retry"`
}

// LLMConfig holds the conversational-model endpoint.
type LLMConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters. It is used both for
// the AACT trial database and the optional results store.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection parameters for the cooldown gate.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds producer parameters for row publication.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// MinIOConfig holds object-storage parameters for export upload.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ServerConfig holds HTTP API tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PipelineConfig holds batch pipeline parameters.
type PipelineConfig struct {
	// RowLimit caps the number of trials processed; 0 means no limit.
	RowLimit  int    `mapstructure:"row_limit"`
	OutputDir string `mapstructure:"output_dir"`
	// WidenWithMeSH also queries trials for the NCBI MeSH term of the disease.
	WidenWithMeSH bool `mapstructure:"widen_with_mesh"`
}

// Config is the root configuration structure.
type Config struct {
	ChEMBL   ChEMBLConfig      `mapstructure:"chembl"`
	NCBI     NCBIConfig        `mapstructure:"ncbi"`
	LLM      LLMConfig         `mapstructure:"llm"`
	Database DatabaseConfig    `mapstructure:"database"`
	Results  DatabaseConfig    `mapstructure:"results"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Kafka    KafkaConfig       `mapstructure:"kafka"`
	MinIO    MinIOConfig       `mapstructure:"minio"`
	Log      logging.LogConfig `mapstructure:"log"`
	Server   ServerConfig      `mapstructure:"server"`
	Pipeline PipelineConfig    `mapstructure:"pipeline"`
}

// DSN returns a libpq-style connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// Validate performs semantic validation of a fully-populated Config.
// It returns the first error encountered.
func (c *Config) Validate() error {
	if c.ChEMBL.BaseURL == "" {
		return fmt.Errorf("config: chembl.base_url is required")
	}
	if c.ChEMBL.RPS <= 0 {
		return fmt.Errorf("config: chembl.rps must be > 0, got %v", c.ChEMBL.RPS)
	}
	if c.ChEMBL.RetryMax < 0 {
		return fmt.Errorf("config: chembl.retry_max must be >= 0, got %d", c.ChEMBL.RetryMax)
	}
	if c.ChEMBL.RetryWaitMax < c.ChEMBL.RetryWaitMin {
		return fmt.Errorf("config: chembl.retry_wait_max must not be below retry_wait_min")
	}
	if c.NCBI.BaseURL == "" {
		return fmt.Errorf("config: ncbi.base_url is required")
	}
	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		return fmt.Errorf("config: llm.base_url and llm.model are required")
	}

	if err := validateDatabase("database", c.Database); err != nil {
		return err
	}
	if c.Results.Enabled {
		if err := validateDatabase("results", c.Results); err != nil {
			return err
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.bucket are required when minio is enabled")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Pipeline.RowLimit < 0 {
		return fmt.Errorf("config: pipeline.row_limit must be >= 0, got %d", c.Pipeline.RowLimit)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}
	return nil
}

func validateDatabase(section string, d DatabaseConfig) error {
	if d.Host == "" {
		return fmt.Errorf("config: %s.host is required", section)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("config: %s.port %d is out of range [1, 65535]", section, d.Port)
	}
	if d.DBName == "" {
		return fmt.Errorf("config: %s.db_name is required", section)
	}
	if d.MaxConns < 1 {
		return fmt.Errorf("config: %s.max_conns must be >= 1, got %d", section, d.MaxConns)
	}
	return nil
}

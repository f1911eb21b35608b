package config

import "time"

const (
	DefaultChEMBLBaseURL      = "https://www.ebi.ac.uk/chembl/api/data"
	DefaultChEMBLTimeout      = 30 * time.Second
	DefaultChEMBLRPS          = 5.0
	DefaultChEMBLBurst        = 5
	DefaultChEMBLRetryMax     = 3
	DefaultChEMBLRetryWaitMin = 500 * time.Millisecond
	DefaultChEMBLRetryWaitMax = 5 * time.Second
	DefaultChEMBLPageLimit    = 200
	DefaultUserAgent          = "trialscope/1.0"

	DefaultNCBIBaseURL        = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	DefaultNCBITimeout        = 30 * time.Second
	DefaultNCBIRPS            = 1.0
	DefaultNCBIRateLimitRetry = 300 * time.Second

	DefaultLLMBaseURL = "http://localhost:11434"
	DefaultLLMModel   = "gemma3:27b"
	DefaultLLMTimeout = 120 * time.Second

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "aact_db"
	DefaultDBSSLMode  = "disable"
	DefaultDBMaxConns = 10

	DefaultResultsDBName = "trialscope"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisKeyPrefix = "trialscope:"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaTopic        = "trialscope.rows"
	DefaultKafkaBatchSize    = 100
	DefaultKafkaBatchTimeout = time.Second
	DefaultKafkaMaxAttempts  = 3

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "trialscope-exports"

	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 30 * time.Second
	DefaultServerWriteTimeout    = 120 * time.Second
	DefaultServerShutdownTimeout = 15 * time.Second

	DefaultOutputDir = "."

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Explicitly configured values are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.ChEMBL.BaseURL == "" {
		cfg.ChEMBL.BaseURL = DefaultChEMBLBaseURL
	}
	if cfg.ChEMBL.Timeout == 0 {
		cfg.ChEMBL.Timeout = DefaultChEMBLTimeout
	}
	if cfg.ChEMBL.RPS == 0 {
		cfg.ChEMBL.RPS = DefaultChEMBLRPS
	}
	if cfg.ChEMBL.Burst == 0 {
		cfg.ChEMBL.Burst = DefaultChEMBLBurst
	}
	if cfg.ChEMBL.RetryWaitMin == 0 {
		cfg.ChEMBL.RetryWaitMin = DefaultChEMBLRetryWaitMin
	}
	if cfg.ChEMBL.RetryWaitMax == 0 {
		cfg.ChEMBL.RetryWaitMax = DefaultChEMBLRetryWaitMax
	}
	if cfg.ChEMBL.PageLimit == 0 {
		cfg.ChEMBL.PageLimit = DefaultChEMBLPageLimit
	}
	if cfg.ChEMBL.UserAgent == "" {
		cfg.ChEMBL.UserAgent = DefaultUserAgent
	}

	if cfg.NCBI.BaseURL == "" {
		cfg.NCBI.BaseURL = DefaultNCBIBaseURL
	}
	if cfg.NCBI.Timeout == 0 {
		cfg.NCBI.Timeout = DefaultNCBITimeout
	}
	if cfg.NCBI.RPS == 0 {
		cfg.NCBI.RPS = DefaultNCBIRPS
	}
	if cfg.NCBI.RateLimitRetry == 0 {
		cfg.NCBI.RateLimitRetry = DefaultNCBIRateLimitRetry
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultLLMBaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}

	applyDatabaseDefaults(&cfg.Database, DefaultDBName)
	applyDatabaseDefaults(&cfg.Results, DefaultResultsDBName)

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = DefaultKafkaBatchSize
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}
	if cfg.Kafka.MaxAttempts == 0 {
		cfg.Kafka.MaxAttempts = DefaultKafkaMaxAttempts
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	if cfg.Pipeline.OutputDir == "" {
		cfg.Pipeline.OutputDir = DefaultOutputDir
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func applyDatabaseDefaults(d *DatabaseConfig, dbName string) {
	if d.Host == "" {
		d.Host = DefaultDBHost
	}
	if d.Port == 0 {
		d.Port = DefaultDBPort
	}
	if d.DBName == "" {
		d.DBName = dbName
	}
	if d.SSLMode == "" {
		d.SSLMode = DefaultDBSSLMode
	}
	if d.MaxConns == 0 {
		d.MaxConns = DefaultDBMaxConns
	}
}

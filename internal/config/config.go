// Package config defines all configuration structures for the LeaseLens
// platform.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the document store.
type DatabaseConfig struct {
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
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.  When Enabled
// is false the API server runs analyses in-process instead of dispatching
// tasks to the worker.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
// DocumentBucket receives uploaded PDFs; TextBucket receives redacted text.
type MinIOConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	DocumentBucket string        `mapstructure:"document_bucket"`
	TextBucket     string        `mapstructure:"text_bucket"`
	UseSSL         bool          `mapstructure:"use_ssl"`
	PresignExpiry  time.Duration `mapstructure:"presign_expiry"`
}

// MilvusConfig holds Milvus vector-store connection parameters, used only when
// search.backend is "milvus".
type MilvusConfig struct {
	Addr         string `mapstructure:"addr"`
	DBName       string `mapstructure:"db_name"`
	Collection   string `mapstructure:"collection"`
	EmbeddingDim int    `mapstructure:"embedding_dim"`
	DefaultTopK  int    `mapstructure:"default_top_k"`
}

// SearchConfig holds statute retrieval parameters.
type SearchConfig struct {
	Backend    string        `mapstructure:"backend"` // "memory" | "milvus"
	CorpusPath string        `mapstructure:"corpus_path"`
	TopK       int           `mapstructure:"top_k"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	HotReload  bool          `mapstructure:"hot_reload"`
}

// GenAIConfig holds language-model endpoint parameters for completion and
// embedding requests.
type GenAIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// RedactionConfig holds PII redaction parameters.
type RedactionConfig struct {
	KeyStorePath string `mapstructure:"keystore_path"`
}

// ChunkerConfig holds document chunking parameters.
type ChunkerConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// PipelineConfig holds analysis-pipeline behaviour switches.
type PipelineConfig struct {
	SkipMetadataExtraction bool          `mapstructure:"skip_metadata_extraction"`
	LockTTL                time.Duration `mapstructure:"lock_ttl"`
}

// UploadConfig holds document-intake limits.
type UploadConfig struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	ChunkConcurrency int           `mapstructure:"chunk_concurrency"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Milvus    MilvusConfig    `mapstructure:"milvus"`
	Search    SearchConfig    `mapstructure:"search"`
	GenAI     GenAIConfig     `mapstructure:"genai"`
	Redaction RedactionConfig `mapstructure:"redaction"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	switch c.Search.Backend {
	case "memory", "milvus":
	default:
		return fmt.Errorf("config: search.backend %q is invalid; expected memory|milvus", c.Search.Backend)
	}
	if c.Search.Backend == "milvus" && c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required when search.backend is milvus")
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("config: search.top_k must be >= 1, got %d", c.Search.TopK)
	}

	if c.GenAI.BaseURL == "" {
		return fmt.Errorf("config: genai.base_url is required")
	}

	if c.Chunker.MaxTokens < 1 {
		return fmt.Errorf("config: chunker.max_tokens must be >= 1, got %d", c.Chunker.MaxTokens)
	}

	if c.Upload.MaxSizeBytes < 1 {
		return fmt.Errorf("config: upload.max_size_bytes must be >= 1, got %d", c.Upload.MaxSizeBytes)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.ChunkConcurrency < 1 {
		return fmt.Errorf("config: worker.chunk_concurrency must be >= 1, got %d", c.Worker.ChunkConcurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

package config

import "time"

// Default value constants.
const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "leaselens"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "leaselens-workers"

	DefaultMinIOEndpoint  = "localhost:9000"
	DefaultDocumentBucket = "lease-documents"
	DefaultTextBucket     = "lease-texts"

	DefaultMilvusAddr = "localhost:19530"

	DefaultSearchBackend = "memory"
	DefaultCorpusPath    = "data/statutes.json"
	DefaultSearchTopK    = 3

	DefaultChunkMaxTokens = 6000

	DefaultUploadMaxSize = int64(32 << 20) // 32 MiB

	DefaultKeyStorePath = "data/pii_keys.db"

	DefaultWorkerConcurrency = 4

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields already set by the caller are left unchanged so that explicit
// configuration always wins.  It must be called after unmarshalling raw config
// data and before Validate().
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = time.Hour
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "leaselens"
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.DocumentBucket == "" {
		cfg.MinIO.DocumentBucket = DefaultDocumentBucket
	}
	if cfg.MinIO.TextBucket == "" {
		cfg.MinIO.TextBucket = DefaultTextBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = time.Hour
	}

	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = "statute_sections"
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultSearchTopK
	}

	if cfg.Search.Backend == "" {
		cfg.Search.Backend = DefaultSearchBackend
	}
	if cfg.Search.CorpusPath == "" {
		cfg.Search.CorpusPath = DefaultCorpusPath
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = DefaultSearchTopK
	}
	if cfg.Search.CacheTTL == 0 {
		cfg.Search.CacheTTL = 10 * time.Minute
	}

	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 60 * time.Second
	}
	if cfg.GenAI.MaxRetries == 0 {
		cfg.GenAI.MaxRetries = 2
	}

	if cfg.Redaction.KeyStorePath == "" {
		cfg.Redaction.KeyStorePath = DefaultKeyStorePath
	}

	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = DefaultChunkMaxTokens
	}

	if cfg.Pipeline.LockTTL == 0 {
		cfg.Pipeline.LockTTL = 30 * time.Minute
	}

	if cfg.Upload.MaxSizeBytes == 0 {
		cfg.Upload.MaxSizeBytes = DefaultUploadMaxSize
	}

	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.ChunkConcurrency == 0 {
		cfg.Worker.ChunkConcurrency = 1
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 5 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Wiki     WikiConfig     `mapstructure:"wiki"     validate:"required"`
	Archive  ArchiveConfig  `mapstructure:"archive"  validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// WikiConfig contains the MediaWiki API endpoint settings.
type WikiConfig struct {
	APIURL    string `mapstructure:"api_url"    validate:"required,url"`
	UserAgent string `mapstructure:"user_agent" validate:"required"`
}

// ArchiveConfig contains the memento aggregator endpoint settings.
type ArchiveConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// WorkerConfig contains the queue and worker pool settings.
type WorkerConfig struct {
	// AnalyzeConcurrency bounds how many analyze jobs run at once.
	// Mementos within one job are always tried sequentially.
	AnalyzeConcurrency int `mapstructure:"analyze_concurrency" validate:"required,gt=0"`

	// AnalyzeQueueSize is the buffer size of the analyze job queue.
	AnalyzeQueueSize int `mapstructure:"analyze_queue_size" validate:"required,gt=0"`

	// WriteQueueSize is the buffer size of the write-back job queue.
	WriteQueueSize int `mapstructure:"write_queue_size" validate:"required,gt=0"`
}

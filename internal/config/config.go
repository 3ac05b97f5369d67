package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// BaseURL is the public address of this API, used as the expected
	// audience of client bearer tokens.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// QueueConfig contains the settings for the external push work queue and
// the callback surface it targets.
type QueueConfig struct {
	// EnqueueURL is the work queue endpoint that accepts task submissions.
	EnqueueURL string `mapstructure:"enqueue_url" validate:"required,url"`

	// TaskHandlerURL is the callback endpoint the queue invokes with each
	// task payload once a worker picks it up.
	TaskHandlerURL string `mapstructure:"task_handler_url" validate:"required,url"`

	// SplitHandlerURL is the callback endpoint for the single work-split
	// task enqueued at job creation.
	SplitHandlerURL string `mapstructure:"split_handler_url" validate:"required,url"`

	// ServiceAccount is the identity attached to every dispatched task.
	ServiceAccount string `mapstructure:"service_account" validate:"required"`

	// SigningKey signs the identity token carried by each dispatch call.
	SigningKey string `mapstructure:"signing_key" validate:"required,min=32"`

	// DispatchParallelism bounds concurrent enqueues within one shard.
	DispatchParallelism int `mapstructure:"dispatch_parallelism" validate:"required,gt=0"`

	// RequestTimeoutSeconds bounds each enqueue HTTP call.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}

package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Provider    ProviderConfig    `mapstructure:"provider"    validate:"required"`
	Entitlement EntitlementConfig `mapstructure:"entitlement"`
	Render      RenderConfig      `mapstructure:"render"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// AdminKey protects the operator endpoints that grant credits after a
	// confirmed payment. Requests must present it in the X-Admin-Key header.
	AdminKey string `mapstructure:"admin_key" validate:"required,min=16"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory account store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// ProviderConfig contains settings for the remote animation provider.
type ProviderConfig struct {
	// APIToken authenticates requests against the predictions API.
	APIToken string `mapstructure:"api_token" validate:"required"`

	// Endpoint is the predictions endpoint new jobs are submitted to.
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`

	// Model is the primary model version used for render submissions.
	Model string `mapstructure:"model" validate:"required"`

	// FallbackModel, when set, is tried once if the provider reports its
	// balance exhausted for the primary model.
	FallbackModel string `mapstructure:"fallback_model"`

	// PollIntervalSeconds is the fixed interval between job status polls.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`

	// DefaultPrompt is used when a render request carries no prompt.
	DefaultPrompt string `mapstructure:"default_prompt" validate:"required"`

	// Optional passthrough knobs for the model input payload.
	Resolution string `mapstructure:"resolution" validate:"omitempty,oneof=480p 720p 1080p"`
	Duration   int    `mapstructure:"duration"   validate:"omitempty,gt=0"`
	Seed       int    `mapstructure:"seed"`
}

// EntitlementConfig contains settings for the entitlement ledger.
type EntitlementConfig struct {
	// FreeQuota is the number of renders each account may consume for free.
	FreeQuota int `mapstructure:"free_quota" validate:"gte=0"`
}

// RenderConfig contains settings for render orchestration.
type RenderConfig struct {
	// PollTimeoutSeconds bounds the poll phase of one provider job.
	PollTimeoutSeconds int `mapstructure:"poll_timeout_seconds" validate:"required,gt=0"`

	// FetchTimeoutSeconds bounds one artifact download. It is deliberately
	// separate from the poll budget: large videos legitimately take longer
	// to download than to poll for.
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds" validate:"required,gt=0"`

	// MaxConcurrent caps in-flight provider jobs across the whole process.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`

	// WorkerCount is the number of goroutines draining the render job queue.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// QueueSize is the buffer size of the render job queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// TempDir is where fetched artifacts are staged for delivery.
	TempDir string `mapstructure:"temp_dir" validate:"required"`
}

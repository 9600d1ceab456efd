package domain

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	Reload() error
	Validate() error
}

// RecordExtractor flattens every document of one subject into its record
type RecordExtractor interface {
	Extract(bundle *SubjectBundle) FlatRecord
}

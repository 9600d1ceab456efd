package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mci-report-consolidator/internal/domain"
)

// EnvPrefix prefixes every environment variable read by the manager.
const EnvPrefix = "MCI"

var _ domain.ConfigManager = (*Manager)(nil)

// Manager loads configuration with Viper from defaults, an optional config
// file, MCI_* environment variables and bound command line flags.
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// Option customizes a Manager.
type Option func(*Manager)

// WithViper uses an existing Viper instance, typically one that command
// line flags were bound to.
func WithViper(v *viper.Viper) Option {
	return func(m *Manager) {
		if v != nil {
			m.v = v
		}
	}
}

// WithConfigFile reads the given file instead of searching for one.
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.configFile = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{v: viper.New()}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v
	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("mci-consolidate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mci-consolidate"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// The config file is optional; defaults, env and flags are enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	normalize(config)

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	v.SetDefault("input.dirs", []string{})

	v.SetDefault("output.prefix", "mci_output")
	v.SetDefault("output.format", domain.OutputFormatBoth)
	v.SetDefault("output.blank_field_indicator", ".")

	v.SetDefault("reference.data_dictionary", "./mci_data_dict.txt")
	v.SetDefault("reference.methylation_v11", "")

	v.SetDefault("canonicalize.variant_fields", domain.DefaultVariantFields)
	v.SetDefault("canonicalize.methylation_fields", domain.DefaultMethylationFields)
	v.SetDefault("canonicalize.signature_cache_size", 1024)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.db_path", "mci_audit.db")
	v.SetDefault("audit.print_frequencies", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.filename", "")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
}

// normalize trims list entries and lower-cases enumerations. "excel" is
// accepted as an alias of csv.
func normalize(c *domain.Config) {
	c.Input.Dirs = splitList(c.Input.Dirs)
	c.Canonicalize.VariantFields = splitList(c.Canonicalize.VariantFields)
	c.Canonicalize.MethylationFields = splitList(c.Canonicalize.MethylationFields)

	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "excel" {
		c.Output.Format = domain.OutputFormatCSV
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))
}

// splitList flattens comma separated entries and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// GetConfig returns the loaded configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// ConfigFileUsed returns the path of the config file read, or "".
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads configuration from all sources
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if len(config.Input.Dirs) == 0 {
		return domain.NewValidationError("input.dirs", "at least one input directory is required", config.Input.Dirs)
	}

	if strings.TrimSpace(config.Output.Prefix) == "" {
		return domain.NewValidationError("output.prefix", "output prefix is required", config.Output.Prefix)
	}

	validFormats := map[string]bool{
		domain.OutputFormatJSON: true, domain.OutputFormatCSV: true, domain.OutputFormatBoth: true,
	}
	if !validFormats[config.Output.Format] {
		return domain.NewValidationError("output.format", "must be one of json, csv, both", config.Output.Format)
	}

	if config.Canonicalize.SignatureCacheSize <= 0 {
		return domain.NewValidationError("canonicalize.signature_cache_size", "must be positive", config.Canonicalize.SignatureCacheSize)
	}

	if config.Audit.Enabled && config.Audit.DBPath == "" {
		return domain.NewValidationError("audit.db_path", "required when audit is enabled", config.Audit.DBPath)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[config.Logging.Level] {
		return domain.NewValidationError("logging.level", "invalid log level", config.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		return domain.NewValidationError("logging.format", "must be json or text", config.Logging.Format)
	}

	switch config.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if config.Logging.Filename == "" {
			return domain.NewValidationError("logging.filename", "required when logging to a file", config.Logging.Filename)
		}
	default:
		return domain.NewValidationError("logging.output", "must be stdout, stderr or file", config.Logging.Output)
	}

	return nil
}

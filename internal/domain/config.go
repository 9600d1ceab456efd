package domain

// Config represents the main application configuration
type Config struct {
	Input        InputConfig        `mapstructure:"input"`
	Output       OutputConfig       `mapstructure:"output"`
	Reference    ReferenceConfig    `mapstructure:"reference"`
	Canonicalize CanonicalizeConfig `mapstructure:"canonicalize"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// InputConfig lists the directories scanned for report documents
type InputConfig struct {
	Dirs []string `mapstructure:"dirs"`
}

// OutputConfig represents dataset writer configuration
type OutputConfig struct {
	Prefix              string `mapstructure:"prefix"`
	Format              string `mapstructure:"format"`
	BlankFieldIndicator string `mapstructure:"blank_field_indicator"`
}

// Output formats
const (
	OutputFormatJSON = "json"
	OutputFormatCSV  = "csv"
	OutputFormatBoth = "both"
)

// WantsJSON reports whether a JSON dataset should be written.
func (o OutputConfig) WantsJSON() bool {
	return o.Format == OutputFormatJSON || o.Format == OutputFormatBoth
}

// WantsCSV reports whether CSV datasets should be written.
func (o OutputConfig) WantsCSV() bool {
	return o.Format == OutputFormatCSV || o.Format == OutputFormatBoth
}

// ReferenceConfig points at the read-only lookup files
type ReferenceConfig struct {
	DataDictionary string `mapstructure:"data_dictionary"`
	MethylationV11 string `mapstructure:"methylation_v11"`
}

// CanonicalizeConfig names the fields rewritten by the two cohort-wide passes
type CanonicalizeConfig struct {
	VariantFields      []string `mapstructure:"variant_fields"`
	MethylationFields  []string `mapstructure:"methylation_fields"`
	SignatureCacheSize int      `mapstructure:"signature_cache_size"`
}

// AuditConfig represents the optional SQLite audit log
type AuditConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	DBPath           string `mapstructure:"db_path"`
	PrintFrequencies bool   `mapstructure:"print_frequencies"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultVariantFields are the tumor/normal fields holding ';'-joined variants.
var DefaultVariantFields = []string{
	"TN_Germline_Path",
	"TN_Germline_LikelyPath",
	"TN_Germline_VUS",
	"TN_Somatic_Tier1",
	"TN_Somatic_Tier2",
	"TN_Somatic_Tier3",
}

// DefaultMethylationFields are the single-label methylation hierarchy fields.
var DefaultMethylationFields = []string{
	"Methylation_Superfamily",
	"Methylation_Family",
	"Methylation_Class",
	"Methylation_Subclass",
}

// Package cli wires the mci-consolidate command line onto the pipeline.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mci-report-consolidator/internal/config"
	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/internal/logging"
	"github.com/mci-report-consolidator/internal/pipeline"
)

// Version is set at build time.
var Version = "dev"

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"input-json-dirs":       "input.dirs",
	"output-prefix":         "output.prefix",
	"output-type":           "output.format",
	"blank-field-indicator": "output.blank_field_indicator",
	"data-dict-reference":   "reference.data_dictionary",
	"methylation-reference": "reference.methylation_v11",
	"audit-db":              "audit.db_path",
	"print-frequencies":     "audit.print_frequencies",
	"log-level":             "logging.level",
	"log-format":            "logging.format",
}

// NewRootCmd builds an isolated command tree with its own Viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "mci-consolidate",
		Short: "Consolidate MCI clinical report JSON files into one dataset",
		Long: `mci-consolidate reads registry, tumor/normal, methylation and fusion
report documents from one or more directories, keeps the best document per
subject and report type, flattens them into one record per subject,
harmonizes variant and methylation class spellings across the cohort and
writes the dataset as JSON and/or CSV.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("audit-db") {
				v.Set("audit.enabled", true)
			}
			return runConsolidate(cmd, v, cfgFile)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./mci-consolidate.yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")

	f := root.Flags()
	f.StringSlice("input-json-dirs", nil, "comma separated directories containing report JSON files")
	f.String("output-prefix", "", "path prefix of the output files")
	f.String("output-type", "", "output format: json, csv or both")
	f.String("blank-field-indicator", "", "placeholder for fields present but blank")
	f.String("data-dict-reference", "", "tab separated data dictionary file")
	f.String("methylation-reference", "", "CSV mapping v11 methylation codes to display strings")
	f.String("audit-db", "", "SQLite audit database; enables auditing")
	f.Bool("print-frequencies", false, "print methylation label frequencies and variant rewrites")

	for flag, key := range flagKeys {
		fl := f.Lookup(flag)
		if fl == nil {
			fl = pf.Lookup(flag)
		}
		// Lookup cannot fail for the flags declared above.
		_ = v.BindPFlag(key, fl)
	}

	root.AddCommand(newAuditCmd())
	return root
}

func runConsolidate(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	m, err := config.NewManager(config.WithViper(v), config.WithConfigFile(cfgFile))
	if err != nil {
		return domain.NewPipelineError(domain.ErrConfig, "failed to load configuration", cfgFile, err)
	}
	if err := m.Validate(); err != nil {
		return domain.NewPipelineError(domain.ErrConfig, "invalid configuration", m.ConfigFileUsed(), err)
	}
	cfg := m.GetConfig()

	logger, closer := logging.New(cfg.Logging)
	defer closer.Close()

	logger.WithField("version", Version).WithField("config_file", m.ConfigFileUsed()).Info("Starting mci-consolidate")

	p, err := pipeline.New(cfg, logger, pipeline.WithSummaryOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pipeline.Describe(result))
	for _, path := range result.Outputs {
		fmt.Fprintf(cmd.OutOrStdout(), "written: %s\n", path)
	}
	return nil
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

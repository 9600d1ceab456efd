package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mci-report-consolidator/internal/audit"
	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/internal/logging"
)

func newAuditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit database",
	}

	var dbPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write every recorded run as JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dbPath); err != nil {
				return domain.NewPipelineError(domain.ErrConfig, "audit database not found", dbPath, err)
			}
			level, _ := cmd.Flags().GetString("log-level")
			logger, closer := logging.New(domain.LoggingConfig{Level: level, Output: logging.OutputStderr})
			defer closer.Close()

			store, err := audit.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return domain.NewPipelineError(domain.ErrConfig, "failed to open audit database", dbPath, err)
			}
			defer store.Close()

			if err := store.ExportJSON(cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("failed to export audit database: %w", err)
			}
			return nil
		},
	}
	exportCmd.Flags().StringVar(&dbPath, "audit-db", "mci_audit.db", "SQLite audit database")

	auditCmd.AddCommand(exportCmd)
	return auditCmd
}

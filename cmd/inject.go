package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/injector"
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Process pending injections into delivered payloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		batchSize, _ := cmd.Flags().GetInt("batch")
		vulnFilter, _ := cmd.Flags().GetString("vuln-type")

		store, err := database.NewStore(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		proc := injector.NewProcessor(store, cfg.Injector, log)
		result, err := proc.ProcessBatch(cmd.Context(), batchSize, vulnFilter)
		if err != nil {
			return err
		}

		color.Green("Processed: %d\n", result.Processed)
		if result.Skipped > 0 {
			color.Yellow("Skipped:   %d\n", result.Skipped)
		}
		if result.Errors > 0 {
			color.Red("Errors:    %d\n", result.Errors)
		}
		for _, d := range result.Details {
			fmt.Printf("  %-10s %-20s %s\n", d.Status, d.VulnType, d.Token)
		}
		return nil
	},
}

func init() {
	injectCmd.Flags().Int("batch", 0, "batch size (0 uses configured default)")
	injectCmd.Flags().String("vuln-type", "", "only process injections for this vulnerability class")
	rootCmd.AddCommand(injectCmd)
}

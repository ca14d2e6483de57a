package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forcetrace/forcetrace/internal/correlation"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/scanner"
	"github.com/forcetrace/forcetrace/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan <domain>",
	Short: "Scan a Salesforce domain and issue injection probes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := args[0]
		scanType, _ := cmd.Flags().GetString("type")
		sessionID, _ := cmd.Flags().GetString("session")

		store, err := database.NewStore(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		registry := correlation.NewRegistry(store)
		sc := scanner.New(store, registry, cfg.Scanner, log)

		color.Cyan("Scanning %s ...\n\n", domain)

		result, err := sc.Scan(cmd.Context(), domain, scanType, sessionID)
		if err != nil {
			return err
		}

		color.White("Instance:   %s\n", result.SalesforceType)
		color.White("Endpoints:  %d\n", result.Endpoints)
		if result.Critical > 0 {
			color.Red("Critical:   %d\n", result.Critical)
		} else {
			color.White("Critical:   0\n")
		}
		if result.High > 0 {
			color.Yellow("High:       %d\n", result.High)
		} else {
			color.White("High:       0\n")
		}
		color.White("Probes:     %d\n\n", result.Injections)

		logs, err := store.ListLogs(cmd.Context(), result.TargetID, 0)
		if err == nil {
			for _, entry := range logs {
				switch entry.Level {
				case types.LogError:
					color.Red("  %s\n", entry.Message)
				case types.LogWarn:
					color.Yellow("  %s\n", entry.Message)
				case types.LogSuccess:
					color.Green("  %s\n", entry.Message)
				default:
					fmt.Printf("  %s\n", entry.Message)
				}
			}
		}

		color.Cyan("\nTarget ID: %s\n", result.TargetID)
		color.Cyan("Session:   %s\n", result.SessionID)
		return nil
	},
}

func init() {
	scanCmd.Flags().String("type", "full", "scan type (full, quick)")
	scanCmd.Flags().String("session", "", "session id to group related scans")
	rootCmd.AddCommand(scanCmd)
}

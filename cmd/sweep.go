package cmd

import (
	"encoding/json"
	"fmt"

	"notebook_server_go/metrics"
	"notebook_server_go/services"

	"github.com/spf13/cobra"
)

func sweepCommand(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove uploaded files that no folder or image refers to",
		Long: `Sweep scans the upload directory for gallery files without an image row
and notes directories no folder refers to, and removes those older than
maintenance.orphan_grace. Use --dry-run to only list them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, files, err := a.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			defer files.Close()

			sweeper := services.NewSweepService(store, files, a.settings.Maintenance.OrphanGrace, metrics.NewNop(), a.log)
			report, err := sweeper.Sweep(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode sweep report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list orphans without removing them")
	return cmd
}

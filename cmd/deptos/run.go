package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rsilvagit/deptos/internal/pipeline"
)

func runCmd() *cobra.Command {
	var (
		dryRun  bool
		sources []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scrape and delivery cycle",
		Long: `Fetch every configured source, mark unseen listings as seen, notify each
active user of the matching ones (at most per_source_cap per source) and keep
the rest queued. Does nothing during quiet hours.

With --dry-run deliveries are printed instead of sent. The stores are still
updated, so point --data-dir somewhere disposable when experimenting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{dryRun: dryRun, sources: sources})
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if rep.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "Horario de silencio: ciclo omitido.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), runSummary(rep))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print deliveries instead of sending them")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "limit the cycle to these sources (repeatable)")
	return cmd
}

// runSummary prints the cycle counts. Notifications are the successful
// sends summed over all users.
func runSummary(rep pipeline.Report) string {
	sent := 0
	for _, n := range rep.Delivered {
		sent += n
	}
	return fmt.Sprintf("Nuevos: %d, seleccionados: %d, notificaciones: %d, en cola: %d",
		rep.New, rep.Selected, sent, rep.Queued)
}

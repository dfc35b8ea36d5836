package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rsilvagit/deptos/internal/archive"
	"github.com/rsilvagit/deptos/internal/model"
	"github.com/rsilvagit/deptos/internal/output"
)

func analyzeCmd() *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize archived listings per source",
		Long: `Print price, fee and room statistics of the listings archived in PostgreSQL,
to help tune criteria when nothing matches. Requires postgres.dsn.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("analyze needs postgres.dsn (or DATABASE_URL)")
			}

			arch, err := archive.Open(cmd.Context(), cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer arch.Close()

			stats, err := arch.Stats(cmd.Context(), time.Now().Add(-since))
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hay avisos archivados en el período.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FUENTE\tAVISOS\tCOMPLETOS\tMIN\tMEDIANA\tPROMEDIO\tMAX\tEXPENSAS PROM.\tAMBIENTES")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\t$%s\t$%s\t$%s\t$%s\t$%s\t%s\n",
					s.Source, s.Listings, s.Complete,
					output.FormatNumber(model.Int(s.MinPrice)),
					output.FormatNumber(model.Int(s.MedianPrice)),
					output.FormatNumber(model.Int(s.AvgPrice)),
					output.FormatNumber(model.Int(s.MaxPrice)),
					output.FormatNumber(model.Int(s.AvgExpensas)),
					roomsHistogram(s.RoomsCounter))
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 30*24*time.Hour, "only listings first seen within this window")
	return cmd
}

// roomsHistogram renders counts as "1:4 2:10 3:7".
func roomsHistogram(counts map[int]int) string {
	rooms := make([]int, 0, len(counts))
	for r := range counts {
		rooms = append(rooms, r)
	}
	sort.Ints(rooms)

	parts := make([]string, 0, len(rooms))
	for _, r := range rooms {
		parts = append(parts, fmt.Sprintf("%d:%d", r, counts[r]))
	}
	return strings.Join(parts, " ")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		dryRun  bool
		sources []string
	)

	cmd := &cobra.Command{
		Use:   "search <user-id>",
		Short: "Search now for one user, ignoring quiet hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{dryRun: dryRun, sources: sources})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.runner.Search(cmd.Context(), args[0])
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print deliveries instead of sending them")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "limit the search to these sources (repeatable)")
	return cmd
}

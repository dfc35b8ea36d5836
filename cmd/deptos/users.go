package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rsilvagit/deptos/internal/filter"
	"github.com/rsilvagit/deptos/internal/store"
)

func userConfigs() (*store.UserConfigs, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewUserConfigs(cfg.DataDir, filter.Defaults()), nil
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List registered users and their criteria",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := userConfigs()
			if err != nil {
				return err
			}
			all, err := users.All()
			if err != nil {
				return err
			}
			ids, err := users.IDs()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hay usuarios registrados.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n  %s\n", id,
					strings.ReplaceAll(all[id].Describe(), "\n", "\n  "))
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <user-id>",
		Short: "Register a user with the default criteria",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := userConfigs()
			if err != nil {
				return err
			}
			if err := users.Register(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Usuario %s registrado.\n", args[0])
			return nil
		},
	})
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change a user's criteria",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <user-id>",
		Short: "Print the effective criteria of a user as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := userConfigs()
			if err != nil {
				return err
			}
			c, err := users.Get(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <user-id> <key> <value>",
		Short: "Change one criteria key",
		Long: "Change one criteria key. Keys: " + strings.Join(store.Keys(), ", ") + `.
Use "none" to remove min_price or max_rooms.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := userConfigs()
			if err != nil {
				return err
			}
			c, err := users.Set(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuración guardada.\n%s\n", c.Describe())
			return nil
		},
	})
	return cmd
}

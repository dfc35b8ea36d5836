package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rsilvagit/deptos/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API used by the chat bot",
		Long: `Serve cycles, searches and user configuration over HTTP:

  GET  /healthz
  POST /runs
  GET  /users
  GET  /users/{id}/config
  PUT  /users/{id}/config
  POST /users/{id}/search`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			h := api.NewHandler(a.runner, a.users)
			return api.Serve(cmd.Context(), cfg.API.Addr, h.Router(), 30*time.Second)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("api.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

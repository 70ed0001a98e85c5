package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guttosm/tradeexport/config"
	"github.com/guttosm/tradeexport/internal/app"
	"github.com/guttosm/tradeexport/internal/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP export API",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(); err != nil {
				return usageError{err}
			}

			logger.L().Info().Str("driver", config.AppConfig.Database.Driver).Msg("starting API server")
			router, cleanup, err := app.InitializeApp()
			if err != nil {
				return err
			}

			server := startServer(router, config.AppConfig.Server.Port)
			return gracefulShutdown(cmd.Context(), server, cleanup)
		},
	}
	cmd.Flags().String("port", "", "port for the API server (default SERVER_PORT)")
	_ = viper.BindPFlag("SERVER_PORT", cmd.Flags().Lookup("port"))
	return cmd
}

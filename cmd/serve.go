package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vscltools/faceitfinder/internal/server"
	"github.com/vscltools/faceitfinder/internal/utils"
	"github.com/vscltools/faceitfinder/pkg/messaging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the message API used by the browser side",
	Long: `Starts an HTTP server answering POST /api/message with the getFaceitProfile,
getDotabuffProfile, getCache, saveCache, clearCache and resolvePlayer actions.
Prometheus metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			viper.Set("server.listen", listen)
		}

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		d := messaging.NewDispatcher(messaging.Config{
			Resolver: a.resolver,
			Cache:    a.cache,
			Clients:  a.clients,
			Log:      utils.Log,
			Metrics:  a.metrics,
		})

		srv := server.New(d, a.metrics, utils.Log, a.cfg.Username, a.cfg.Password)
		return srv.Start(cmd.Context(), a.cfg.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default from config, 127.0.0.1:8787)")
}

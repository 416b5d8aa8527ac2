package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/panyam/adaptiva/config"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for uploads, cleaning, insights, chart validation,
rendering, suggestions and saved charts.

Example:
  adaptiva serve --addr :9090
  ADAPTIVA_ENV=dev adaptiva serve -c adaptiva.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Address = serveAddr
		}
		level, _ := config.ParseLevel(cfg.Server.LogLevel)
		slog.SetDefault(services.NewLogger(os.Stdout, cfg.IsDev(), level))
		return web.Serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.address or ADAPTIVA_WEB_PORT)")
	AddCommand(serveCmd)
}

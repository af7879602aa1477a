package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/autodev/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the HTTP API: agent health, run status, activity log and result, plus
POST /api/runs to start a run and a websocket at /api/events streaming run events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		addr := a.cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.monitor.Start(ctx)
		defer a.orchestrator.Cancel()

		srv := server.New(server.Config{
			Pipeline:   a.orchestrator,
			Health:     a.monitor,
			Registry:   a.registry,
			Log:        a.log,
			Bus:        a.bus,
			RunContext: ctx,
		})
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

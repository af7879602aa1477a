package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/autodev/internal/server"
	"github.com/aristath/autodev/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the terminal dashboard (default)",
	Long: `Open the terminal dashboard: agent health, pipeline progress and the activity log.
Press n to enter a story and start a run, x to cancel the run in progress.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// Flags are registered on both root and dashboard
	withAPI, _ := cmd.Flags().GetBool("api")
	logFile, _ := cmd.Flags().GetString("log-file")

	// The alt screen owns the terminal, so process logs go to a file or nowhere
	if logFile != "" {
		f, err := tea.LogToFile(logFile, "autodev")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
		defer log.SetOutput(os.Stderr)
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.monitor.Start(ctx)

	if withAPI {
		srv := server.New(server.Config{
			Pipeline:   a.orchestrator,
			Health:     a.monitor,
			Registry:   a.registry,
			Log:        a.log,
			Bus:        a.bus,
			RunContext: ctx,
		})
		go func() {
			if err := srv.ListenAndServe(ctx, a.cfg.Server.Addr); err != nil {
				log.Printf("ERROR: API server: %v", err)
			}
		}()
	}

	model := tui.New(tui.Options{
		Pipeline:   a.orchestrator,
		Health:     a.monitor,
		Registry:   a.registry,
		Log:        a.log,
		Bus:        a.bus,
		Stages:     a.orchestrator.Stages(),
		RunContext: ctx,
	})

	// Run Bubble Tea in a goroutine so the signal can be handled here
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal exit (user pressed 'q')
		a.orchestrator.Cancel()
		if err != nil && ctx.Err() == nil {
			return err
		}
	case <-ctx.Done():
		// Restore default signal handling so a second Ctrl+C force-exits
		stop()

		log.Println("Shutdown signal received, cleaning up...")
		a.orchestrator.Cancel()
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
	return nil
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, dashboardCmd} {
		c.Flags().Bool("api", false, "Also serve the HTTP API on server.addr")
		c.Flags().String("log-file", "", "Write process logs to this file while the dashboard runs")
	}
}

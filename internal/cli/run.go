package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/autodev/internal/events"
	"github.com/aristath/autodev/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one story through the pipeline without the dashboard",
	Long: `Run one story through all five agents and print the aggregated result as JSON.

Activity log lines stream to stderr while the run is in progress. Acceptance
criteria are given one per line, either inline or from a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		criteria, _ := cmd.Flags().GetString("criteria")
		criteriaFile, _ := cmd.Flags().GetString("criteria-file")
		waitHealthy, _ := cmd.Flags().GetDuration("wait-healthy")

		if criteriaFile != "" {
			data, err := os.ReadFile(criteriaFile)
			if err != nil {
				return fmt.Errorf("reading criteria: %w", err)
			}
			criteria = string(data)
		}

		input := orchestrator.StoryInput{
			Title:       title,
			Description: description,
			Criteria:    criteria,
		}
		if err := input.Validate(); err != nil {
			return err
		}

		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if waitHealthy > 0 {
			cmd.PrintErrf("Waiting up to %s for agents...\n", waitHealthy)
			if err := a.monitor.WaitHealthy(ctx, waitHealthy); err != nil {
				return fmt.Errorf("agents not ready: %w", err)
			}
		}

		logs := a.bus.Subscribe(events.TopicLog, 64)
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			for ev := range logs {
				if e, ok := ev.(events.LogAppendedEvent); ok {
					cmd.PrintErrf("%s %s\n", e.Timestamp.Format("15:04:05"), e.Message)
				}
			}
		}()

		result, runErr := a.orchestrator.RunPipeline(ctx, input)
		a.bus.Unsubscribe(logs)
		<-printed

		if runErr != nil {
			return fmt.Errorf("run failed: %w", runErr)
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	runCmd.Flags().StringP("title", "t", "", "Story title (required)")
	runCmd.Flags().StringP("description", "d", "", "Story description")
	runCmd.Flags().String("criteria", "", "Acceptance criteria, one per line")
	runCmd.Flags().String("criteria-file", "", "Read acceptance criteria from a file")
	runCmd.Flags().Duration("wait-healthy", 0, "Wait up to this long for every agent to be healthy before starting")
	runCmd.MarkFlagsMutuallyExclusive("criteria", "criteria-file")
}

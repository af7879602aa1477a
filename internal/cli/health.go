package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/autodev/internal/agents"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check every agent once and print its status",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		strict, _ := cmd.Flags().GetBool("strict")

		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		statuses := a.monitor.CheckNow(cmd.Context())

		if asJSON {
			data, err := json.MarshalIndent(statuses, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling statuses: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		} else {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tADDRESS\tSTATUS")
			for _, d := range a.registry.Agents() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Address, statuses[d.Name])
			}
			w.Flush()
		}

		if strict {
			healthy := 0
			for _, s := range statuses {
				if s == agents.StatusHealthy {
					healthy++
				}
			}
			if healthy != len(statuses) {
				return fmt.Errorf("%d of %d agents healthy", healthy, len(statuses))
			}
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Bool("json", false, "Print statuses as JSON")
	healthCmd.Flags().Bool("strict", false, "Exit non-zero unless every agent is healthy")
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/forms/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the forms server and its store respond",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		status, err := formsClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		latency := time.Since(start).Round(time.Millisecond)

		out := cmd.OutOrStdout()
		switch {
		case jsonOutput:
			if err := printJSON(out, map[string]any{"status": status, "latency_ms": latency.Milliseconds()}); err != nil {
				return err
			}
		case status == "ok":
			fmt.Fprintf(out, "Health: %s %s\n", ui.RenderPass(status), ui.RenderMuted("("+latency.String()+")"))
		default:
			fmt.Fprintf(out, "Health: %s\n", ui.RenderWarn(status))
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Duration("timeout", 5*time.Second, "give up after this long")
}

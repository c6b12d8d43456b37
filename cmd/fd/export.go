package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/forms/internal/config"
	formsync "github.com/alfredjeanlab/forms/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSONL snapshot of all forms and submissions",
	Long: `Write a JSONL snapshot of all forms and submissions.

Reads the store directly using the server's FORMS_* configuration, so it
works without a running server. Writes to stdout unless -o is given.`,
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		var dest formsync.Destination
		if output == "" || output == "-" {
			dest = formsync.NewWriterDestination("stdout", cmd.OutOrStdout())
		} else {
			dest = formsync.NewFileDestination(output)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		return formsync.NewScheduler(st, []formsync.Destination{dest}, 0, logger).SyncOnce(context.Background())
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

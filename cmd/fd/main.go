package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/forms/internal/client"
	"github.com/alfredjeanlab/forms/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	token      string
	jsonOutput bool
	noColor    bool

	requestTimeout time.Duration

	formsClient client.FormsClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("FORMS_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("FORMS_SERVER"); s != "" {
		return s
	}
	if a := activeRemoteGRPCAddr(); a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("FORMS_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

// skipClient is used as PersistentPreRunE by commands that do not talk to
// a server.
func skipClient(*cobra.Command, []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "fd <command>",
	Short:         "CLI client for the forms service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch transport {
		case "http":
			formsClient = client.NewHTTPClient(httpURL, token, client.WithTimeout(requestTimeout))
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr, token)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			formsClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if formsClient != nil {
			formsClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "request-timeout", 30*time.Second, "per-request timeout for the HTTP transport")

	cobra.OnInitialize(func() {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
	})

	rootCmd.AddGroup(
		&cobra.Group{ID: "forms", Title: "Forms:"},
		&cobra.Group{ID: "submissions", Title: "Submissions:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Forms
	rootCmd.AddCommand(formCmd)

	// Submissions
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(submissionsCmd)
	rootCmd.AddCommand(validateCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			ui.SetColor(!noColor && ui.ShouldUseColorFor(os.Stderr))
			printFieldErrors(os.Stderr, apiErr.Details)
		}
		os.Exit(1)
	}
}

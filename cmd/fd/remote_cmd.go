package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage named forms servers",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <http-url>",
	Short: "Add or replace a named remote",
	Example: `  fd remote add prod https://forms.example.com --grpc forms.example.com:9090 --token $TOKEN --use
  fd remote add local http://localhost:8080 --nats nats://localhost:4222`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: strings.TrimRight(args[1], "/")}
		r.GRPCAddr, _ = cmd.Flags().GetString("grpc")
		r.Token, _ = cmd.Flags().GetString("token")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		use, _ := cmd.Flags().GetBool("use")
		if err := r.validate(); err != nil {
			return err
		}

		var replaced bool
		err := updateRemotes(func(f *remotesFile) error {
			_, replaced = f.Remotes[name]
			f.Remotes[name] = r
			if use || len(f.Remotes) == 1 {
				f.Active = name
			}
			return nil
		})
		if err != nil {
			return err
		}
		verb := "added"
		if replaced {
			verb = "updated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q %s (%s)\n", name, verb, r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a named remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateRemotes(func(f *remotesFile) error {
			if _, err := f.lookup(name); err != nil {
				return err
			}
			delete(f.Remotes, name)
			if f.Active == name {
				f.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", name)
		return nil
	},
}

var remoteRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a remote, keeping it active if it was",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := args[0], args[1]
		err := updateRemotes(func(f *remotesFile) error {
			r, err := f.lookup(from)
			if err != nil {
				return err
			}
			if _, taken := f.Remotes[to]; taken {
				return fmt.Errorf("remote %q already exists", to)
			}
			delete(f.Remotes, from)
			f.Remotes[to] = r
			if f.Active == from {
				f.Active = to
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q renamed to %q\n", from, to)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List remotes; the active one is marked with *",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadRemotes()
		if err != nil {
			return err
		}
		if len(f.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tGRPC\tTOKEN")
		for _, name := range f.names() {
			r := f.Remotes[name]
			marker := "  "
			if name == f.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, r.URL, r.GRPCAddr, maskToken(r.Token, "..."))
		}
		return w.Flush()
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the default for every command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateRemotes(func(f *remotesFile) error {
			if _, err := f.lookup(name); err != nil {
				return err
			}
			f.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", name)
		return nil
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show one remote (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadRemotes()
		if err != nil {
			return err
		}
		name := f.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; pass a name or run 'fd remote use <name>'")
		}
		r, err := f.lookup(name)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if name == f.Active {
			name += " (active)"
		}
		rows := [][2]string{
			{"name", name},
			{"url", r.URL},
			{"grpc_addr", r.GRPCAddr},
			{"token", maskToken(r.Token, strings.Repeat("*", max(len(r.Token)-8, 0)))},
			{"nats_url", r.NATSURL},
		}
		for _, row := range rows {
			if row[1] != "" {
				fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
			}
		}
		return w.Flush()
	},
}

// maskToken keeps the first 8 characters of tok and appends suffix.
func maskToken(tok, suffix string) string {
	if len(tok) <= 8 {
		return tok
	}
	return tok[:8] + suffix
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address (host:port) for --transport grpc")
	remoteAddCmd.Flags().String("token", "", "bearer token sent to the server")
	remoteAddCmd.Flags().String("nats", "", "NATS URL used by watch")
	remoteAddCmd.Flags().Bool("use", false, "make this the active remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteRenameCmd, remoteListCmd, remoteUseCmd, remoteShowCmd)
}

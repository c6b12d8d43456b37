package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/forms/internal/client"
	"github.com/alfredjeanlab/forms/internal/idgen"
	"github.com/alfredjeanlab/forms/internal/model"
)

var formCmd = &cobra.Command{
	Use:     "form",
	Short:   "Create, inspect, replace and delete form definitions",
	GroupID: "forms",
}

var formCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a form from a definition file or --field flags",
	Example: `  fd form create -f signup.yaml
  fd form create --title Signup --field name:text:required --field "color:single_choice::red|blue"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := formRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		form, err := formsClient.CreateForm(context.Background(), req)
		if err != nil {
			return err
		}
		return printForm(cmd.OutOrStdout(), form)
	},
}

var formShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a form definition",
	Args:  formIDArgs(cobra.ExactArgs(1), 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := formsClient.GetForm(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printForm(cmd.OutOrStdout(), form)
	},
}

var formListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List forms in creation order",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		forms, err := formsClient.ListForms(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), forms)
		}
		printFormListTable(cmd.OutOrStdout(), forms)
		return nil
	},
}

var formUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a form's definition, bumping its version",
	Long: `Replace a form's definition, bumping its version.

The new definition replaces the old one entirely. When neither -f nor
--field is given, the current fields are kept and only --title or
--description change.`,
	Args: formIDArgs(cobra.ExactArgs(1), 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := args[0]

		file, _ := cmd.Flags().GetString("file")
		specs, _ := cmd.Flags().GetStringArray("field")

		var req *client.FormRequest
		if file == "" && len(specs) == 0 {
			current, err := formsClient.GetForm(ctx, id)
			if err != nil {
				return err
			}
			req = &client.FormRequest{
				Title:       current.Title,
				Description: current.Description,
				Fields:      current.RawFields(),
			}
			applyFormOverrides(cmd, req)
		} else {
			var err error
			if req, err = formRequestFromFlags(cmd); err != nil {
				return err
			}
		}

		form, err := formsClient.ReplaceForm(ctx, id, req)
		if err != nil {
			return err
		}
		return printForm(cmd.OutOrStdout(), form)
	},
}

var formDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more forms",
	Args:  formIDArgs(cobra.MinimumNArgs(1), -1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := formsClient.DeleteForm(context.Background(), id); err != nil {
				return fmt.Errorf("deleting %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

// formIDArgs wraps base and rejects submission IDs among the first n
// arguments (all of them when n < 0).
func formIDArgs(base cobra.PositionalArgs, n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := base(cmd, args); err != nil {
			return err
		}
		k := n
		if k < 0 || k > len(args) {
			k = len(args)
		}
		for _, id := range args[:k] {
			if idgen.KindOf(id) == idgen.Submission {
				return fmt.Errorf("%s is a submission id, expected a form id", id)
			}
		}
		return nil
	}
}

func printForm(w io.Writer, form *model.FormSchema) error {
	if jsonOutput {
		return printJSON(w, form)
	}
	printFormTable(w, form)
	return nil
}

// formRequestFromFlags builds a request from -f, --field, --title and
// --description. Field flags are appended after any fields from the file.
func formRequestFromFlags(cmd *cobra.Command) (*client.FormRequest, error) {
	file, _ := cmd.Flags().GetString("file")
	specs, _ := cmd.Flags().GetStringArray("field")

	req := &client.FormRequest{}
	if file != "" {
		var err error
		if req, err = readFormFile(file, cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}
	for _, s := range specs {
		f, err := parseFieldFlag(s)
		if err != nil {
			return nil, err
		}
		req.Fields = append(req.Fields, f)
	}
	applyFormOverrides(cmd, req)

	if file == "" && len(specs) == 0 {
		return nil, fmt.Errorf("a definition file (-f) or at least one --field is required")
	}
	return req, nil
}

func applyFormOverrides(cmd *cobra.Command, req *client.FormRequest) {
	if cmd.Flags().Changed("title") {
		req.Title, _ = cmd.Flags().GetString("title")
	}
	if cmd.Flags().Changed("description") {
		req.Description, _ = cmd.Flags().GetString("description")
	}
}

// readFormFile decodes a YAML or JSON form definition. A path of "-"
// reads from stdin.
func readFormFile(path string, stdin io.Reader) (*client.FormRequest, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req client.FormRequest
	if err := yaml.NewDecoder(r).Decode(&req); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%s: empty form definition", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &req, nil
}

// parseFieldFlag parses "label:type[:required[:opt1|opt2...]]". The
// required segment may be empty; any flag spelling the server accepts works.
func parseFieldFlag(s string) (model.RawField, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return model.RawField{}, fmt.Errorf("invalid field %q: expected label:type[:required[:opt1|opt2]]", s)
	}
	f := model.RawField{Label: parts[0], Type: parts[1]}
	if len(parts) > 2 && parts[2] != "" {
		if parts[2] == "required" {
			f.Required = true
		} else {
			f.Required = parts[2]
		}
	}
	if len(parts) > 3 && parts[3] != "" {
		opts := strings.Split(parts[3], "|")
		raw := make([]any, len(opts))
		for i, o := range opts {
			raw[i] = o
		}
		f.Options = raw
	}
	return f, nil
}

func init() {
	for _, c := range []*cobra.Command{formCreateCmd, formUpdateCmd} {
		c.Flags().StringP("file", "f", "", "form definition file (YAML or JSON, - for stdin)")
		c.Flags().StringArray("field", nil, "field as label:type[:required[:opt1|opt2]] (repeatable)")
		c.Flags().String("title", "", "form title (overrides the file)")
		c.Flags().StringP("description", "d", "", "form description (overrides the file)")
	}

	formCmd.AddCommand(formCreateCmd)
	formCmd.AddCommand(formShowCmd)
	formCmd.AddCommand(formListCmd)
	formCmd.AddCommand(formUpdateCmd)
	formCmd.AddCommand(formDeleteCmd)
}

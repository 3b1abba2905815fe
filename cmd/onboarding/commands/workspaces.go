package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emojirades/onboarding/internal/roster"
)

var (
	workspacesOutputFormat string
	workspacesShard        int
)

var workspacesCmd = &cobra.Command{
	Use:   "workspaces [WORKSPACE_ID]",
	Short: "List onboarded workspaces or show one assignment",
	Long: `Inspect shard assignments in list or get mode.

List Mode (no WORKSPACE_ID):
  Displays every assigned workspace as a table or JSONL stream.

Get Mode (with WORKSPACE_ID):
  Displays the assignment of one workspace as pretty-printed JSON.
  Accepts an id prefix (e.g. "T01AB" instead of "T01ABCDEF").

Examples:
  # List all workspaces
  onboarding workspaces

  # List workspaces of shard 2 as JSONL
  onboarding workspaces --shard 2 --output jsonl

  # Show one assignment
  onboarding workspaces T01AB`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkspaces,
}

func init() {
	workspacesCmd.Flags().StringVarP(&workspacesOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	workspacesCmd.Flags().IntVar(&workspacesShard, "shard", -1, "Only list workspaces of this shard")
	rootCmd.AddCommand(workspacesCmd)
}

func runWorkspaces(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)
	ctx := context.Background()

	format, err := roster.ParseOutputFormat(workspacesOutputFormat)
	if err != nil {
		return p.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	cfg, err := loadConfig(p)
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, cfg, p, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	layout := cfg.Layout()

	if len(args) == 1 {
		entry, err := roster.Resolve(ctx, rt.objects, layout, args[0])
		var notFound *roster.NotFoundError
		var ambiguous *roster.AmbiguousError
		switch {
		case errors.As(err, &notFound):
			return p.Error(
				fmt.Sprintf("workspace '%s' not found", args[0]),
				"No shard assignment exists for this workspace.",
				[]string{"List all workspaces:\n  onboarding workspaces"},
			)
		case errors.As(err, &ambiguous):
			return p.Error("ambiguous workspace id", roster.FormatAmbiguousError(ambiguous), nil)
		case err != nil:
			return err
		}

		assignment, err := roster.Assignment(ctx, rt.objects, entry)
		if err != nil {
			return err
		}
		return roster.FormatAssignment(cmd.OutOrStdout(), entry, assignment)
	}

	var filter roster.Filter
	if workspacesShard >= 0 {
		filter.Shard = &workspacesShard
	}

	entries, err := roster.List(ctx, rt.objects, layout, filter)
	if err != nil {
		return err
	}

	if format == roster.OutputFormatJSONL {
		return roster.FormatJSONL(cmd.OutOrStdout(), entries)
	}
	roster.FormatTable(cmd.OutOrStdout(), entries)
	return nil
}

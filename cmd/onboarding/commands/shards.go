package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/emojirades/onboarding/internal/roster"
	"github.com/emojirades/onboarding/internal/shard"
	"github.com/emojirades/onboarding/pkg/workspace"
)

var shardsOutputFormat string

var shardsCmd = &cobra.Command{
	Use:   "shards",
	Short: "Show workspace load per shard",
	Long: `Show how many workspaces each shard serves, how much room is left under
shards.limit, and how many notifications are waiting for the shard worker.

Output Formats:
  default - Human-readable table
  jsonl   - Line-delimited JSON, one shard per line`,
	Args: cobra.NoArgs,
	RunE: runShards,
}

func init() {
	shardsCmd.Flags().StringVarP(&shardsOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(shardsCmd)
}

func runShards(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)
	ctx := context.Background()

	format, err := roster.ParseOutputFormat(shardsOutputFormat)
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

	table, err := shard.Scan(ctx, rt.objects, cfg.Layout())
	if err != nil {
		return err
	}

	queued := make(map[int]int64, len(table))
	for _, l := range table {
		n, err := rt.queue.Len(ctx, workspace.QueueName(cfg.Shards.QueuePrefix, l.Shard))
		if err != nil {
			return err
		}
		queued[l.Shard] = n
	}

	rows := roster.LoadRows(table, cfg.Shards.Limit, queued)
	if format == roster.OutputFormatJSONL {
		return roster.FormatJSONL(cmd.OutOrStdout(), rows)
	}

	roster.FormatLoadTable(cmd.OutOrStdout(), rows)
	p.Info("\n")

	next, err := table.Allocate(cfg.Shards.Limit)
	if errors.Is(err, shard.ErrOversubscribed) {
		p.Warning("All shards are at capacity, new workspaces will be turned away\n")
		return nil
	}
	if err != nil {
		return err
	}
	p.Step("Next workspace will be assigned to shard %d\n", next)

	return nil
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emojirades/onboarding/internal/queue"
	"github.com/emojirades/onboarding/pkg/workspace"
)

var (
	alertsFollow  bool
	alertsTimeout time.Duration
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Consume operator alerts",
	Long: `Consume and print the alerts raised by the service, such as every shard
being oversubscribed. Alerts are removed from shards.alert_queue as they are
printed.

Without --follow the command drains the queue and exits.`,
	Args: cobra.NoArgs,
	RunE: runAlerts,
}

func init() {
	alertsCmd.Flags().BoolVarP(&alertsFollow, "follow", "f", false, "Keep waiting for new alerts until interrupted")
	alertsCmd.Flags().DurationVar(&alertsTimeout, "wait", time.Second, "How long to wait for an alert before giving up (without --follow)")
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(p)
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, cfg, p, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := drainAlerts(ctx, rt.queue, cfg.Shards.AlertQueue, alertsTimeout, alertsFollow, func(a workspace.Alert) {
		p.Warning("%s\n", a.Message)
	})
	if err != nil {
		return err
	}

	if n == 0 {
		p.Success("No alerts\n")
	}
	return nil
}

// drainAlerts receives alerts until the queue stays empty for wait, or until
// ctx is cancelled when follow is set. Returns the number of alerts handled.
func drainAlerts(ctx context.Context, q *queue.RedisQueue, name string, wait time.Duration, follow bool, fn func(workspace.Alert)) (int, error) {
	count := 0
	for {
		body, err := q.Receive(ctx, name, wait)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			if !follow {
				return count, nil
			}
			continue
		case ctx.Err() != nil:
			return count, nil
		case err != nil:
			return count, err
		}

		var alert workspace.Alert
		if err := json.Unmarshal(body, &alert); err != nil {
			alert.Message = string(body)
		}
		fn(alert)
		count++
	}
}

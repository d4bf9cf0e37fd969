package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/viralforge/socmed/platform/messaging"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead-lettered events",
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Republish dead letters to the main exchange",
	Long: `Reads the dead-letter exchange and publishes each letter's original event,
unchanged and with its original id, back to the main exchange. Consumers apply
events idempotently, so subscribers that already handled an event ignore it.`,
	Args: cobra.NoArgs,
	RunE: runDLQReplay,
}

var replayFlags replayOptions

func init() {
	dlqReplayCmd.Flags().StringVarP(&replayFlags.Pattern, "routing-key", "k", "#", "Only replay letters matching this routing-key pattern")
	dlqReplayCmd.Flags().IntVarP(&replayFlags.Limit, "limit", "n", 100, "Maximum number of letters to replay")
	dlqReplayCmd.Flags().DurationVar(&replayFlags.Idle, "idle", 3*time.Second, "Stop after the dead-letter queue stays empty this long")
	dlqReplayCmd.Flags().BoolVar(&replayFlags.DryRun, "dry-run", false, "List letters without republishing or acknowledging them")

	dlqCmd.AddCommand(dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}

type replayOptions struct {
	Pattern string
	Limit   int
	Idle    time.Duration
	DryRun  bool
	// Queue names the durable consumer group on the dead-letter exchange.
	Queue string
}

type replayReport struct {
	Replayed    int
	Listed      int
	Undecodable int
}

func runDLQReplay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	conn, err := connectBus(ctx, cmd, s)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := replayFlags
	report, err := replayDeadLetters(ctx, conn, opts, func(letter messaging.DeadLetter) {
		cmd.Printf("%s  %-16s attempts=%d queue=%s error=%q\n",
			letter.EventID, letter.RoutingKey, letter.Attempts, letter.Queue, letter.ErrorSummary)
	})
	if err != nil {
		return err
	}
	if opts.DryRun {
		cmd.Printf("Listed %d dead letters (dry run)\n", report.Listed)
	} else {
		cmd.Printf("Replayed %d dead letters\n", report.Replayed)
	}
	if report.Undecodable > 0 {
		cmd.Printf("Skipped %d letters whose body is not an event envelope\n", report.Undecodable)
	}
	return nil
}

// replayDeadLetters drains up to opts.Limit letters. A letter is acknowledged
// only after its event reached the main exchange; undecodable letters stay
// queued for inspection.
func replayDeadLetters(ctx context.Context, conn *messaging.ConnectionManager, opts replayOptions, onLetter func(messaging.DeadLetter)) (replayReport, error) {
	var report replayReport
	cfg := conn.Config()
	if opts.Pattern == "" {
		opts.Pattern = "#"
	}
	if opts.Idle <= 0 {
		opts.Idle = 3 * time.Second
	}
	if opts.Queue == "" {
		opts.Queue = "eventctl.dlq-replay"
	}
	dlx := messaging.DeadLetterExchange(cfg.Exchange)
	if err := conn.DeclareExchange(ctx, cfg.Exchange, messaging.ExchangeTopic, cfg.Durable); err != nil {
		return report, err
	}
	if err := conn.DeclareExchange(ctx, dlx, messaging.ExchangeTopic, true); err != nil {
		return report, err
	}
	ch, err := conn.EnsureChannel(ctx)
	if err != nil {
		return report, err
	}
	q, err := ch.Bind(ctx, messaging.Binding{Exchange: dlx, Queue: opts.Queue, Pattern: opts.Pattern})
	if err != nil {
		return report, fmt.Errorf("bind %s: %w", dlx, err)
	}
	defer q.Close()

	publisher := messaging.NewPublisher(conn, "eventctl", nil)
	for opts.Limit <= 0 || report.Listed < opts.Limit {
		fctx, cancel := context.WithTimeout(ctx, opts.Idle)
		d, err := q.Fetch(fctx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return report, nil
		}
		if err != nil {
			return report, err
		}
		letter := messaging.ReadDeadLetter(d)
		report.Listed++
		if onLetter != nil {
			onLetter(letter)
		}
		if opts.DryRun {
			continue
		}
		evt, err := messaging.Decode(letter.Body)
		if err != nil {
			report.Undecodable++
			continue
		}
		if err := publisher.PublishEvent(ctx, evt); err != nil {
			return report, err
		}
		if err := q.Ack(ctx, d); err != nil {
			return report, err
		}
		report.Replayed++
	}
	return report, nil
}

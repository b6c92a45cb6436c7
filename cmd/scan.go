package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/redditbot/internal/scan"
)

// ScanCommand returns the scan command
func ScanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Run a single pass over the board, or over one thread",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Scan and log matches without posting replies",
			},
		},
		ArgsUsage: "[THREAD_ID]",
		Action:    runScan,
	}
}

func runScan(c *cli.Context) error {
	b, err := loadBot(c, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := c.Context
	if err := b.authenticate(ctx); err != nil {
		return err
	}

	if threadID := c.Args().First(); threadID != "" {
		result, err := b.monitor.ScanThread(ctx, threadID)
		if err != nil {
			return fmt.Errorf("failed to scan thread %s: %w", threadID, err)
		}
		printResult(fmt.Sprintf("Thread %s", threadID), result)
		return nil
	}

	report, err := b.monitor.Poll(ctx)
	if err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}
	fmt.Printf("Poll %s: %d thread(s), %d scanned, %d failed\n",
		report.PollID, report.Threads, report.Scanned, report.Failed)
	printResult("Total", report.Result)
	return nil
}

func printResult(label string, r scan.Result) {
	fmt.Printf("%s: visited=%d matched=%d replied=%d already_answered=%d self=%d more=%d reply_failures=%d\n",
		label, r.Visited, r.Matched, r.Replied, r.AlreadyAnswered, r.SelfAuthored, r.Truncated, r.ReplyFailures)
}

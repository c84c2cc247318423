package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/worker"
)

var (
	batchWorkers int
	batchJSON    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify a file of claims, one per line",
	Long: `Reads claims from a file (one per line, '#' comments and blank lines
skipped) and verifies them concurrently. Output order matches input order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()

		orch, err := buildOrchestrator(cfg, logger)
		if err != nil {
			return err
		}
		defer orch.Metrics().Stop()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		workers := batchWorkers
		if workers <= 0 {
			workers = cfg.Concurrency.BatchWorkers
		}
		runner := worker.NewBatchRunner(orch, workers)

		results, err := runner.RunFile(ctx, args[0])
		if err != nil {
			return err
		}

		if batchJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, res := range results {
				if res.Err != nil {
					_ = enc.Encode(map[string]string{"content": res.Content, "error": res.Err.Error()})
					continue
				}
				_ = enc.Encode(res.Record)
			}
		} else {
			printBatchSummary(results)
		}

		snap := orch.Metrics().Snapshot()
		logger.Info("batch complete",
			"claims", len(results),
			"success_rate", snap.SuccessRate,
			"hallucination_rate", snap.HallucinationRate)
		return nil
	},
}

func printBatchSummary(results []worker.BatchResult) {
	var accepted, rejected, rolledBack, errored int
	for _, res := range results {
		outcome := "error"
		detail := ""
		switch {
		case res.Err != nil:
			errored++
			detail = res.Err.Error()
		case res.Record.Outcome == model.OutcomeAccepted:
			accepted++
			outcome = string(res.Record.Outcome)
		case res.Record.Outcome == model.OutcomeRolledBack:
			rolledBack++
			outcome = string(res.Record.Outcome)
		case res.Record.Outcome == model.OutcomeErrored:
			errored++
			outcome = string(res.Record.Outcome)
			detail = res.Record.Detail
		default:
			rejected++
			outcome = string(res.Record.Outcome)
			detail = res.Record.Detail
		}
		fmt.Printf("%-10s  %s\n", outcome, truncate(res.Content, 90))
		if detail != "" && verbose {
			fmt.Printf("            %s\n", detail)
		}
	}
	fmt.Printf("\n%d accepted, %d rejected, %d rolled back, %d errored (of %d)\n",
		accepted, rejected, rolledBack, errored, len(results))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent verifications (default: concurrency.batch_workers)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "emit one JSON record per line")
	rootCmd.AddCommand(batchCmd)
}

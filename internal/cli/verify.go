package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veracitylabs/veracity/internal/model"
)

// ErrNotAccepted signals a non-accepted verification outcome. It carries the
// exit status up through cobra so deferred cleanup still runs; main maps it
// to exit code 1 without printing an error.
var ErrNotAccepted = errors.New("content not accepted")

// ExitCode maps the error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

var verifyJSON bool

var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a single claim against the configured knowledge sources",
	Args:  cobra.MinimumNArgs(1),
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

		content := strings.Join(args, " ")
		record, err := orch.Verify(ctx, content, nil)
		if err != nil {
			return err
		}

		if verifyJSON {
			if err := json.NewEncoder(os.Stdout).Encode(record); err != nil {
				return err
			}
		} else {
			printRecord(record)
		}
		if record.Outcome != model.OutcomeAccepted {
			return ErrNotAccepted
		}
		return nil
	},
}

func printRecord(record *model.VerificationRecord) {
	fmt.Printf("Request:    %s\n", record.RequestID)
	fmt.Printf("Outcome:    %s\n", record.Outcome)
	fmt.Printf("Confidence: %.4f\n", record.Confidence)
	if record.HallucinationDetected {
		fmt.Println("Hallucination detected")
	}
	if record.Consensus != nil {
		fmt.Printf("Consensus:  verdict=%s agreement=%.3f responded=%d\n",
			record.Consensus.Verdict, record.Consensus.AgreementRatio, record.Consensus.Responded)
	}
	if record.Detail != "" {
		fmt.Printf("Detail:     %s\n", record.Detail)
	}
	fmt.Printf("Evidence:   %d excerpt(s)\n", len(record.Evidence))
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "emit the full verification record as JSON")
	rootCmd.AddCommand(verifyCmd)
}

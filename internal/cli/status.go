package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/veracitylabs/veracity/internal/metrics"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quality metrics from a running gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(statusAddr + "/v1/status")
		if err != nil {
			return fmt.Errorf("reach gateway: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("gateway returned %s", resp.Status)
		}

		var snap metrics.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}

		fmt.Printf("Verifications: %d (window %d)\n", snap.TotalVerifications, snap.WindowCount)
		fmt.Printf("Success rate:       %.4f\n", snap.SuccessRate)
		fmt.Printf("Hallucination rate: %.4f\n", snap.HallucinationRate)
		fmt.Printf("Consensus rate:     %.4f\n", snap.ConsensusRate)
		if snap.Dropped > 0 {
			fmt.Printf("Dropped observations: %d\n", snap.Dropped)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8391", "gateway base URL")
	rootCmd.AddCommand(statusCmd)
}

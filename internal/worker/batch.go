package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/veracitylabs/veracity/internal/model"
)

// Verifier is the slice of the orchestrator the batch runner needs.
type Verifier interface {
	Verify(ctx context.Context, content string, reqCtx map[string]string) (*model.VerificationRecord, error)
}

// BatchResult pairs one claim with its verification outcome.
type BatchResult struct {
	Content string
	Record  *model.VerificationRecord
	Err     error
}

// BatchRunner verifies many claims concurrently with bounded parallelism.
// Result order matches input order regardless of completion order.
type BatchRunner struct {
	verifier    Verifier
	concurrency int
}

// NewBatchRunner creates a runner with the given worker count.
func NewBatchRunner(verifier Verifier, concurrency int) *BatchRunner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchRunner{verifier: verifier, concurrency: concurrency}
}

// Run verifies all claims and returns one result per claim.
func (b *BatchRunner) Run(ctx context.Context, claims []string) []BatchResult {
	results := make([]BatchResult, len(claims))
	if len(claims) == 0 {
		return results
	}

	semaphore := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for i, claim := range claims {
		wg.Add(1)
		go func(idx int, content string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = BatchResult{Content: content, Err: ctx.Err()}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			record, err := b.verifier.Verify(ctx, content, nil)
			results[idx] = BatchResult{Content: content, Record: record, Err: err}
		}(i, claim)
	}
	wg.Wait()

	return results
}

// RunFile reads claims from a file (one per line) and verifies them.
func (b *BatchRunner) RunFile(ctx context.Context, filePath string) ([]BatchResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	return b.Run(ctx, claims), nil
}

// ReadClaimsFromFile reads one claim per line, skipping blanks, comments and
// duplicates.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			claims = append(claims, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}

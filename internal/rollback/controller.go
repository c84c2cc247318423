// Package rollback reverts the partial side effects of a verification
// request that fails or is rejected after effects were applied.
package rollback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Compensation undoes one registered side effect.
type Compensation struct {
	Name string
	Undo func() error
}

// Result reports a rollback invocation. Repeat invocations for the same
// request return the original result with AlreadyDone set.
type Result struct {
	RequestID   string
	Reason      string
	Reverted    int
	AlreadyDone bool
	Err         error
	CompletedAt time.Time
}

// Controller tracks per-request compensation journals and applies them in
// reverse registration order. A request's rollback is idempotent: the second
// invocation is a no-op returning the first invocation's result.
type Controller struct {
	mu       sync.Mutex
	journals map[string][]Compensation
	done     map[string]Result
	logger   *slog.Logger
}

// NewController creates an empty controller.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		journals: make(map[string][]Compensation),
		done:     make(map[string]Result),
		logger:   logger,
	}
}

// Register appends a compensation to the request's journal. Registering
// after the request was rolled back is rejected: the journal is sealed.
func (c *Controller) Register(requestID, name string, undo func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, sealed := c.done[requestID]; sealed {
		return fmt.Errorf("request %s already rolled back", requestID)
	}
	c.journals[requestID] = append(c.journals[requestID], Compensation{Name: name, Undo: undo})
	return nil
}

// HasEffects reports whether the request has unreverted side effects.
func (c *Controller) HasEffects(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.journals[requestID]) > 0
}

// Rollback reverts the effects attributable to requestID. It never panics;
// a failing compensation is captured in Result.Err for the caller to
// translate into a fatal incident.
func (c *Controller) Rollback(requestID, reason string) Result {
	c.mu.Lock()
	if prior, ok := c.done[requestID]; ok {
		c.mu.Unlock()
		prior.AlreadyDone = true
		return prior
	}
	journal := c.journals[requestID]
	delete(c.journals, requestID)
	c.mu.Unlock()

	result := Result{RequestID: requestID, Reason: reason}

	// Reverse order: the most recent effect is undone first.
	for i := len(journal) - 1; i >= 0; i-- {
		comp := journal[i]
		if err := c.undo(comp); err != nil {
			result.Err = fmt.Errorf("compensation %s: %w", comp.Name, err)
			c.logger.Error("rollback compensation failed",
				"request_id", requestID, "compensation", comp.Name, "error", err)
			break
		}
		result.Reverted++
	}
	result.CompletedAt = time.Now().UTC()

	c.mu.Lock()
	c.done[requestID] = result
	c.mu.Unlock()

	c.logger.Info("rollback completed",
		"request_id", requestID, "reason", reason,
		"reverted", result.Reverted, "failed", result.Err != nil)
	return result
}

// Discard drops a request's journal once it terminates without needing
// rollback, so the controller does not grow with every accepted record.
func (c *Controller) Discard(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.journals, requestID)
}

func (c *Controller) undo(comp Compensation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return comp.Undo()
}

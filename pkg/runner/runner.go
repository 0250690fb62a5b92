// Package runner drives one transfer task per target through a bounded pool
// of execution slots, aggregating per-target outcomes. A failure in one task
// never cancels, pauses or otherwise affects any other task.
package runner

import (
	"context"
	"fmt"

	"example.com/convoy/pkg/logger"
	"example.com/convoy/pkg/models"
	"example.com/convoy/pkg/utils"
)

const (
	MinConcurrency     = 1
	MaxConcurrency     = 10
	DefaultConcurrency = 2
)

// Task is the ephemeral unit of work for one target. Owned exclusively by
// its slot for its lifetime.
type Task struct {
	Target     models.Target
	LocalPath  string
	RemotePath string
}

// TaskFunc executes one task to a terminal outcome.
type TaskFunc func(ctx context.Context, task Task) models.TransferOutcome

// ClampConcurrency forces n into the valid 1..10 range, applying the default
// when unset.
func ClampConcurrency(n int) int {
	if n == 0 {
		return DefaultConcurrency
	}
	if n < MinConcurrency {
		return MinConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// Run dispatches tasks first-come-first-served over maxConcurrency slots and
// blocks until every task has a terminal outcome. The result has exactly one
// outcome per task, in task order.
func Run(ctx context.Context, tasks []Task, maxConcurrency int, fn TaskFunc) []models.TransferOutcome {
	n := ClampConcurrency(maxConcurrency)
	outcomes := make([]models.TransferOutcome, len(tasks))

	wp := utils.NewWorkerPool(uint(n))
	for i, task := range tasks {
		wp.Execute(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Logger.Error("task panicked", "host", task.Target.Host, "panic", r)
					outcomes[i] = models.TransferOutcome{
						Target: task.Target,
						Err:    fmt.Errorf("task panicked: %v", r),
					}
				}
			}()
			outcomes[i] = fn(ctx, task)
		})
	}
	wp.Wait()
	return outcomes
}

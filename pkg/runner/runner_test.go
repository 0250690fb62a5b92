package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"example.com/convoy/pkg/credential"
	"example.com/convoy/pkg/models"
	"github.com/stretchr/testify/assert"
)

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			Target:     models.Target{Host: fmt.Sprintf("10.0.0.%d", i+1)},
			LocalPath:  "/build/images.tar.gz",
			RemotePath: "/tmp/images.tar.gz",
		}
	}
	return tasks
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, ClampConcurrency(0))
	assert.Equal(t, MinConcurrency, ClampConcurrency(-3))
	assert.Equal(t, 5, ClampConcurrency(5))
	assert.Equal(t, MaxConcurrency, ClampConcurrency(64))
}

func TestRunBoundsConcurrency(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 10} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			var inFlight, peak atomic.Int64

			fn := func(ctx context.Context, task Task) models.TransferOutcome {
				cur := inFlight.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return models.TransferOutcome{Target: task.Target, Success: true}
			}

			outcomes := Run(context.Background(), makeTasks(20), limit, fn)
			assert.Len(t, outcomes, 20)
			assert.LessOrEqual(t, peak.Load(), int64(limit))
		})
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	tasks := makeTasks(10)
	failing := map[string]bool{"10.0.0.2": true, "10.0.0.5": true, "10.0.0.9": true}

	fn := func(ctx context.Context, task Task) models.TransferOutcome {
		if failing[task.Target.Host] {
			return models.TransferOutcome{
				Target: task.Target,
				Err:    &credential.AuthExhaustedError{Host: task.Target.Host, Methods: []string{"password"}},
			}
		}
		return models.TransferOutcome{Target: task.Target, Success: true, BytesSent: 128}
	}

	outcomes := Run(context.Background(), tasks, 4, fn)
	assert.Len(t, outcomes, 10)

	succeeded, failed := 0, 0
	for i, out := range outcomes {
		assert.Equal(t, tasks[i].Target.Host, out.Target.Host)
		if out.Success {
			succeeded++
			assert.NoError(t, out.Err)
			assert.Equal(t, int64(128), out.BytesSent)
		} else {
			failed++
			var authErr *credential.AuthExhaustedError
			assert.ErrorAs(t, out.Err, &authErr)
		}
	}
	assert.Equal(t, 7, succeeded)
	assert.Equal(t, 3, failed)
}

func TestRunRecoversPanics(t *testing.T) {
	fn := func(ctx context.Context, task Task) models.TransferOutcome {
		if task.Target.Host == "10.0.0.2" {
			panic("boom")
		}
		return models.TransferOutcome{Target: task.Target, Success: true}
	}

	outcomes := Run(context.Background(), makeTasks(3), 2, fn)
	assert.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.ErrorContains(t, outcomes[1].Err, "boom")
	assert.True(t, outcomes[2].Success)
}

func TestRunNoTasks(t *testing.T) {
	outcomes := Run(context.Background(), nil, 2, func(ctx context.Context, task Task) models.TransferOutcome {
		t.Fatal("should not be called")
		return models.TransferOutcome{}
	})
	assert.Empty(t, outcomes)
}

package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	ilogger "codeagent-wrapper/internal/logger"
	utils "codeagent-wrapper/internal/utils"

	"golang.org/x/sync/semaphore"
)

// RunTaskFn executes one task attempt and returns its result.
type RunTaskFn func(task TaskSpec, timeout time.Duration) TaskResult

// ExecuteConcurrent runs the waves with the configured worker ceiling.
func ExecuteConcurrent(layers [][]TaskSpec, timeout time.Duration, maxWorkers int) []TaskResult {
	return ExecuteConcurrentWithContext(context.Background(), layers, timeout, maxWorkers, DefaultRunTaskFn)
}

// ExecuteConcurrentWithContext executes waves strictly in order. Within a
// wave, tasks run concurrently up to maxWorkers in-flight; the next queued
// task starts as soon as a slot frees. A task whose dependency failed or was
// skipped is marked skipped without dispatch, transitively through later
// waves. Every task reaches a terminal state before this returns: a single
// failure never aborts the batch.
func ExecuteConcurrentWithContext(parentCtx context.Context, layers [][]TaskSpec, timeout time.Duration, maxWorkers int, runTaskFn RunTaskFn) []TaskResult {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	if runTaskFn == nil {
		runTaskFn = DefaultRunTaskFn
	}

	total := 0
	for _, layer := range layers {
		total += len(layer)
	}

	limit := maxWorkers
	if limit <= 0 {
		limit = total // unbounded
	}
	if total > 0 {
		limit = utils.Min(limit, total)
	}
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))

	results := make([]TaskResult, 0, total)
	terminal := make(map[string]string, total)

	for _, layer := range layers {
		layerResults := make([]TaskResult, len(layer))
		var wg sync.WaitGroup

		for i, task := range layer {
			// Once the batch is cancelled every undispatched task skips
			// with the cancellation reason, even when a dependency
			// already failed or skipped.
			if parentCtx.Err() != nil {
				layerResults[i] = skippedResult(task, SkipReasonCancelled)
				continue
			}
			if reason, blocked := blockedByDependency(task, terminal); blocked {
				layerResults[i] = skippedResult(task, reason)
				continue
			}

			wg.Add(1)
			go func(i int, task TaskSpec) {
				defer wg.Done()
				if err := sem.Acquire(parentCtx, 1); err != nil {
					layerResults[i] = skippedResult(task, SkipReasonCancelled)
					return
				}
				defer sem.Release(1)
				layerResults[i] = runWithRetry(parentCtx, task, timeout, runTaskFn)
			}(i, task)
		}

		// Wave k+1 never starts dispatching until wave k has fully drained.
		wg.Wait()

		for _, res := range layerResults {
			terminal[res.TaskID] = res.Status
			results = append(results, res)
		}
	}

	return results
}

// runWithRetry runs a task attempt and retries exactly once, immediately and
// with identical content, when the first attempt fails. Cancellation and
// dependency skips are never retried.
func runWithRetry(ctx context.Context, task TaskSpec, timeout time.Duration, runTaskFn RunTaskFn) TaskResult {
	logPath := ""
	if task.ID != "" {
		if taskLogger, err := ilogger.NewLoggerWithSuffix(task.ID); err == nil {
			defer taskLogger.Close()
			ctx = withTaskLogger(ctx, taskLogger)
			logPath = taskLogger.Path()
		}
	}
	task.Context = ctx

	res := runTaskFn(task, timeout)
	res.Attempts = 1

	if res.Status == StatusFailed && ctx.Err() == nil {
		logWarnCtx(ctx, fmt.Sprintf("Task %q failed (%s); retrying once", task.ID, utils.Truncate(res.Error, 200)))
		retry := runTaskFn(task, timeout)
		retry.Attempts = 2
		res = retry
		res.Attempts = 2
	}

	if res.LogPath == "" {
		res.LogPath = logPath
	}
	return res
}

func blockedByDependency(task TaskSpec, terminal map[string]string) (string, bool) {
	for _, dep := range task.Dependencies {
		switch terminal[dep] {
		case StatusSucceeded:
		case StatusSkipped:
			return fmt.Sprintf("dependency %q was skipped", dep), true
		default:
			return fmt.Sprintf("dependency %q failed", dep), true
		}
	}
	return "", false
}

func skippedResult(task TaskSpec, reason string) TaskResult {
	return TaskResult{
		TaskID:     task.ID,
		Status:     StatusSkipped,
		SkipReason: reason,
	}
}

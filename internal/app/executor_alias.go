package wrapper

import (
	"context"
	"time"

	executor "codeagent-wrapper/internal/executor"
)

// defaultRunTaskFn is the default implementation of runTaskFn (exposed for test reset).
func defaultRunTaskFn(task TaskSpec, timeout time.Duration) TaskResult {
	return executor.DefaultRunTaskFn(task, timeout)
}

var runTaskFn = defaultRunTaskFn

func topologicalSort(tasks []TaskSpec) ([][]TaskSpec, error) {
	return executor.TopologicalSort(tasks)
}

func executeConcurrentWithContext(parentCtx context.Context, layers [][]TaskSpec, timeout time.Duration, maxWorkers int) []TaskResult {
	return executor.ExecuteConcurrentWithContext(parentCtx, layers, timeout, maxWorkers, executor.RunTaskFn(runTaskFn))
}

func generateFinalOutputWithMode(results []TaskResult, summaryOnly bool) string {
	return executor.GenerateFinalOutputWithMode(results, summaryOnly)
}

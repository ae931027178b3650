package executor

import "context"

// Task status values. A task is created pending, becomes ready when its
// dependencies succeed, runs, and terminates in exactly one of the last three.
const (
	StatusPending   = "pending"
	StatusReady     = "ready"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Skip reasons recorded on skipped results.
const (
	SkipReasonDependency = "dependency failed"
	SkipReasonCancelled  = "cancelled"
)

// ParallelConfig is the parsed form of a --parallel task document.
type ParallelConfig struct {
	Tasks         []TaskSpec `json:"tasks"`
	GlobalBackend string     `json:"backend,omitempty"`
}

// TaskSpec describes an individual task entry in a batch.
type TaskSpec struct {
	ID              string          `json:"id"`
	Task            string          `json:"task"`
	WorkDir         string          `json:"workdir,omitempty"`
	Dependencies    []string        `json:"dependencies,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	Backend         string          `json:"backend,omitempty"`
	Model           string          `json:"model,omitempty"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
	SkipPermissions bool            `json:"skip_permissions,omitempty"`
	Mode            string          `json:"-"`
	UseStdin        bool            `json:"-"`
	Context         context.Context `json:"-"`
}

// TaskResult captures the terminal outcome of a task (last attempt wins).
type TaskResult struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	Message    string `json:"message"`
	SessionID  string `json:"session_id,omitempty"`
	Error      string `json:"error,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
}

// BatchReport aggregates one result per task plus summary counts. The
// scheduler always drains every task to a terminal state, so the report
// enumerates the full batch.
type BatchReport struct {
	Results   []TaskResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
}

// NewBatchReport tallies summary counts over a result set.
func NewBatchReport(results []TaskResult) BatchReport {
	report := BatchReport{Results: results}
	for _, res := range results {
		switch res.Status {
		case StatusSucceeded:
			report.Succeeded++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	return report
}

package executor

import (
	"fmt"
	"strings"

	utils "codeagent-wrapper/internal/utils"
)

const errorDetailMaxLen = 300

// GenerateFinalOutput renders the full batch report with per-task output.
func GenerateFinalOutput(results []TaskResult) string {
	return GenerateFinalOutputWithMode(results, false)
}

// GenerateFinalOutputWithMode renders the batch report. In summary mode each
// task collapses to a single line; otherwise the full backend message is
// included. Every task appears exactly once regardless of its terminal
// status.
func GenerateFinalOutputWithMode(results []TaskResult, summaryOnly bool) string {
	report := NewBatchReport(results)
	var sb strings.Builder

	for _, res := range report.Results {
		if summaryOnly {
			sb.WriteString(summaryLine(res))
			sb.WriteByte('\n')
			continue
		}
		writeTaskSection(&sb, res)
	}

	fmt.Fprintf(&sb, "\n=== Summary ===\n%d total: %d succeeded, %d failed, %d skipped\n",
		len(report.Results), report.Succeeded, report.Failed, report.Skipped)
	return sb.String()
}

func writeTaskSection(sb *strings.Builder, res TaskResult) {
	fmt.Fprintf(sb, "=== Task: %s ===\n", res.TaskID)
	switch res.Status {
	case StatusSucceeded:
		fmt.Fprintf(sb, "Status: succeeded (attempts: %d)\n", res.Attempts)
		if msg := strings.TrimSpace(utils.SanitizeOutput(res.Message)); msg != "" {
			sb.WriteString(msg)
			sb.WriteByte('\n')
		}
		if res.SessionID != "" {
			fmt.Fprintf(sb, "SESSION_ID: %s\n", res.SessionID)
		}
	case StatusSkipped:
		sb.WriteString("Status: skipped\n")
		if res.SkipReason != "" {
			fmt.Fprintf(sb, "Reason: %s\n", res.SkipReason)
		}
	default:
		fmt.Fprintf(sb, "Status: failed (exit %d, attempts: %d)\n", res.ExitCode, res.Attempts)
		if res.Error != "" {
			fmt.Fprintf(sb, "Error: %s\n", res.Error)
		}
		if detail := extractErrorDetail(res.Message, errorDetailMaxLen); detail != "" {
			fmt.Fprintf(sb, "Detail: %s\n", detail)
		}
		if res.LogPath != "" {
			fmt.Fprintf(sb, "Log: %s\n", res.LogPath)
		}
	}
	sb.WriteByte('\n')
}

func summaryLine(res TaskResult) string {
	switch res.Status {
	case StatusSucceeded:
		line := fmt.Sprintf("[ok]   %s", res.TaskID)
		if key := extractKeyOutput(res.Message); key != "" {
			line += ": " + key
		}
		// The session handle must survive summary mode or the batch
		// output cannot be resumed from.
		if res.SessionID != "" {
			line += " (SESSION_ID: " + res.SessionID + ")"
		}
		return line
	case StatusSkipped:
		return fmt.Sprintf("[skip] %s: %s", res.TaskID, res.SkipReason)
	default:
		detail := extractErrorDetail(res.Message, 100)
		if detail == "" {
			detail = utils.SafeTruncate(res.Error, 100)
		}
		return fmt.Sprintf("[fail] %s (exit %d): %s", res.TaskID, res.ExitCode, detail)
	}
}

// extractKeyOutput picks the last non-empty line of a task message as its
// one-line summary.
func extractKeyOutput(message string) string {
	lines := strings.Split(message, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return utils.SafeTruncate(line, 100)
	}
	return ""
}

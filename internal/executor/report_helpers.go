package executor

import (
	"strings"

	utils "codeagent-wrapper/internal/utils"
)

// extractErrorDetail pulls the most diagnostic lines out of a failed task's
// output. Stack-trace frames after the first are collapsed; if nothing looks
// like an error the last few lines are used instead.
func extractErrorDetail(message string, maxLen int) string {
	if message == "" || maxLen <= 0 {
		return ""
	}

	lines := strings.Split(message, "\n")
	var errorLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)

		if strings.HasPrefix(line, "at ") && strings.Contains(line, "(") {
			if len(errorLines) > 0 && strings.HasPrefix(strings.ToLower(errorLines[len(errorLines)-1]), "at ") {
				continue
			}
		}

		if strings.Contains(lower, "error") ||
			strings.Contains(lower, "fail") ||
			strings.Contains(lower, "exception") ||
			strings.Contains(lower, "assert") ||
			strings.Contains(lower, "expected") ||
			strings.Contains(lower, "timeout") ||
			strings.Contains(lower, "not found") ||
			strings.Contains(lower, "cannot") ||
			strings.Contains(lower, "undefined") ||
			strings.HasPrefix(line, "FAIL") {
			errorLines = append(errorLines, line)
		}
	}

	if len(errorLines) == 0 {
		start := len(lines) - 5
		if start < 0 {
			start = 0
		}
		for _, line := range lines[start:] {
			line = strings.TrimSpace(line)
			if line != "" {
				errorLines = append(errorLines, line)
			}
		}
	}

	result := strings.Join(errorLines, " | ")
	return utils.SafeTruncate(result, maxLen)
}

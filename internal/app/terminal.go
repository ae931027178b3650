package wrapper

import (
	"io"
	"os"

	executor "codeagent-wrapper/internal/executor"
)

var stdinReader io.Reader = os.Stdin

// defaultIsTerminal reports whether stdin is an interactive terminal.
func defaultIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}

var isTerminal = defaultIsTerminal

// readPipedTask returns stdin content when input is piped, else "".
func readPipedTask() (string, error) {
	if isTerminal() {
		return "", nil
	}
	data, err := io.ReadAll(stdinReader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func shouldUseStdin(taskText string, piped bool) bool {
	return executor.ShouldUseStdin(taskText, piped)
}

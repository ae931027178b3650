//go:build windows
// +build windows

package executor

// Windows has no SIGTERM; fall back to a hard kill.
func sendTermSignal(proc processHandle) error {
	if proc == nil {
		return nil
	}
	return proc.Kill()
}

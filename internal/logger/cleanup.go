package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Hooks replaced in tests via testhooks.go.
var (
	processRunningCheck = isProcessRunning
	processStartTimeFn  = getProcessStartTime
	removeLogFileFn     = os.Remove
	globLogFiles        = filepath.Glob
	fileStatFn          = os.Lstat
	evalSymlinksFn      = filepath.EvalSymlinks
)

// CleanupStats summarizes one stale-log sweep.
type CleanupStats struct {
	Scanned      int
	Deleted      int
	Kept         int
	Errors       int
	DeletedFiles []string
	KeptFiles    []string
}

// staleLogAge is the age past which a log with an unverifiable owner process
// is considered orphaned.
const staleLogAge = 7 * 24 * time.Hour

// cleanupOldLogs removes log files left behind by dead wrapper processes.
// Logs whose PID is still alive (and not reused) are kept, as are files that
// fail the safety checks.
func cleanupOldLogs() (CleanupStats, error) {
	var stats CleanupStats

	tempDir := os.TempDir()
	pattern := filepath.Join(tempDir, PrimaryLogPrefix()+"-*.log")
	files, err := globLogFiles(pattern)
	if err != nil {
		return stats, fmt.Errorf("failed to scan log directory: %w", err)
	}

	var errs []error
	for _, file := range files {
		stats.Scanned++

		pid, ok := parsePIDFromLog(file)
		if !ok {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, file)
			continue
		}

		if processRunningCheck(pid) && !isPIDReused(file, pid) {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, file)
			continue
		}

		if unsafe, reason := isUnsafeFile(file, tempDir); unsafe {
			logWarn(fmt.Sprintf("Skipping log cleanup for %s: %s", file, reason))
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, file)
			continue
		}

		if err := removeLogFileFn(file); err != nil {
			stats.Errors++
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", file, err))
			continue
		}
		stats.Deleted++
		stats.DeletedFiles = append(stats.DeletedFiles, file)
	}

	return stats, errors.Join(errs...)
}

// CleanupOldLogs removes stale log files from previous runs.
func CleanupOldLogs() (CleanupStats, error) { return cleanupOldLogs() }

// parsePIDFromLog extracts the owning PID from a log file name of the form
// codeagent-wrapper-<pid>[-suffix].log.
func parsePIDFromLog(path string) (int, bool) {
	base := filepath.Base(path)

	prefix := PrimaryLogPrefix() + "-"
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ".log") {
		return 0, false
	}

	middle := strings.TrimSuffix(strings.TrimPrefix(base, prefix), ".log")
	if idx := strings.IndexByte(middle, '-'); idx >= 0 {
		middle = middle[:idx]
	}
	if middle == "" {
		return 0, false
	}

	pid, err := strconv.Atoi(middle)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// isPIDReused reports whether the live process with this pid started after
// the log file was written, meaning the pid was recycled and the original
// owner is gone.
func isPIDReused(path string, pid int) bool {
	info, err := fileStatFn(path)
	if err != nil {
		return false
	}

	start := processStartTimeFn(pid)
	if start.IsZero() {
		// Cannot verify ownership; only reclaim clearly ancient files.
		return time.Since(info.ModTime()) > staleLogAge
	}
	return start.After(info.ModTime())
}

// isUnsafeFile rejects deletion targets that are symlinks or resolve outside
// the temp directory.
func isUnsafeFile(path, tempDir string) (bool, string) {
	info, err := fileStatFn(path)
	if err != nil {
		return true, "cannot stat file"
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return true, "refusing to delete symlink"
	}

	resolved, err := evalSymlinksFn(path)
	if err != nil {
		return true, "cannot resolve path"
	}
	resolved = filepath.Clean(resolved)

	absTemp, err := filepath.Abs(tempDir)
	if err != nil {
		return true, "cannot resolve tempDir"
	}
	if real, err := filepath.EvalSymlinks(absTemp); err == nil {
		absTemp = real
	}

	rel, err := filepath.Rel(absTemp, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return true, "file is outside tempDir"
	}
	return false, ""
}

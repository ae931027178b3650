package wrapper

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const startupCleanupTimeout = 5 * time.Second

var cleanupWG sync.WaitGroup

// runCleanupMode performs an explicit, synchronous log cleanup and reports
// the stats on stderr.
func runCleanupMode() int {
	stats, err := cleanupOldLogs()
	fmt.Fprintf(os.Stderr, "Log cleanup: scanned=%d deleted=%d kept=%d errors=%d\n",
		stats.Scanned, stats.Deleted, stats.Kept, stats.Errors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

// scheduleStartupCleanup removes stale logs from dead processes in the
// background so startup latency is unaffected.
func scheduleStartupCleanup() {
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		if stats, err := cleanupOldLogs(); err != nil {
			logWarn(fmt.Sprintf("Startup log cleanup: %v", err))
		} else if stats.Deleted > 0 {
			logInfo(fmt.Sprintf("Startup log cleanup: deleted %d stale log(s)", stats.Deleted))
		}
	}()
}

// runCleanupHook waits briefly for the startup cleanup to finish so a short
// run does not leak the goroutine mid-delete.
func runCleanupHook() {
	done := make(chan struct{})
	go func() {
		cleanupWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(startupCleanupTimeout):
	}
}

package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	logWriterBufferSize = 32 * 1024
	recentErrorsLimit   = 100
	maxLogSuffixLen     = 64
)

// Logger writes structured log lines to a per-process file under the temp
// directory. Writes are serialized; zerolog emits one line per event so
// concurrent callers never interleave.
type Logger struct {
	path string

	mu     sync.Mutex
	file   *os.File
	bw     *bufio.Writer
	zl     zerolog.Logger
	closed bool

	errMu  sync.Mutex
	recent []string
}

// NewLogger creates the process log file codeagent-wrapper-<pid>.log.
func NewLogger() (*Logger, error) {
	return newLogger("")
}

// NewLoggerWithSuffix creates codeagent-wrapper-<pid>-<suffix>.log, used for
// per-task logs in parallel mode.
func NewLoggerWithSuffix(suffix string) (*Logger, error) {
	return newLogger(SanitizeLogSuffix(suffix))
}

func newLogger(suffix string) (*Logger, error) {
	name := fmt.Sprintf("%s-%d.log", PrimaryLogPrefix(), os.Getpid())
	if suffix != "" {
		name = fmt.Sprintf("%s-%d-%s.log", PrimaryLogPrefix(), os.Getpid(), suffix)
	}
	path := filepath.Join(os.TempDir(), name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G302 G304 -- private per-process log under TMPDIR
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	l := &Logger{path: path, file: file, bw: bufio.NewWriterSize(file, logWriterBufferSize)}
	l.zl = zerolog.New(lockedWriter{l}).With().Timestamp().Logger()
	return l, nil
}

// lockedWriter serializes zerolog event writes onto the buffered file.
type lockedWriter struct{ l *Logger }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	if w.l.closed || w.l.bw == nil {
		return len(p), nil
	}
	return w.l.bw.Write(p)
}

func (l *Logger) Debug(msg string) {
	if l == nil {
		return
	}
	l.zl.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	if l == nil {
		return
	}
	l.zl.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	if l == nil {
		return
	}
	l.zl.Warn().Msg(msg)
	l.recordError(msg)
}

func (l *Logger) Error(msg string) {
	if l == nil {
		return
	}
	l.zl.Error().Msg(msg)
	l.recordError(msg)
}

// recordError caches warn/error messages for the failure-exit digest.
func (l *Logger) recordError(msg string) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	l.recent = append(l.recent, msg)
	if len(l.recent) > recentErrorsLimit {
		l.recent = l.recent[len(l.recent)-recentErrorsLimit:]
	}
}

// ExtractRecentErrors returns up to n of the most recent error entries, oldest
// first. Used on the failure exit path to surface a digest on stderr.
func (l *Logger) ExtractRecentErrors(n int) []string {
	if l == nil || n <= 0 {
		return nil
	}
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if len(l.recent) == 0 {
		return nil
	}
	start := 0
	if len(l.recent) > n {
		start = len(l.recent) - n
	}
	out := make([]string, len(l.recent)-start)
	copy(out, l.recent[start:])
	return out
}

// Flush drains buffered log lines to disk.
func (l *Logger) Flush() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.bw == nil {
		return
	}
	_ = l.bw.Flush()
	_ = l.file.Sync()
}

// Close flushes and closes the log file. The file is kept on disk for
// debugging; RemoveLogFile deletes it explicitly.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.bw != nil {
		_ = l.bw.Flush()
	}
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Path returns the log file path.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RemoveLogFile deletes the log file from disk.
func (l *Logger) RemoveLogFile() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// sanitizeLogSuffix reduces a raw suffix (typically a task id) to a safe file
// name fragment. Distinct inputs map to distinct outputs: unsafe runes are
// replaced one-for-one, never collapsed.
func sanitizeLogSuffix(raw string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
		if sb.Len() >= maxLogSuffixLen {
			break
		}
	}
	return sb.String()
}

func SanitizeLogSuffix(raw string) string { return sanitizeLogSuffix(raw) }

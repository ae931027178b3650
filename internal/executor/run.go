package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	backend "codeagent-wrapper/internal/backend"
	config "codeagent-wrapper/internal/config"
	ilogger "codeagent-wrapper/internal/logger"
	parser "codeagent-wrapper/internal/parser"
	session "codeagent-wrapper/internal/session"
)

// Logger and Backend are re-exported for callers and test hooks.
type Logger = ilogger.Logger
type Backend = backend.Backend

const (
	defaultWorkdir    = "."
	codexLogLineLimit = 2000
	exitCodeTimeout   = 124
)

var (
	selectBackendFn = backend.Select
	commandContext  = exec.CommandContext

	// Seconds granted between SIGTERM and SIGKILL when a task is
	// cancelled or times out.
	forceKillDelay atomic.Int32

	newCommandRunner = func(ctx context.Context, name string, args ...string) commandRunner {
		return &realCmd{cmd: commandContext(ctx, name, args...)}
	}

	sessions = session.NewRegistry()
)

func init() {
	forceKillDelay.Store(5)
}

// Sessions exposes the process-wide session registry.
func Sessions() *session.Registry { return sessions }

type processHandle interface {
	Signal(sig os.Signal) error
	Kill() error
}

type commandRunner interface {
	Start() error
	Wait() error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.ReadCloser, error)
	SetStderr(w io.Writer)
	SetDir(dir string)
	SetEnv(env []string)
	Process() processHandle
}

type realCmd struct {
	cmd *exec.Cmd
}

func (c *realCmd) Start() error {
	// Graceful shutdown: SIGTERM on cancellation, hard kill only after the
	// grace window has elapsed. CommandContext installs a default Cancel;
	// a plain Command (no context) must stay untouched or Start errors.
	if c.cmd.Cancel != nil {
		c.cmd.Cancel = func() error { return sendTermSignal(c.Process()) }
		c.cmd.WaitDelay = time.Duration(forceKillDelay.Load()) * time.Second
	}
	return c.cmd.Start()
}

func (c *realCmd) Wait() error                           { return c.cmd.Wait() }
func (c *realCmd) StdinPipe() (io.WriteCloser, error)    { return c.cmd.StdinPipe() }
func (c *realCmd) StdoutPipe() (io.ReadCloser, error)    { return c.cmd.StdoutPipe() }
func (c *realCmd) SetStderr(w io.Writer)                 { c.cmd.Stderr = w }
func (c *realCmd) SetDir(dir string)                     { c.cmd.Dir = dir }
func (c *realCmd) SetEnv(env []string)                   { c.cmd.Env = env }

func (c *realCmd) Process() processHandle {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process
}

type taskLoggerKey struct{}

func withTaskLogger(ctx context.Context, logger *Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, taskLoggerKey{}, logger)
}

func taskLoggerFromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(taskLoggerKey{}).(*Logger)
	return logger
}

func logInfo(msg string) {
	ilogger.LogInfo(msg)
}

func logInfoCtx(ctx context.Context, msg string) {
	if logger := taskLoggerFromContext(ctx); logger != nil {
		logger.Info(msg)
		return
	}
	ilogger.LogInfo(msg)
}

func logWarnCtx(ctx context.Context, msg string) {
	if logger := taskLoggerFromContext(ctx); logger != nil {
		logger.Warn(msg)
		return
	}
	ilogger.LogWarn(msg)
}

func logErrorCtx(ctx context.Context, msg string) {
	if logger := taskLoggerFromContext(ctx); logger != nil {
		logger.Error(msg)
		return
	}
	ilogger.LogError(msg)
}

// DefaultRunTaskFn is the RunTaskFn used for real task execution.
func DefaultRunTaskFn(task TaskSpec, timeout time.Duration) TaskResult {
	ctx := task.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return RunTaskWithContext(ctx, task, timeout)
}

// RunTaskWithContext dispatches a single task to its backend CLI and blocks
// until the process reaches a terminal state. The backend is resolved through
// the registry, resume sessions are validated against the recorded backend,
// and the safety directives are injected into the task content before any
// argument or stdin payload is built.
func RunTaskWithContext(parentCtx context.Context, task TaskSpec, timeout time.Duration) TaskResult {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	result := TaskResult{TaskID: task.ID, Status: StatusFailed, ExitCode: 1}
	if logger := taskLoggerFromContext(parentCtx); logger != nil {
		result.LogPath = logger.Path()
		defer logger.Flush()
	}

	be, err := selectBackendFn(task.Backend)
	if err != nil {
		result.Error = err.Error()
		logErrorCtx(parentCtx, result.Error)
		return result
	}

	mode := task.Mode
	if mode == "" {
		mode = "new"
	}
	if mode == "resume" {
		if err := sessions.Validate(be.Name(), task.SessionID); err != nil {
			result.Error = err.Error()
			logErrorCtx(parentCtx, result.Error)
			return result
		}
	}

	workdir := task.WorkDir
	if workdir == "" {
		workdir = defaultWorkdir
	}

	// Applied last so no caller can strip the directives. Stdin heuristics
	// look at the raw task text; the injected block always multi-lines.
	taskText := injectSafetyDirectives(task.Task, workdir)

	useStdin := task.UseStdin || ShouldUseStdin(task.Task, false)
	targetArg := taskText
	if useStdin {
		targetArg = "-"
	}

	if timeout <= 0 {
		timeout = config.ResolveTimeout()
	}

	cfg := &config.Config{
		Mode:            mode,
		Task:            taskText,
		SessionID:       task.SessionID,
		WorkDir:         workdir,
		Model:           task.Model,
		ReasoningEffort: task.ReasoningEffort,
		Backend:         be.Name(),
		SkipPermissions: task.SkipPermissions,
		Timeout:         timeout,
	}
	args := be.BuildArgs(cfg, targetArg)

	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	cmd := newCommandRunner(ctx, be.Command(), args...)
	cmd.SetDir(workdir)
	cmd.SetEnv(buildProcessEnv(be))

	stderrTail := &tailBuffer{limit: 4096}
	stderrLog := newLogWriter("stderr: ", codexLogLineLimit)
	cmd.SetStderr(io.MultiWriter(stderrTail, stderrLog))
	defer stderrLog.Flush()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		result.Error = fmt.Sprintf("stdout pipe: %v", err)
		logErrorCtx(parentCtx, result.Error)
		return result
	}

	var stdin io.WriteCloser
	if useStdin {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			result.Error = fmt.Sprintf("stdin pipe: %v", err)
			logErrorCtx(parentCtx, result.Error)
			return result
		}
	}

	logInfoCtx(parentCtx, fmt.Sprintf("Starting %s (mode=%s workdir=%s stdin=%t)", be.Command(), mode, workdir, useStdin))

	if err := cmd.Start(); err != nil {
		execErr := &BackendExecutionError{TaskID: task.ID, ExitCode: 1, Detail: err.Error()}
		result.Error = execErr.Error()
		logErrorCtx(parentCtx, result.Error)
		return result
	}

	if useStdin {
		go func() {
			_, _ = io.WriteString(stdin, taskText)
			_ = stdin.Close()
		}()
	}

	warnFn := func(msg string) { logWarnCtx(parentCtx, msg) }
	infoFn := func(msg string) { logInfoCtx(parentCtx, msg) }
	message, sessionID := parser.ParseJSONStreamInternal(stdout, warnFn, infoFn, nil, nil)

	waitErr := cmd.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) && parentCtx.Err() == nil {
		timeoutErr := &TimeoutError{TaskID: task.ID, Timeout: timeout}
		result.ExitCode = exitCodeTimeout
		result.Error = timeoutErr.Error()
		logErrorCtx(parentCtx, result.Error)
		return result
	}
	if parentCtx.Err() != nil {
		result.Status = StatusSkipped
		result.ExitCode = 0
		result.SkipReason = SkipReasonCancelled
		logWarnCtx(parentCtx, fmt.Sprintf("Task %q cancelled before completion", task.ID))
		return result
	}

	if waitErr != nil {
		exitCode := 1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		detail := stderrTail.String()
		if detail == "" {
			detail = waitErr.Error()
		}
		execErr := &BackendExecutionError{TaskID: task.ID, ExitCode: exitCode, Detail: detail}
		result.ExitCode = exitCode
		result.Error = execErr.Error()
		logErrorCtx(parentCtx, result.Error)
		return result
	}

	result.Status = StatusSucceeded
	result.ExitCode = 0
	result.Error = ""
	result.Message = message
	result.SessionID = sessionID
	if sessionID != "" {
		key := task.ID
		if key == "" {
			key = "task"
		}
		sessions.Put(key, be.Name(), sessionID)
	}
	logInfoCtx(parentCtx, fmt.Sprintf("Task %q finished (session=%s)", task.ID, sessionID))
	return result
}

// buildProcessEnv merges the wrapper environment with backend overrides.
// Later entries win, so backend values take precedence over inherited ones.
func buildProcessEnv(be Backend) []string {
	env := os.Environ()
	overrides := be.Env(os.Getenv("CODEAGENT_BASE_URL"), os.Getenv("CODEAGENT_API_KEY"))

	switch be.Name() {
	case "claude":
		for k, v := range backend.LoadMinimalEnvSettings() {
			if _, ok := overrides[k]; !ok {
				if overrides == nil {
					overrides = make(map[string]string)
				}
				overrides[k] = v
			}
		}
	case "gemini":
		for k, v := range backend.LoadGeminiEnv() {
			if _, ok := overrides[k]; !ok {
				if overrides == nil {
					overrides = make(map[string]string)
				}
				overrides[k] = v
			}
		}
	}

	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

type fakeCmd struct {
	stdout  string
	waitErr error
	started bool
	name    string
	args    []string
	dir     string
	env     []string
}

func (c *fakeCmd) Start() error { c.started = true; return nil }
func (c *fakeCmd) Wait() error  { return c.waitErr }
func (c *fakeCmd) StdinPipe() (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}
func (c *fakeCmd) StdoutPipe() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(c.stdout)), nil
}
func (c *fakeCmd) SetStderr(w io.Writer)  {}
func (c *fakeCmd) SetDir(dir string)      { c.dir = dir }
func (c *fakeCmd) SetEnv(env []string)    { c.env = env }
func (c *fakeCmd) Process() processHandle { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func stubRunner(t *testing.T, cmd *fakeCmd) {
	t.Helper()
	restore := SetNewCommandRunner(func(ctx context.Context, name string, args ...string) CommandRunner {
		cmd.name = name
		cmd.args = args
		return cmd
	})
	t.Cleanup(restore)
}

const codexStream = `{"type":"thread.started","thread_id":"th-42"}
{"type":"item.completed","item":{"type":"agent_message","text":"work complete"}}
{"type":"turn.completed"}
`

func TestRunTaskWithContextSuccess(t *testing.T) {
	cmd := &fakeCmd{stdout: codexStream}
	stubRunner(t, cmd)

	res := RunTaskWithContext(context.Background(), TaskSpec{ID: "run-ok", Task: "do it"}, time.Minute)

	if res.Status != StatusSucceeded || res.ExitCode != 0 {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Message != "work complete" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.SessionID != "th-42" {
		t.Errorf("SessionID = %q, want th-42", res.SessionID)
	}
	if cmd.name != "codex" {
		t.Errorf("command = %q, want codex (default backend)", cmd.name)
	}

	entry, ok := Sessions().Get("run-ok")
	if !ok {
		t.Fatal("session not recorded")
	}
	if entry.Backend != "codex" || entry.SessionID != "th-42" {
		t.Errorf("registry entry = %+v", entry)
	}
}

func TestRunTaskInjectsSafetyDirectives(t *testing.T) {
	cmd := &fakeCmd{stdout: codexStream}
	stubRunner(t, cmd)

	RunTaskWithContext(context.Background(), TaskSpec{ID: "run-safety", Task: "short task"}, time.Minute)

	joined := strings.Join(cmd.args, " ")
	if !strings.Contains(joined, "<safety-rules>") {
		t.Errorf("safety rules missing from backend args: %q", joined)
	}
	if !strings.Contains(joined, "short task") {
		t.Errorf("task content missing from backend args: %q", joined)
	}
}

func TestRunTaskResumeBackendMismatch(t *testing.T) {
	Sessions().Put("mismatch-origin", "claude", "sess-mismatch")

	cmd := &fakeCmd{stdout: codexStream}
	stubRunner(t, cmd)

	res := RunTaskWithContext(context.Background(), TaskSpec{
		ID:        "run-mismatch",
		Task:      "continue",
		Mode:      "resume",
		SessionID: "sess-mismatch",
		Backend:   "codex",
	}, time.Minute)

	if res.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "claude") || !strings.Contains(res.Error, "codex") {
		t.Errorf("Error = %q, want backend mismatch naming both backends", res.Error)
	}
	if cmd.started {
		t.Error("backend process started despite mismatch")
	}
}

func TestRunTaskResumeUnknownSessionPassesThrough(t *testing.T) {
	cmd := &fakeCmd{stdout: codexStream}
	stubRunner(t, cmd)

	res := RunTaskWithContext(context.Background(), TaskSpec{
		ID:        "run-unknown-session",
		Task:      "continue",
		Mode:      "resume",
		SessionID: "sess-unknown-xyz",
	}, time.Minute)

	if res.Status != StatusSucceeded {
		t.Fatalf("result = %+v, want success for session outside the registry", res)
	}
	if !cmd.started {
		t.Error("backend process never started")
	}
}

func TestRunTaskUnknownBackend(t *testing.T) {
	cmd := &fakeCmd{}
	stubRunner(t, cmd)

	res := RunTaskWithContext(context.Background(), TaskSpec{ID: "run-bad-backend", Task: "x", Backend: "nope"}, time.Minute)
	if res.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "unsupported backend") {
		t.Errorf("Error = %q", res.Error)
	}
	if cmd.started {
		t.Error("backend process started for unknown backend")
	}
}

func TestRunTaskBackendFailure(t *testing.T) {
	cmd := &fakeCmd{stdout: "", waitErr: errors.New("boom")}
	stubRunner(t, cmd)

	res := RunTaskWithContext(context.Background(), TaskSpec{ID: "run-fail", Task: "x"}, time.Minute)
	if res.Status != StatusFailed || res.ExitCode != 1 {
		t.Fatalf("result = %+v, want failure with exit 1", res)
	}
	if !strings.Contains(res.Error, "exit code 1") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestRunTaskSetsWorkdir(t *testing.T) {
	cmd := &fakeCmd{stdout: codexStream}
	stubRunner(t, cmd)

	dir := t.TempDir()
	RunTaskWithContext(context.Background(), TaskSpec{ID: "run-wd", Task: "x", WorkDir: dir}, time.Minute)
	if cmd.dir != dir {
		t.Errorf("dir = %q, want %q", cmd.dir, dir)
	}
	if len(cmd.env) == 0 {
		t.Error("env not set")
	}
}

func TestBuildProcessEnvIncludesOverrides(t *testing.T) {
	t.Setenv("CODEAGENT_BASE_URL", "https://proxy.example")
	t.Setenv("CODEAGENT_API_KEY", "k-123")

	be, err := selectBackendFn("codex")
	if err != nil {
		t.Fatalf("selectBackendFn() error = %v", err)
	}
	env := buildProcessEnv(be)

	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "OPENAI_BASE_URL=") || strings.Contains(kv, "https://proxy.example") {
			found = true
		}
	}
	if !found && os.Getenv("CODEAGENT_BASE_URL") != "" {
		t.Errorf("backend env overrides missing: %d entries", len(env))
	}
}

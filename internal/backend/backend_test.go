package backend

import (
	"strings"
	"testing"

	config "codeagent-wrapper/internal/config"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"default empty", "", "codex", false},
		{"codex", "codex", "codex", false},
		{"claude", "claude", "claude", false},
		{"gemini", "gemini", "gemini", false},
		{"case insensitive", "  Claude ", "claude", false},
		{"unknown", "opencode", "", true},
		{"garbage", "gpt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Select(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Select(%q) err=%v, wantErr=%v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if b.Name() != tt.want {
				t.Fatalf("Select(%q).Name() = %q, want %q", tt.input, b.Name(), tt.want)
			}
		})
	}
}

func TestRegistryIsClosedSet(t *testing.T) {
	got := Registry()
	if len(got) != 3 {
		t.Fatalf("registry size = %d, want 3", len(got))
	}
	for _, name := range []string{"codex", "claude", "gemini"} {
		if _, ok := got[name]; !ok {
			t.Fatalf("registry missing backend %q", name)
		}
	}
}

func TestBuildCodexArgsResume(t *testing.T) {
	t.Setenv("CODEX_BYPASS_SANDBOX", "false")

	cfg := &config.Config{Mode: "resume", SessionID: "thread-123", WorkDir: "/tmp"}
	args := BuildCodexArgs(cfg, "do it")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "resume thread-123") {
		t.Fatalf("resume args missing session: %v", args)
	}
	if strings.Contains(joined, "-C /tmp") {
		t.Fatalf("resume args should not pin workdir: %v", args)
	}
}

func TestBuildCodexArgsNew(t *testing.T) {
	t.Setenv("CODEX_BYPASS_SANDBOX", "false")

	cfg := &config.Config{Mode: "new", WorkDir: "/work", Model: "o3", ReasoningEffort: "high"}
	args := BuildCodexArgs(cfg, "-")

	joined := strings.Join(args, " ")
	for _, want := range []string{"--model o3", "model_reasoning_effort=high", "-C /work", "--json"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %v missing %q", args, want)
		}
	}
}

func TestBuildClaudeArgsResume(t *testing.T) {
	cfg := &config.Config{Mode: "resume", SessionID: "sess-9"}
	args := ClaudeBackend{}.BuildArgs(cfg, "task")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-r sess-9") {
		t.Fatalf("claude resume args missing -r: %v", args)
	}
	if !strings.Contains(joined, "--output-format stream-json") {
		t.Fatalf("claude args missing stream-json: %v", args)
	}
}

func TestBuildGeminiArgsStdin(t *testing.T) {
	cfg := &config.Config{Mode: "new"}
	args := GeminiBackend{}.BuildArgs(cfg, "-")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-p -") {
		t.Fatalf("gemini stdin args should use -p: %v", args)
	}
}

func TestBackendEnv(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		baseKey string
		apiKey  string
	}{
		{"codex", CodexBackend{}, "OPENAI_BASE_URL", "OPENAI_API_KEY"},
		{"claude", ClaudeBackend{}, "ANTHROPIC_BASE_URL", "ANTHROPIC_API_KEY"},
		{"gemini", GeminiBackend{}, "GOOGLE_GEMINI_BASE_URL", "GEMINI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if env := tt.backend.Env("", ""); env != nil {
				t.Fatalf("Env(\"\", \"\") = %v, want nil", env)
			}
			env := tt.backend.Env("https://proxy", "key")
			if env[tt.baseKey] != "https://proxy" || env[tt.apiKey] != "key" {
				t.Fatalf("Env() = %v, want %s and %s set", env, tt.baseKey, tt.apiKey)
			}
		})
	}
}

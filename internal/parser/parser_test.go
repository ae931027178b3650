package parser

import (
	"strings"
	"testing"
)

func TestParseJSONStreamCodex(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"thread.started","thread_id":"thread-42"}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"all done"}}`,
		`{"type":"turn.completed"}`,
	}, "\n")

	message, threadID := ParseJSONStreamInternal(strings.NewReader(stream), nil, nil, nil, nil)
	if message != "all done" {
		t.Fatalf("message = %q, want %q", message, "all done")
	}
	if threadID != "thread-42" {
		t.Fatalf("threadID = %q, want %q", threadID, "thread-42")
	}
}

func TestParseJSONStreamCodexTextFragments(t *testing.T) {
	stream := `{"type":"item.completed","item":{"type":"agent_message","text":["part one, ","part two"]}}`

	message, _ := ParseJSONStreamInternal(strings.NewReader(stream), nil, nil, nil, nil)
	if message != "part one, part two" {
		t.Fatalf("message = %q, want joined fragments", message)
	}
}

func TestParseJSONStreamClaude(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"system","subtype":"init","session_id":"sess-claude"}`,
		`{"type":"result","subtype":"success","session_id":"sess-claude","result":"claude says hi"}`,
	}, "\n")

	var completed bool
	message, threadID := ParseJSONStreamInternal(strings.NewReader(stream), nil, nil, nil, func() { completed = true })
	if message != "claude says hi" {
		t.Fatalf("message = %q", message)
	}
	if threadID != "sess-claude" {
		t.Fatalf("threadID = %q, want sess-claude", threadID)
	}
	if !completed {
		t.Fatalf("expected completion callback")
	}
}

func TestParseJSONStreamGemini(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"init","session_id":"sess-gem"}`,
		`{"type":"message","role":"assistant","content":"hello ","delta":true}`,
		`{"type":"message","role":"assistant","content":"world","delta":true}`,
		`{"type":"result","status":"success"}`,
	}, "\n")

	message, threadID := ParseJSONStreamInternal(strings.NewReader(stream), nil, nil, nil, nil)
	if message != "hello world" {
		t.Fatalf("message = %q, want %q", message, "hello world")
	}
	if threadID != "sess-gem" {
		t.Fatalf("threadID = %q, want sess-gem", threadID)
	}
}

func TestParseJSONStreamSkipsMalformedLines(t *testing.T) {
	stream := strings.Join([]string{
		`not json at all`,
		`{"type":"thread.started","thread_id":"t1"}`,
		`{"broken`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"ok"}}`,
	}, "\n")

	var warnings []string
	message, threadID := ParseJSONStreamInternal(strings.NewReader(stream), func(msg string) {
		warnings = append(warnings, msg)
	}, nil, nil, nil)

	if message != "ok" || threadID != "t1" {
		t.Fatalf("message=%q threadID=%q, want ok/t1", message, threadID)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %d, want 2: %v", len(warnings), warnings)
	}
}

func TestParseJSONStreamEmptyInput(t *testing.T) {
	message, threadID := ParseJSONStreamInternal(strings.NewReader(""), nil, nil, nil, nil)
	if message != "" || threadID != "" {
		t.Fatalf("expected empty results, got message=%q threadID=%q", message, threadID)
	}
}

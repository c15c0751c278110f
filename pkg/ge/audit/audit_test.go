package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesJSONLWithExpectedFields(t *testing.T) {
	dir := t.TempDir()
	consensusPath := filepath.Join(dir, "CONSENSUS.md")
	logger := NewLogger(consensusPath)

	if logger.Path() != filepath.Join(dir, FileName) {
		t.Fatalf("unexpected log path: %s", logger.Path())
	}

	exitCode := 0
	if err := logger.Write(Record{
		Mode:     ModeGeRun,
		Event:    EventGitCommit,
		TodoID:   "T001",
		Executor: "claude",
		Command:  "git commit --allow-empty -m 'GE(T001): x'",
		ExitCode: &exitCode,
		Status:   StatusSuccess,
		Summary:  "commit created",
	}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected one JSONL line")
	}
	var decoded map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"ts", "run_id", "mode", "event", "todo_id", "trigger",
		"executor", "command", "exit_code", "status", "summary", "error_code"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in record: %v", key, decoded)
		}
	}
	if decoded["trigger"] != nil {
		t.Fatalf("expected trigger to be null when unset, got %v", decoded["trigger"])
	}
	if decoded["mode"] != "GeRun" {
		t.Fatalf("unexpected mode: %v", decoded["mode"])
	}
	if decoded["status"] != "success" {
		t.Fatalf("unexpected status: %v", decoded["status"])
	}
}

func TestLogger_AppendsMultipleLines(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(filepath.Join(dir, "CONSENSUS.md"))

	for i := 0; i < 3; i++ {
		if err := logger.Write(Record{Mode: ModeGeInterview, Event: EventGeInput, Status: StatusSuccess}); err != nil {
			t.Fatal(err)
		}
	}

	raw, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}

func TestTruncateChars(t *testing.T) {
	if got := truncateChars("short", 260); got != "short" {
		t.Fatalf("short string should be unchanged, got %q", got)
	}
	long := strings.Repeat("a", 300)
	got := truncateChars(long, 260)
	if len([]rune(got)) != 260 {
		t.Fatalf("expected truncated length 260, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…(truncated)") {
		t.Fatalf("expected truncation marker suffix, got %q", got)
	}
}

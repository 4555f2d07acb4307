package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitAndLog(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "debug"})
	defer Shutdown()

	log := ForComponent(CompSched)
	log.Info("tick_complete", "sessions", 3)

	data, err := os.ReadFile(filepath.Join(dir, "party-deck.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	if entry["component"] != "sched" {
		t.Errorf("component = %v, want sched", entry["component"])
	}
	if entry["msg"] != "tick_complete" {
		t.Errorf("msg = %v, want tick_complete", entry["msg"])
	}
	if entry["sessions"] != float64(3) {
		t.Errorf("sessions = %v, want 3", entry["sessions"])
	}
}

func TestForComponentBeforeInit(t *testing.T) {
	Shutdown() // ensure no global logger

	// Must not panic, and must pick up the real handler once Init runs.
	log := ForComponent(CompStore)
	log.Info("dropped_before_init")

	dir := t.TempDir()
	Init(Config{LogDir: dir})
	defer Shutdown()

	log.Info("visible_after_init")

	data, err := os.ReadFile(filepath.Join(dir, "party-deck.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "visible_after_init") {
		t.Error("log written before Init did not switch to the real handler")
	}
	if strings.Contains(string(data), "dropped_before_init") {
		t.Error("pre-Init log line unexpectedly persisted")
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "warn"})
	defer Shutdown()

	log := ForComponent(CompDispatch)
	log.Debug("debug_hidden")
	log.Info("info_hidden")
	log.Warn("warn_visible")
	log.Error("error_visible")

	f, err := os.Open(filepath.Join(dir, "party-deck.log"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var msgs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("bad log line: %v", err)
		}
		msgs = append(msgs, entry["msg"].(string))
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(msgs), msgs)
	}
	if msgs[0] != "warn_visible" || msgs[1] != "error_visible" {
		t.Errorf("unexpected messages: %v", msgs)
	}
}

func TestTextFormat(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Format: "text"})
	defer Shutdown()

	ForComponent(CompConfig).Info("config_loaded", "path", "/tmp/config.toml")

	data, err := os.ReadFile(filepath.Join(dir, "party-deck.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "msg=config_loaded") {
		t.Errorf("expected text format output, got: %s", out)
	}
	if !strings.Contains(out, "component=config") {
		t.Errorf("component attr missing: %s", out)
	}
}

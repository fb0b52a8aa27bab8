package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogRotation(t *testing.T) {
	tempDir := t.TempDir()
	logFile := filepath.Join(tempDir, "test.log")

	cfg := FileConfig{
		Path:       logFile,
		MaxSizeMB:  1, // smallest size lumberjack allows
		MaxBackups: 2,
		MaxAgeDays: 1,
		Compress:   false,
	}

	if err := InitWithFileConfig("debug", cfg, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	defer Set(nil)

	// Each JSON line is ~300 bytes; 6000 lines exceed 1MB.
	longPath := strings.Repeat("x", 200)
	for i := 0; i < 6000; i++ {
		Info("mesh normalized", zap.Int("mesh", i), zap.String("path", longPath))
	}

	Sync()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Fatal("active log file does not exist")
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}

	// lumberjack renames rotated files to test-YYYY-MM-DDTHH-MM-SS.SSS.log
	rotated := 0
	for _, e := range entries {
		name := e.Name()
		if name == "test.log" || !strings.HasPrefix(name, "test-") {
			continue
		}
		rotated++
		if !strings.Contains(name, "-20") {
			t.Errorf("rotated file %s lacks a timestamp", name)
		}
	}
	if rotated == 0 {
		t.Errorf("expected at least one rotated file, found entries %v", entries)
	}
}

// fileLevels returns the "level" field of every JSON line in path.
func fileLevels(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening log file: %v", err)
	}
	defer f.Close()

	var levels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry struct {
			Level string `json:"level"`
			Stage string `json:"stage"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", scanner.Text())
		}
		levels = append(levels, entry.Level+"/"+entry.Stage)
	}
	return levels
}

func TestFileLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	tests := map[string][]string{
		"error": {"ERROR/holes"},
		"warn":  {"WARN/boundary", "ERROR/holes"},
		"info":  {"INFO/", "WARN/boundary", "ERROR/holes"},
		"debug": {"DEBUG/remesh", "INFO/", "WARN/boundary", "ERROR/holes"},
	}
	for level, want := range tests {
		t.Run(level, func(t *testing.T) {
			path := filepath.Join(dir, level+".log")
			if err := InitWithFileConfig(level, FileConfig{Path: path, MaxSizeMB: 5}, false); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}
			defer Set(nil)

			Named("remesh").Debug("subdivided")
			Info("batch started")
			Named("boundary").Warn("dropping degenerate edge")
			Named("holes").Error("lookup failed")
			Sync()

			got := fileLevels(t, path)
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("level %s: got %v, want %v", level, got, want)
			}
		})
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/test.log")

	if cfg.Path != "/tmp/test.log" {
		t.Errorf("expected path /tmp/test.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 20 {
		t.Errorf("expected MaxSizeMB 20, got %d", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("expected MaxBackups 5, got %d", cfg.MaxBackups)
	}
	if cfg.MaxAgeDays != 14 {
		t.Errorf("expected MaxAgeDays 14, got %d", cfg.MaxAgeDays)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}

func TestNopByDefault(t *testing.T) {
	Set(nil)
	// Must not panic without Init.
	Warn("dropped edge")
	Named("boundary").Debug("graph built")
	Sync()
}

func TestNamedStageLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	defer Set(nil)

	Named("remesh").Debug("subdivided", zap.Int("faces", 80))
	Warn("plain warning")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "remesh" {
		t.Errorf("expected logger name remesh, got %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["faces"] != int64(80) {
		t.Errorf("expected faces=80 field, got %v", entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[1].Level)
	}
}

func TestCallerPointsAtCallSite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core, zap.AddCaller()))
	defer Set(nil)

	Named("holes").Info("from stage logger")
	Info("from package helper")
	Sugar.Infof("from %s", "sugar")

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if !e.Caller.Defined {
			t.Fatalf("%q: caller not recorded", e.Message)
		}
		if filepath.Base(e.Caller.File) != "logger_test.go" {
			t.Errorf("%q: caller %s, want logger_test.go", e.Message, e.Caller.TrimmedPath())
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"bogus": zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

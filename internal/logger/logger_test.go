package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// readLines decodes a JSON log file.
func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("expected JSON log line, got %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestFileRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "export.log")

	err := Setup(Options{
		Level: "debug",
		Quiet: true,
		File:  FileConfig{Path: logFile, MaxSizeMB: 1, MaxBackups: 2},
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer Sync()

	// ~300 bytes per line, well over 1MB in total.
	payload := strings.Repeat("v", 200)
	for i := 0; i < 6000; i++ {
		Debug("vertex", zap.Int("i", i), zap.String("data", payload))
	}
	Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	rotated := 0
	for _, e := range entries {
		if e.Name() != "export.log" && strings.HasPrefix(e.Name(), "export-") {
			rotated++
		}
	}
	if rotated == 0 {
		t.Errorf("expected a rotated log file, got %d entries", len(entries))
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"error", []string{"error"}},
		{"warn", []string{"warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"bogus", []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(t.TempDir(), "level.log")
			if err := Setup(Options{Level: tt.level, Quiet: true, File: FileConfig{Path: logFile, MaxSizeMB: 1}}); err != nil {
				t.Fatalf("Setup: %v", err)
			}
			Debug("d")
			Info("i")
			Warn("w")
			Error("e")
			Sync()

			lines := readLines(t, logFile)
			if len(lines) != len(tt.want) {
				t.Fatalf("expected %d lines, got %d", len(tt.want), len(lines))
			}
			for i, want := range tt.want {
				if lines[i]["level"] != want {
					t.Errorf("line %d: expected level %s, got %v", i, want, lines[i]["level"])
				}
			}
		})
	}
}

func TestForRun(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	if err := Setup(Options{Level: "info", Quiet: true, File: DefaultFileConfig(logFile)}); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ForRun("1234-abcd", "level.json").Info("exported")
	Sync()

	lines := readLines(t, logFile)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["run"] != "1234-abcd" {
		t.Errorf("expected run id 1234-abcd, got %v", lines[0]["run"])
	}
	if lines[0]["scene"] != "level.json" {
		t.Errorf("expected scene level.json, got %v", lines[0]["scene"])
	}
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Level: "info", Console: &buf}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	Info("texture placed", zap.Int("x", 320))
	Sync()

	if !strings.Contains(buf.String(), "texture placed") || !strings.Contains(buf.String(), `"x": 320`) {
		t.Errorf("unexpected console output %q", buf.String())
	}
}

func TestLBeforeInit(t *testing.T) {
	saved := Log
	Log = nil
	defer func() { Log = saved }()

	// Must not panic.
	L().Info("dropped")
	Warn("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"ERROR": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

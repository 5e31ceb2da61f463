package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupRejectsInvalidLevel(t *testing.T) {
	if err := Setup(&Config{Level: "SHOUT"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestSetupAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR", "info", ""} {
		if err := Setup(&Config{Level: level}); err != nil {
			t.Errorf("Setup with level %q failed: %v", level, err)
		}
	}
	// Restore defaults for other tests.
	if err := Setup(nil); err != nil {
		t.Fatalf("Setup(nil) failed: %v", err)
	}
	log.SetOutput(os.Stderr)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(&Config{Level: "WARN"}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Debugf("hidden debug")
	Infof("hidden info")
	Warnf("visible warning")
	Errorf("visible error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected DEBUG and INFO to be filtered at WARN, got %q", out)
	}
	if !strings.Contains(out, "visible warning") || !strings.Contains(out, "visible error") {
		t.Errorf("Expected WARN and ERROR to pass, got %q", out)
	}
}

func TestSetupWithFileCreatesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vfskit.log")
	if err := Setup(&Config{Level: "INFO", File: path, MaxSizeMB: 1}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
	}()

	Infof("to the file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !strings.Contains(string(data), "to the file") {
		t.Errorf("Expected log line in file, got %q", string(data))
	}
}

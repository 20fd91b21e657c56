package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernsync.log")
	Close()
	if err := Init(Config{Level: LevelDebug, OutputPath: path, Format: "text"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { Close() })

	WithLock("monitor").Debug("contended")
	WithTick(42).Debug("woken")
	WithThread(7, "worker").Debug("blocked")

	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"component=synch lock=monitor",
		"tick=42",
		"thread_id=7 thread=worker",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" WARN ", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, %v", tt.in, got, err)
		}
	}
}

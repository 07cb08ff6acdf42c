package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyFileWriterDefaults(t *testing.T) {
	got := applyFileWriterDefaults(FileWriterConfig{MaxBackups: 2, MaxAgeDays: -1})
	want := FileWriterConfig{MaxSizeMB: DefaultMaxSizeMB, MaxBackups: 2, MaxAgeDays: DefaultMaxAgeDays}
	if got != want {
		t.Errorf("applyFileWriterDefaults() = %+v, want %+v", got, want)
	}
}

func TestNewFileWriter_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotating.log")

	w := NewFileWriter(path)
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello\n" {
		t.Errorf("file content = %q, err = %v", data, err)
	}
}

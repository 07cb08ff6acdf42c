package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("OPENROUTER_API_KEY=x\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		contains string
	}{
		{"existing file", file, ""},
		{"empty path", "", "cannot be empty"},
		{"missing", filepath.Join(dir, "missing"), "file not found"},
		{"directory", dir, "is a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFileExists(tt.path)
			if tt.contains == "" {
				if err != nil {
					t.Fatalf("CheckFileExists() = %v, want nil", err)
				}
				return
			}
			var fe *FileExistsError
			if !errors.As(err, &fe) {
				t.Fatalf("CheckFileExists() = %v, want *FileExistsError", err)
			}
			if !strings.Contains(fe.Message, tt.contains) {
				t.Errorf("Message = %q, want it to contain %q", fe.Message, tt.contains)
			}
		})
	}
}

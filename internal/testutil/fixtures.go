package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFolder creates a dashboard folder called name inside a temporary
// directory and fills it with files (file name to content).
func WriteFolder(t testing.TB, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
	}
	return dir
}

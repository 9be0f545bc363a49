package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// AttendanceCSV is a small dataset with one numeric and two text columns.
const AttendanceCSV = "Name,Attendance,Phone\nAsha,72,+91-11111\nRavi,91,+91-22222\nMeera,40,+91-33333\n"

// WriteCSV writes content to a CSV file in a per-test temp dir and returns its path.
func WriteCSV(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with size bytes of a repeating pattern.
// A size <= 0 writes a single byte. Parent directories are created.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SampleScript returns a short narration script with the sentence shapes
// the chunker cares about.
func SampleScript() string {
	return "그날 밤, 창밖에는 비가 내리고 있었다. 어머니는 아무 말 없이 문을 열었다. 나는 그 뒷모습을 오래도록 바라보았다."
}

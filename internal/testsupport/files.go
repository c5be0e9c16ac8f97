package testsupport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// SeedMediaFile creates path along with any missing parent directories and
// fills it with size bytes of filler, so tests exercising the watcher and
// mover act on files that have real content. A non-positive size yields a
// one-byte file.
func SeedMediaFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size < 1 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if _, err := io.CopyN(out, filler{}, size); err != nil {
		out.Close()
		t.Fatalf("fill %s: %v", path, err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

// filler is an endless reader of printable padding.
type filler struct{}

func (filler) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}

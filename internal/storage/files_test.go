package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	in := sample{Name: "alpha", Count: 3}

	if err := WriteJSONAtomic(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out sample
	if !ReadJSON(path, &out) {
		t.Fatal("read returned false for freshly written file")
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	// No temp residue after the rename.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestReadJSONDegradesToFalse(t *testing.T) {
	dir := t.TempDir()

	var out sample
	if ReadJSON(filepath.Join(dir, "missing.json"), &out) {
		t.Error("missing file should read as false")
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	os.WriteFile(corrupt, []byte("{not json"), 0644)
	if ReadJSON(corrupt, &out) {
		t.Error("corrupt file should read as false, same as missing")
	}
}

func TestAppendLineRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.ndjson")

	for i := 0; i < 8; i++ {
		if err := AppendLine(path, sample{Name: "entry", Count: i}, 5); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got := DecodeLines[sample](path, 0)
	if len(got) != 5 {
		t.Fatalf("after rotation got %d lines, want 5", len(got))
	}
	// Oldest lines dropped first.
	if got[0].Count != 3 || got[4].Count != 7 {
		t.Errorf("rotation kept wrong window: first=%d last=%d", got[0].Count, got[4].Count)
	}
}

func TestDecodeLinesSkipsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.ndjson")
	os.WriteFile(path, []byte("{\"name\":\"ok\",\"count\":1}\nnot json\n{\"name\":\"ok2\",\"count\":2}\n"), 0644)

	got := DecodeLines[sample](path, 0)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 (corrupt line skipped)", len(got))
	}
}

func TestFileLockExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.lock")

	first := NewFileLock(path)
	if err := first.Acquire(100 * time.Millisecond); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	second := NewFileLock(path)
	if err := second.Acquire(80 * time.Millisecond); err == nil {
		t.Fatal("second acquire should time out while first holds the lock")
	}

	first.Release()
	if err := second.Acquire(100 * time.Millisecond); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	second.Release()
}

func TestFileLockReleaseUnheldIsNoop(t *testing.T) {
	l := NewFileLock(filepath.Join(t.TempDir(), "q.lock"))
	l.Release() // must not panic or remove anything
}

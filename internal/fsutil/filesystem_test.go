package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteAndRead(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "run", "a")

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "summary.csv")
	if err := fsys.WriteFile(path, []byte("metric,value\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "metric,value\n" {
		t.Errorf("got %q", data)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// The returned slice is a copy.
	data[0] = 'j'
	again, _ := mfs.ReadFile("/test.txt")
	if string(again) != "hello, world" {
		t.Errorf("stored data was mutated: %q", again)
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_WriteNeedsParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	err := mfs.WriteFile("/out/run/history.csv", []byte("x"), 0o644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist without parent, got %v", err)
	}

	if err := mfs.MkdirAll("/out/run", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if !mfs.Exists("/out") || !mfs.Exists("/out/run") {
		t.Error("expected every parent directory to exist")
	}
	if err := mfs.WriteFile("/out/run/history.csv", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile after MkdirAll failed: %v", err)
	}
	if !mfs.Exists("/out/run/history.csv") {
		t.Error("expected written file to exist")
	}
}

func TestMemoryFileSystem_MkdirOverFile(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/report", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mfs.MkdirAll("/report/sub", 0o755); err == nil {
		t.Error("expected error creating a directory under a file")
	}
	if err := mfs.WriteFile("/", []byte("x"), 0o644); err == nil {
		t.Error("expected error writing over a directory")
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/out/b", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"/out/b/z.csv", "/out/a.csv", "/other.csv"} {
		if err := mfs.WriteFile(name, nil, 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}

	got := mfs.Files("/out")
	want := []string{"/out/a.csv", "/out/b/z.csv"}
	if len(got) != len(want) {
		t.Fatalf("Files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Files[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

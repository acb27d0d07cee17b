package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestEnsureDir_OS(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b", "c")

	got, err := EnsureDir(OSFileSystem{}, dir)
	if err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if got != dir {
		t.Errorf("EnsureDir returned %q, want %q", got, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be a directory, err=%v", dir, err)
	}

	// Second call is a no-op.
	if _, err := EnsureDir(OSFileSystem{}, dir); err != nil {
		t.Fatalf("EnsureDir on existing dir failed: %v", err)
	}
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := EnsureDir(OSFileSystem{}, blocker); err == nil {
		t.Error("expected error when a file occupies the directory path")
	}
}

func TestEnsureDir_EmptyAndDot(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, dir := range []string{"", "."} {
		got, err := EnsureDir(mfs, dir)
		if err != nil {
			t.Errorf("EnsureDir(%q) error: %v", dir, err)
		}
		if got != dir {
			t.Errorf("EnsureDir(%q) = %q", dir, got)
		}
	}
}

func TestEnsureParentDir_Memory(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := EnsureParentDir(mfs, "/out/events/run.pb"); err != nil {
		t.Fatalf("EnsureParentDir failed: %v", err)
	}
	if !mfs.Exists("/out/events") {
		t.Error("expected /out/events to exist")
	}
	if !mfs.Exists("/out") {
		t.Error("expected parent /out to exist")
	}
}

func TestMemoryFileSystem_CreateAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/created.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err = w.Write([]byte("created content")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/created.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "created content" {
		t.Errorf("expected 'created content', got %q", data)
	}

	f, err := mfs.Open("/created.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	streamed, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(streamed) != "created content" {
		t.Errorf("Open read %q", streamed)
	}
}

func TestMemoryFileSystem_MissingFile(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/nope"); !os.IsNotExist(err) {
		t.Errorf("Open missing: expected not-exist error, got %v", err)
	}
	if _, err := mfs.ReadFile("/nope"); !os.IsNotExist(err) {
		t.Errorf("ReadFile missing: expected not-exist error, got %v", err)
	}
	if _, err := mfs.Stat("/nope"); !os.IsNotExist(err) {
		t.Errorf("Stat missing: expected not-exist error, got %v", err)
	}
}

func TestMemoryFileSystem_CreateTruncates(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/events.csv", []byte("old old old"))

	w, err := mfs.Create("/events.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("new")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := mfs.ReadFile("/events.csv")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("got %q, want %q", data, "new")
	}
}

func TestMemoryFileSystem_StatDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/x/y", 0755); err != nil {
		t.Fatal(err)
	}

	info, err := mfs.Stat("/x")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected /x to be a directory")
	}
}

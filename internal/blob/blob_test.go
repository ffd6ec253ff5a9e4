package blob

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveOpenRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	n, err := s.Save(strings.NewReader("hello"), "a.txt", 10)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 5 {
		t.Errorf("written = %d, want 5", n)
	}

	f, err := s.Open("a.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}

	if err := s.Remove("a.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("a.txt"); err != nil {
		t.Fatalf("Remove of missing blob: %v", err)
	}
	if _, err := s.Open("a.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveEnforcesLimit(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir())

	if _, err := s.Save(strings.NewReader("0123456789"), "big.bin", 9); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.BaseDir, "big.bin")); !os.IsNotExist(err) {
		t.Fatalf("partial blob left behind: %v", err)
	}

	if _, err := s.Save(strings.NewReader("0123456789"), "exact.bin", 10); err != nil {
		t.Fatalf("Save at limit: %v", err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir())

	for _, name := range []string{"../escape", "a/b", "..", ""} {
		if _, err := s.Save(strings.NewReader("x"), name, 10); err == nil {
			t.Errorf("Save(%q) succeeded", name)
		}
		if _, err := s.Open(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q) = %v, want ErrNotFound", name, err)
		}
	}
}

func TestSaveDoesNotOverwrite(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir())
	if _, err := s.Save(strings.NewReader("one"), "dup", 10); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(strings.NewReader("two"), "dup", 10); err == nil {
		t.Fatal("second Save with same name succeeded")
	}
}

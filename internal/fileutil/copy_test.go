package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tables.ndx")
	content := []byte{1, 0, 0, 0, 'A', 0, 0, 0}
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	dst := filepath.Join(dir, "backup", "nested", "tables.ndx.bak")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read copy: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("copy = %v, want %v", got, content)
	}
}

func TestCopyFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	if err := os.WriteFile(dst, []byte("older and longer"), 0644); err != nil {
		t.Fatalf("failed to write destination: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	assertContent(t, dst, "new")
}

func TestCopyFilePreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, []byte("data"), 0600); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	dst := filepath.Join(dir, "dst")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("failed to stat copy: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("copy mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestCopyFileErrors(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Error("expected an error for a missing source")
	}

	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	// The destination is an existing directory.
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := CopyFile(src, blocked); err == nil {
		t.Error("expected an error when the destination is a directory")
	}
}

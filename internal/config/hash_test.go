package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLockAndVerify(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("executor:\n  key: demo\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := VerifyLock(path); err != nil {
		t.Fatalf("VerifyLock() without manifest = %v, want nil", err)
	}

	checksumPath, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if checksumPath != filepath.Join(tmpDir, ChecksumFile) {
		t.Fatalf("checksum path = %s", checksumPath)
	}
	info, err := os.Stat(checksumPath)
	if err != nil {
		t.Fatalf("expected .checksums to be written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf(".checksums mode = %v, want 0600", info.Mode().Perm())
	}

	if err := VerifyLock(path); err != nil {
		t.Fatalf("VerifyLock() after Lock = %v", err)
	}

	if err := os.WriteFile(path, []byte("executor:\n  key: tampered\n"), 0600); err != nil {
		t.Fatal(err)
	}
	err = VerifyLock(path)
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("VerifyLock() after edit = %v, want hash mismatch", err)
	}
}

func TestLockKeepsOtherEntries(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.yaml")
	b := filepath.Join(tmpDir, "b.yaml")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte(p), 0600); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := Lock(a); err != nil {
		t.Fatal(err)
	}
	if _, err := Lock(b); err != nil {
		t.Fatal(err)
	}

	manifest, err := LoadChecksums(tmpDir)
	if err != nil {
		t.Fatalf("LoadChecksums() failed: %v", err)
	}
	if len(manifest.Hashes) != 2 {
		t.Fatalf("len(manifest.Hashes) = %d, want 2", len(manifest.Hashes))
	}
}

func TestVerifyLockUnlistedFile(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.yaml")
	other := filepath.Join(tmpDir, "other.yaml")
	for _, p := range []string{a, other} {
		if err := os.WriteFile(p, []byte("x: 1\n"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := Lock(a); err != nil {
		t.Fatal(err)
	}

	if err := VerifyLock(other); err == nil {
		t.Fatal("expected error for a file missing from the manifest")
	}
}

func TestLoadChecksumsRejectsUnknownVersion(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ChecksumFile), []byte("version: 2\nhashes: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadChecksums(tmpDir); err == nil {
		t.Fatal("expected error for version 2")
	}

	if _, err := LoadChecksums(t.TempDir()); !os.IsNotExist(err) {
		t.Fatalf("LoadChecksums() on empty dir = %v, want not-exist", err)
	}
}

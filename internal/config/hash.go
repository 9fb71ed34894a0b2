package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFile is the manifest name written beside a locked config.
const ChecksumFile = ".checksums"

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}

	return nil
}

// Lock hashes configPath and records it in the .checksums manifest of its
// directory, keeping entries for other files. It returns the manifest path.
func Lock(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}
	dir := filepath.Dir(absPath)

	hash, err := ComputeBlake3Hash(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", filepath.Base(absPath), err)
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		manifest = &ChecksumManifest{Version: 1, Hashes: make(map[string]string)}
	}
	manifest.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	manifest.Hashes[filepath.Base(absPath)] = hash

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checksums: %w", err)
	}

	// Restrictive permissions: the manifest holds expected hashes.
	checksumPath := filepath.Join(dir, ChecksumFile)
	if err := os.WriteFile(checksumPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write checksums: %w", err)
	}
	return checksumPath, nil
}

// LoadChecksums reads the .checksums file from a config directory. A missing
// manifest yields an error satisfying os.IsNotExist.
func LoadChecksums(configDir string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(configDir, ChecksumFile))
	if err != nil {
		return nil, err
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	if manifest.Hashes == nil {
		manifest.Hashes = make(map[string]string)
	}
	return &manifest, nil
}

// VerifyLock checks configPath against the manifest in its directory. With
// no manifest there is nothing to verify.
func VerifyLock(configPath string) error {
	dir := filepath.Dir(configPath)
	manifest, err := LoadChecksums(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	name := filepath.Base(configPath)
	expectedHash, ok := manifest.Hashes[name]
	if !ok {
		return fmt.Errorf("config file %s has no hash in %s\n"+
			"Run: xxl-executor config lock --config %s", name, filepath.Join(dir, ChecksumFile), configPath)
	}
	if err := VerifyFileHash(configPath, expectedHash); err != nil {
		return fmt.Errorf("config verification failed: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: xxl-executor config lock --config %s", err, configPath)
	}
	return nil
}

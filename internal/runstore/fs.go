package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

func WriteBytes(path string, data []byte) error {
	return writeFileAtomic(path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".ytscan-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// ScopedCookieFile writes a pasted cookies.txt payload to a private temp
// file. The returned release func removes it and is safe to call twice.
func ScopedCookieFile(payload string) (string, func(), error) {
	if strings.TrimSpace(payload) == "" {
		return "", func() {}, fmt.Errorf("cookie payload is empty")
	}
	path := filepath.Join(os.TempDir(), "ytscan-cookies-"+uuid.NewString()+".txt")
	if err := writeFileAtomic(path, []byte(payload), 0o600); err != nil {
		return "", func() {}, err
	}
	release := func() {
		_ = os.Remove(path)
	}
	return path, release, nil
}

// TempWorkDir creates a fresh, uniquely named directory for one transient
// download. The returned release func removes it with its contents.
func TempWorkDir(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp("", prefix+uuid.NewString()[:8]+"-")
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp directory: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	outputLockSuffix = ".lock"
	lockOwnerFile    = "owner.json"
)

// OutputLock guards an export file against two scans writing it at once.
type OutputLock struct {
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	ScanID    string `json:"scan_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireOutputLock(outputPath, scanID string) (OutputLock, error) {
	target := strings.TrimSpace(outputPath)
	if target == "" {
		return OutputLock{}, fmt.Errorf("output path is required")
	}
	if err := Mkdir(filepath.Dir(target)); err != nil {
		return OutputLock{}, err
	}

	lockDir := target + outputLockSuffix
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			var owner lockOwner
			if readErr := ReadJSON(filepath.Join(lockDir, lockOwnerFile), &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return OutputLock{}, fmt.Errorf(
					"output file is locked by another scan: %s (pid=%d scan_id=%s created_at=%s host=%s)",
					target, owner.PID, owner.ScanID, owner.CreatedAt, owner.Hostname,
				)
			}
			return OutputLock{}, fmt.Errorf("output file is locked by another scan: %s", target)
		}
		return OutputLock{}, fmt.Errorf("acquire output lock for %s: %w", target, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		ScanID:    scanID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(filepath.Join(lockDir, lockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return OutputLock{}, fmt.Errorf("write output lock owner for %s: %w", target, err)
	}
	return OutputLock{lockDir: lockDir}, nil
}

func (l OutputLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release output lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}

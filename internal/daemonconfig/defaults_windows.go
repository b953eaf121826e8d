//go:build windows

package daemonconfig

import (
	"os"
	"path/filepath"
)

// defaultDataDir is the shared program-data path for the service.
func defaultDataDir() string {
	base := os.Getenv("ProgramData")
	if base == "" {
		base = `C:\ProgramData`
	}
	return filepath.Join(base, "MaxBackup")
}

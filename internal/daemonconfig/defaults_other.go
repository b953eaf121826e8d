//go:build !windows

package daemonconfig

// defaultDataDir is the shared program-data path for the service.
func defaultDataDir() string {
	return "/var/lib/maxbackup"
}

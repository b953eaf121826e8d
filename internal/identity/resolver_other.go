//go:build !windows

package identity

import (
	"os"
	"os/user"

	"maxbackup/internal/backup"
)

// Resolve treats sid as a uid or account name and consults the system user
// database. ok is false when the account is unknown or its home directory
// does not exist.
func (*OSResolver) Resolve(sid string) (backup.Profile, bool) {
	u, err := user.LookupId(sid)
	if err != nil {
		u, err = user.Lookup(sid)
	}
	if err != nil || u.HomeDir == "" {
		return backup.Profile{}, false
	}

	info, err := os.Stat(u.HomeDir)
	if err != nil || !info.IsDir() {
		return backup.Profile{}, false
	}

	display := u.Name
	if display == "" {
		display = u.Username
	}
	return backup.Profile{DisplayName: display, HomeDir: u.HomeDir}, true
}

var _ backup.IdentityResolver = (*OSResolver)(nil)

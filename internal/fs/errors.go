package fs

import (
	"errors"

	"maxbackup/internal/backup"
)

// mapOSError rewraps OS-specific sharing-violation codes as backup.ErrInUse
// so callers can classify without platform knowledge. Other errors pass
// through unchanged.
func mapOSError(err error) error {
	if err == nil {
		return nil
	}
	if isSharingViolation(err) {
		return errors.Join(backup.ErrInUse, err)
	}
	return err
}

// IsSharingViolation reports whether err indicates the file is held open by
// another process in a conflicting mode.
func IsSharingViolation(err error) bool {
	return errors.Is(err, backup.ErrInUse) || isSharingViolation(err)
}

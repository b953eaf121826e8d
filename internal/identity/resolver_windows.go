//go:build windows

package identity

import (
	"os"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"maxbackup/internal/backup"
)

const profileListKey = `SOFTWARE\Microsoft\Windows NT\CurrentVersion\ProfileList\`

// Resolve looks up sid in the ProfileList registry first, falling back to
// a name-derived path under the system drive. ok is false when no home
// directory exists for the SID.
func (*OSResolver) Resolve(sid string) (backup.Profile, bool) {
	display := sid
	if name, ok := accountName(sid); ok {
		display = name
	}

	home, ok := profileImagePath(sid)
	if !ok {
		home, ok = heuristicHome(display)
	}
	if !ok {
		return backup.Profile{}, false
	}

	info, err := os.Stat(home)
	if err != nil || !info.IsDir() {
		return backup.Profile{}, false
	}
	return backup.Profile{DisplayName: display, HomeDir: home}, true
}

// profileImagePath reads the profile directory recorded by Windows when
// the user's profile was created.
func profileImagePath(sid string) (string, bool) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, profileListKey+sid, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer k.Close()

	raw, _, err := k.GetStringValue("ProfileImagePath")
	if err != nil || raw == "" {
		return "", false
	}
	expanded, err := registry.ExpandString(raw)
	if err != nil {
		return raw, true
	}
	return expanded, true
}

func accountName(sidStr string) (string, bool) {
	sid, err := windows.StringToSid(sidStr)
	if err != nil {
		return "", false
	}
	name, domain, _, err := sid.LookupAccount("")
	if err != nil {
		return "", false
	}
	if domain != "" {
		return domain + `\` + name, true
	}
	return name, true
}

// heuristicHome guesses <SystemDrive>\Users\<account> for profiles not yet
// present in ProfileList.
func heuristicHome(display string) (string, bool) {
	name := display
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "", false
	}
	drive := os.Getenv("SystemDrive")
	if drive == "" {
		drive = "C:"
	}
	return drive + `\Users\` + name, true
}

var _ backup.IdentityResolver = (*OSResolver)(nil)

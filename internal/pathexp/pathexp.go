// Package pathexp expands user-relative path tokens against a resolved home
// directory. The service runs under its own account, so os.ExpandEnv and
// friends would expand against the wrong environment; the user-relative
// tokens (~ and %USERPROFILE%) are always expanded explicitly against the
// target user's home. Only Expand also resolves other %VAR% tokens, and it
// reads those from the process environment.
package pathexp

import (
	"os"
	"strings"
)

const userProfileToken = "%USERPROFILE%"

// Expand rewrites a plain path against home. A leading "~/" or "~\" is
// replaced by home, a bare "~" becomes home, and %USERPROFILE% is replaced
// case-insensitively. Remaining %VAR% tokens are expanded from the process
// environment.
func Expand(path, home string) string {
	switch {
	case path == "~":
		path = home
	case strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`):
		path = home + path[1:]
	}
	path = replaceFold(path, userProfileToken, home)
	return expandEnvTokens(path)
}

// ExpandJSONText rewrites raw JSON source text so that "~\\", "~/" and
// %USERPROFILE% resolve against home while the text remains valid JSON.
// Backslashes in home are doubled because the substitution lands inside
// JSON string literals. No other environment expansion is performed.
func ExpandJSONText(text, home string) string {
	escapedHome := strings.ReplaceAll(home, `\`, `\\`)
	text = strings.ReplaceAll(text, `~\\`, escapedHome+`\\`)
	text = strings.ReplaceAll(text, `~/`, escapedHome+`/`)
	return replaceFold(text, userProfileToken, escapedHome)
}

// expandEnvTokens expands %VAR% tokens from the process environment.
// Unknown variables are left untouched.
func expandEnvTokens(s string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			break
		}
		name := s[start+1 : start+1+end]
		value, ok := os.LookupEnv(name)
		if !ok {
			b.WriteString(s[:start+1+end+1])
		} else {
			b.WriteString(s[:start])
			b.WriteString(value)
		}
		s = s[start+1+end+1:]
	}
	b.WriteString(s)
	return b.String()
}

// replaceFold replaces every occurrence of token in s with value, matching
// token case-insensitively.
func replaceFold(s, token, value string) string {
	lower := strings.ToLower(s)
	lowerToken := strings.ToLower(token)

	var b strings.Builder
	for {
		i := strings.Index(lower, lowerToken)
		if i < 0 {
			break
		}
		b.WriteString(s[:i])
		b.WriteString(value)
		s = s[i+len(token):]
		lower = lower[i+len(lowerToken):]
	}
	b.WriteString(s)
	return b.String()
}

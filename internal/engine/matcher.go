package engine

import "github.com/bmatcuk/doublestar/v4"

// matcher evaluates include/exclude glob patterns against slash-relative
// paths. doublestar semantics: `**` crosses directory boundaries, `*` does
// not. Malformed patterns never match.
type matcher struct {
	include []string
	exclude []string
}

func newMatcher(include, exclude []string, volumeRoot bool) *matcher {
	m := &matcher{
		include: include,
		exclude: append([]string(nil), exclude...),
	}
	if volumeRoot {
		m.exclude = append(m.exclude, volumeRootExcludes...)
	}
	return m
}

// matches reports whether rel matches at least one include pattern and no
// exclude pattern.
func (m *matcher) matches(rel string) bool {
	included := false
	for _, pattern := range m.include {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range m.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return false
		}
	}
	return true
}

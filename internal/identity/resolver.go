// Package identity resolves opaque user identifiers to display names and
// home directories using the authoritative OS account database.
package identity

// OSResolver implements backup.IdentityResolver against the running OS.
// Resolution is a pure function over current OS state: a SID that fails to
// resolve now may resolve later (profile not created yet), so callers
// treat failures as transient.
type OSResolver struct{}

// NewOSResolver creates a resolver backed by the OS account database.
func NewOSResolver() *OSResolver {
	return &OSResolver{}
}

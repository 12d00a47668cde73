// Package ocrectx implements Context: the workdir-scoped set of containers
// a Library hands out, one per caller that wants an isolated view of
// images and running containers under a shared base directory.
package ocrectx

import "github.com/project-ocre/ocre/pkg/ocreerr"

// IsValidName reports whether s is a valid container or image name:
// lowercase alphanumerics, '.', '_' and '-', and not starting with '.'.
func IsValidName(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '.' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

// validateName returns ocreerr.InvalidArgument with a field-specific message
// if name isn't valid.
func validateName(field, name string) error {
	if !IsValidName(name) {
		return ocreerr.InvalidArgumentf(
			"invalid %s %q: valid characters are [a-z0-9._-], and it cannot start with '.'", field, name)
	}
	return nil
}

package session

import (
	"fmt"
	"regexp"
)

// Session names become directories under ~/.chatflow/sessions, so they are
// restricted to lowercase path-safe characters.
var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a session directory name.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 lowercase letters, digits, '-' or '_'", name)
	}
	return nil
}

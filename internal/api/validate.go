package api

import (
	"fmt"
	"regexp"
)

var idRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID checks an id before it is placed in a path or query.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if !idRe.MatchString(id) {
		return fmt.Errorf("%s %q must be 1-64 characters of letters, digits, '-' or '_'", kind, id)
	}
	return nil
}

func validateIDs(kind string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one %s is required", kind)
	}
	for _, id := range ids {
		if err := ValidateID(kind, id); err != nil {
			return err
		}
	}
	return nil
}

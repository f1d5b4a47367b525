package keys

import (
	"fmt"
	"regexp"
)

var entityKeyRegexp = regexp.MustCompile(`^[tseu]:[0-9]{20}$`)

func ValidateEntityKey(key string) error {
	if !entityKeyRegexp.MatchString(key) {
		return fmt.Errorf("invalid entity key format: %q", key)
	}
	return nil
}

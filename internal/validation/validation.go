package validation

import (
	"fmt"
	"strings"

	"grove/internal/errors"
)

// FileName rejects names that can never be valid keys. The entry store layers
// its own reserved-name check on top of this.
func FileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidArgument("file name cannot be empty")
	}
	if strings.ContainsAny(name, "\x00\n") {
		return errors.InvalidArgument(fmt.Sprintf("file name %q contains control characters", name))
	}
	return nil
}

// BranchName rejects branch names that would be ambiguous against version
// ids or unusable on the command line.
func BranchName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidArgument("branch name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n\x00") {
		return errors.InvalidArgument(fmt.Sprintf("branch name %q contains whitespace", name))
	}
	return nil
}

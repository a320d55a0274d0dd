package domain

import (
	"fmt"
	"regexp"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Target identifies one (team, release) pair. Every sync operation is
// scoped to exactly one target.
type Target struct {
	Team    string
	Release string
}

// String returns "team/release"
func (t Target) String() string {
	return t.Team + "/" + t.Release
}

// Validate checks that both halves are usable as git ref components
func (t Target) Validate() error {
	if !slugRegex.MatchString(t.Team) {
		return fmt.Errorf("invalid team slug %q", t.Team)
	}
	if !slugRegex.MatchString(t.Release) {
		return fmt.Errorf("invalid release slug %q", t.Release)
	}
	return nil
}

// IsValidSlug reports whether s can be used as a team or release slug
func IsValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// Slug is the "team/release" path component used in branch names and
// document paths.
func (t Target) Slug() string {
	return t.Team + "/" + t.Release
}

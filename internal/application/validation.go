package application

import (
	"fmt"
	"strings"

	"plansync/internal/domain"
)

// ValidateRequired checks if a string field is non-empty (after trimming whitespace).
// Returns a ValidationError if the field is empty.
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		displayName := formatFieldName(fieldName)
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("%s is required", displayName),
		}
	}
	return nil
}

// formatFieldName converts field names to space-separated words for
// more readable error messages (e.g., "auditID" -> "audit ID")
func formatFieldName(fieldName string) string {
	replacements := map[string]string{
		"team":     "team",
		"release":  "release",
		"auditID":  "audit ID",
		"repoPath": "repository path",
	}

	if formatted, ok := replacements[fieldName]; ok {
		return formatted
	}

	return fieldName
}

// ValidateSlug checks that a team or release slug can be used in branch
// names and document paths.
func ValidateSlug(fieldName, value string) error {
	if err := ValidateRequired(fieldName, value); err != nil {
		return err
	}
	if !domain.IsValidSlug(value) {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("invalid %s: %s (lowercase letters, digits, '.', '_' and '-')", formatFieldName(fieldName), value),
		}
	}
	return nil
}

// ValidateTarget checks both halves of a target
func ValidateTarget(t domain.Target) error {
	if err := ValidateSlug("team", t.Team); err != nil {
		return err
	}
	return ValidateSlug("release", t.Release)
}

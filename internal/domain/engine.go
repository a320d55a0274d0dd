package domain

import "fmt"

// EngineScope is the conventional-commit scope of commits plansync
// writes itself.
const EngineScope = "plansync"

// EngineMessage builds the commit message for an engine commit
func EngineMessage(action string, target Target) string {
	return fmt.Sprintf("chore(%s): %s %s", EngineScope, action, target)
}

package gitrepo

import (
	"strings"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"

	"plansync/internal/domain"
)

// IsEngineCommit reports whether message is a conventional commit with
// the engine scope. Messages that are not conventional commits are
// human commits. Only the header line is inspected.
func IsEngineCommit(message string) bool {
	header, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	machine := parser.NewMachine(conventionalcommits.WithTypes(conventionalcommits.TypesConventional))
	msg, err := machine.Parse([]byte(header))
	if err != nil || msg == nil || !msg.Ok() {
		return false
	}
	cc, ok := msg.(*conventionalcommits.ConventionalCommit)
	if !ok || cc.Scope == nil {
		return false
	}
	return *cc.Scope == domain.EngineScope
}

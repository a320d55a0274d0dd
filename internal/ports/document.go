package ports

import "plansync/internal/domain"

// DocumentCodec converts between plan documents and their text form.
// Parse(Render(doc)) must reproduce doc apart from remote-maintained
// fields such as UpdatedAt.
type DocumentCodec interface {
	Render(doc domain.PlanDocument) ([]byte, error)
	Parse(content []byte) (domain.PlanDocument, error)

	// LocateConflicts maps conflict-marker hunks in content to items
	// and fields.
	LocateConflicts(content []byte) []ConflictRegion
}

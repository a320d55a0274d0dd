package markdown

import (
	"strings"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

// LocateConflicts maps each conflict hunk in content to the item whose
// lines it covers. Hunks inside the front matter are reported with the
// item name "metadata". Ours and Theirs hold the raw hunk sides; during
// a rebase ours is the branch being rebased onto.
func (c *Codec) LocateConflicts(content []byte) []ports.ConflictRegion {
	var (
		regions []ports.ConflictRegion
		itemID  string
		name    string

		// awaitingID is the index of a region whose heading changed; the
		// next id comment belongs to it.
		awaitingID = -1

		inFront = false
		region  *hunk
	)

	for i, line := range splitLines(content) {
		trimmed := strings.TrimSpace(line)

		if region != nil {
			switch {
			case strings.HasPrefix(line, markerBase):
				region.side = sideBase
			case strings.HasPrefix(line, markerSplit):
				region.side = sideTheirs
			case strings.HasPrefix(line, markerTheirs):
				r := region.toRegion(itemID, name, inFront)
				regions = append(regions, r)
				if region.heading != "" {
					name = region.heading
					itemID = r.ItemID
					if r.ItemID == "" {
						awaitingID = len(regions) - 1
					}
				}
				region = nil
			default:
				region.add(line)
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, markerOurs):
			region = &hunk{}
		case i == 0 && trimmed == delimiter:
			inFront = true
		case inFront && trimmed == delimiter:
			inFront = false
		case inFront:
		case strings.HasPrefix(line, epicPrefix), strings.HasPrefix(line, objectivePrefix):
			name = headingName(line)
			itemID = ""
			awaitingID = -1
		case strings.HasPrefix(trimmed, idPrefix):
			if id, ok := parseID(trimmed); ok {
				itemID = id
				if awaitingID >= 0 {
					regions[awaitingID].ItemID = id
					awaitingID = -1
				}
			}
		}
	}

	return regions
}

type side int

const (
	sideOurs side = iota
	sideBase
	sideTheirs
)

type hunk struct {
	side    side
	ours    []string
	theirs  []string
	fields  []domain.Field
	id      string
	heading string
}

func (h *hunk) add(line string) {
	switch h.side {
	case sideOurs:
		h.ours = append(h.ours, line)
	case sideTheirs:
		h.theirs = append(h.theirs, line)
	default:
		return
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, epicPrefix), strings.HasPrefix(line, objectivePrefix):
		h.addField(domain.FieldName)
		if h.heading == "" {
			h.heading = headingName(line)
		}
	case strings.HasPrefix(trimmed, idPrefix):
		if id, ok := parseID(trimmed); ok && h.id == "" {
			h.id = id
		}
	case strings.HasPrefix(trimmed, "- "):
		if f, _, ok := parseFieldLine(trimmed); ok {
			h.addField(f)
		}
	}
}

func (h *hunk) addField(f domain.Field) {
	for _, existing := range h.fields {
		if existing == f {
			return
		}
	}
	h.fields = append(h.fields, f)
}

func (h *hunk) toRegion(itemID, name string, inFront bool) ports.ConflictRegion {
	r := ports.ConflictRegion{
		ItemID:   itemID,
		ItemName: name,
		Fields:   h.fields,
		Ours:     strings.Join(h.ours, "\n"),
		Theirs:   strings.Join(h.theirs, "\n"),
	}
	if inFront {
		r.ItemID = ""
		r.ItemName = "metadata"
		r.Fields = nil
		return r
	}
	if h.heading != "" {
		r.ItemID = h.id
		r.ItemName = h.heading
	} else if h.id != "" && r.ItemID == "" {
		r.ItemID = h.id
	}
	return r
}

func headingName(line string) string {
	if strings.HasPrefix(line, epicPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(line, epicPrefix))
	}
	return strings.TrimSpace(strings.TrimPrefix(line, objectivePrefix))
}

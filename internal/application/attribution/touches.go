package attribution

import (
	"errors"
	"time"

	"plansync/internal/domain"
	"plansync/internal/ports"
)

// touchSet records, per item key and field, the latest time a human
// commit changed it. Items in commits that could not be parsed are
// recorded under the wildcard.
type touchSet struct {
	fields   map[string]map[domain.Field]time.Time
	wildcard time.Time
}

func (a *Attributor) collectTouches(commits []ports.CommitInfo) touchSet {
	ts := touchSet{fields: make(map[string]map[domain.Field]time.Time)}

	for _, c := range commits {
		if c.Engine {
			continue
		}
		at := c.TouchedAt()

		before, errBefore := a.parseRevision(c.Before)
		after, errAfter := a.parseRevision(c.After)
		if errBefore != nil || errAfter != nil {
			// Mid-edit states can be unparseable; treat the commit as
			// touching everything rather than losing an edit.
			a.logger.Warn().Str("commit", c.Hash).Msg("working commit has an unparseable document")
			if at.After(ts.wildcard) {
				ts.wildcard = at
			}
			continue
		}

		beforeIdx, afterIdx := before.Index(), after.Index()
		for key, item := range afterIdx {
			prev, existed := beforeIdx[key]
			if !existed {
				ts.mark(key, domain.FieldItem, at)
				continue
			}
			for _, f := range domain.EditableFields {
				if prev.Value(f) != item.Value(f) {
					ts.mark(key, f, at)
				}
			}
		}
		for key := range beforeIdx {
			if _, kept := afterIdx[key]; !kept {
				ts.mark(key, domain.FieldItem, at)
			}
		}
	}
	return ts
}

func (a *Attributor) parseRevision(content []byte) (domain.PlanDocument, error) {
	if len(content) == 0 {
		return domain.PlanDocument{}, nil
	}
	return a.codec.Parse(content)
}

func (ts touchSet) mark(key string, f domain.Field, at time.Time) {
	fields, ok := ts.fields[key]
	if !ok {
		fields = make(map[domain.Field]time.Time)
		ts.fields[key] = fields
	}
	if at.After(fields[f]) {
		fields[f] = at
	}
}

// touched reports whether a human changed key's field at or after
// syncedAt.
func (ts touchSet) touched(key string, f domain.Field, syncedAt time.Time) bool {
	threshold := syncedAt.Truncate(time.Second)
	if !ts.wildcard.IsZero() && !ts.wildcard.Before(threshold) {
		return true
	}
	at, ok := ts.fields[key][f]
	return ok && !at.Before(threshold)
}

func untrackedIn(err error) error {
	var untracked *domain.UntrackedItemError
	if errors.As(err, &untracked) {
		return untracked
	}
	return nil
}

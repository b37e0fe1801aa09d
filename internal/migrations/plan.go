package migrations

import (
	"github.com/shepherrrd/schemasync/internal/manifest"
)

// step is one manifest entry's worth of work: the update ids to apply in
// order and, for a version entry past the stored version, the version that
// is reached once they all succeed.
type step struct {
	ids     []string
	version *manifest.VersionUpdate
}

type updatePlan struct {
	steps []step
	// legacyTarget is set when the stored version is missing from the
	// manifest; the module jumps to it once every reference has replayed.
	legacyTarget string
}

// planUpdates walks entries against the stored version. References are
// always listed since the ledger makes them idempotent. A version entry's
// own update is listed only when it comes after the stored version, and
// never when the stored version is unknown to the manifest.
func planUpdates(entries []manifest.Entry, stored string) updatePlan {
	var p updatePlan
	last := -1
	legacy := false
	if stored != "" {
		last = manifest.IndexOf(entries, stored)
		legacy = last < 0
	}
	for i, e := range entries {
		switch e := e.(type) {
		case manifest.UpdateReference:
			p.steps = append(p.steps, step{ids: []string{e.Reference}})
		case manifest.VersionUpdate:
			s := step{ids: append([]string(nil), e.References...)}
			if !legacy && i > last {
				v := e
				s.ids = append(s.ids, v.Identifier())
				s.version = &v
			}
			p.steps = append(p.steps, s)
		}
	}
	if legacy {
		if final, ok := manifest.Final(entries); ok && final.Version != stored {
			p.legacyTarget = final.Version
		}
	}
	return p
}

// pending lists the ids of p not yet applied, once each, in order.
func (p updatePlan) pending(applied map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range p.steps {
		for _, id := range s.ids {
			if applied[id] || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

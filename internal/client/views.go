package client

import (
	"github.com/google/uuid"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

// Viewer identifies the local user a reconciler runs for.
type Viewer struct {
	ID           uuid.UUID
	DepartmentID uuid.UUID
}

// Predicate decides whether an envelope's subject belongs in a view,
// evaluated against the envelope's scope keys and the snapshot the
// entry would hold after the envelope is merged. The snapshot may be
// nil when the envelope carries none.
type Predicate func(keys domain.ScopeKeys, snapshot *domain.AppealSnapshot) bool

// Entry is one row in a view: the current snapshot plus a transient
// marker set when the last applied envelope touched this entry. The UI
// uses the marker for highlighting; ClearChanged resets it.
type Entry struct {
	Snapshot    domain.AppealSnapshot
	JustChanged bool
}

// View is an ordered, most-recent-first list of appeal snapshots keyed
// by entity id. All three role-scoped views are instances of this one
// type with different membership predicates; the merge logic lives here
// exactly once.
type View struct {
	name    string
	member  Predicate
	order   []string
	entries map[string]*Entry
}

// NewView creates an empty view with the given membership predicate.
func NewView(name string, member Predicate) *View {
	return &View{
		name:    name,
		member:  member,
		entries: make(map[string]*Entry),
	}
}

// Name returns the view's display name.
func (v *View) Name() string { return v.name }

// Len returns the number of entries.
func (v *View) Len() int { return len(v.entries) }

// Contains reports whether the entity is present.
func (v *View) Contains(entityID string) bool {
	_, ok := v.entries[entityID]
	return ok
}

// Get returns a copy of the entry for the entity, if present.
func (v *View) Get(entityID string) (Entry, bool) {
	entry, ok := v.entries[entityID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Entries returns the entries in view order, most recent first.
func (v *View) Entries() []Entry {
	out := make([]Entry, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, *v.entries[id])
	}
	return out
}

// ClearChanged resets every transient change marker.
func (v *View) ClearChanged() {
	for _, entry := range v.entries {
		entry.JustChanged = false
	}
}

// reset replaces the view's contents with fetched snapshots, preserving
// the given order. Later duplicates of an id are dropped.
func (v *View) reset(snapshots []domain.AppealSnapshot) {
	v.order = v.order[:0]
	v.entries = make(map[string]*Entry, len(snapshots))
	for _, snapshot := range snapshots {
		if _, ok := v.entries[snapshot.ID]; ok {
			continue
		}
		v.order = append(v.order, snapshot.ID)
		v.entries[snapshot.ID] = &Entry{Snapshot: snapshot}
	}
}

// apply merges one envelope into the view and reports whether the view
// changed. Applying the same envelope a second time is a no-op.
func (v *View) apply(env *domain.Envelope) bool {
	id := env.EntityID.String()

	switch env.Kind {
	case domain.EventEntityCreated:
		if !v.member(env.ScopeKeys, env.Appeal) || v.Contains(id) {
			return false
		}
		v.insertHead(id, env.Appeal)
		return true

	case domain.EventEntityUpdated:
		if entry, ok := v.entries[id]; ok {
			// Evaluate membership against the merged state, not the
			// raw envelope: a partial update may omit fields the
			// predicate needs.
			merged := entry.Snapshot
			changed := mergeSnapshot(&merged, env.Appeal)
			if !v.member(env.ScopeKeys, &merged) {
				// Predicate no longer holds, e.g. the executor was
				// reassigned away or the appeal was completed.
				return v.remove(id)
			}
			// Update in place; position is preserved so the list
			// does not jump around under the user.
			entry.Snapshot = merged
			entry.JustChanged = true
			// Same-envelope reapplication merges identical fields:
			// state is unchanged but the entry was still touched.
			return changed
		}
		if !v.member(env.ScopeKeys, env.Appeal) {
			return false
		}
		v.insertHead(id, env.Appeal)
		return true

	case domain.EventEntityDeleted:
		return v.remove(id)

	default:
		// message_appended does not affect list views.
		return false
	}
}

func (v *View) insertHead(id string, snapshot *domain.AppealSnapshot) {
	entry := &Entry{JustChanged: true}
	if snapshot != nil {
		entry.Snapshot = *snapshot
	}
	entry.Snapshot.ID = id
	v.order = append([]string{id}, v.order...)
	v.entries[id] = entry
}

func (v *View) remove(id string) bool {
	if _, ok := v.entries[id]; !ok {
		return false
	}
	delete(v.entries, id)
	for i, existing := range v.order {
		if existing == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return true
}

// mergeSnapshot copies the fields present in the partial snapshot into
// dst and reports whether any value actually changed.
func mergeSnapshot(dst *domain.AppealSnapshot, src *domain.AppealSnapshot) bool {
	if src == nil {
		return false
	}

	changed := false
	if src.Number != nil && !equalPtr(dst.Number, src.Number) {
		dst.Number, changed = src.Number, true
	}
	if src.Subject != nil && !equalPtr(dst.Subject, src.Subject) {
		dst.Subject, changed = src.Subject, true
	}
	if src.Description != nil && !equalPtr(dst.Description, src.Description) {
		dst.Description, changed = src.Description, true
	}
	if src.Status != nil && !equalPtr(dst.Status, src.Status) {
		dst.Status, changed = src.Status, true
	}
	if src.DepartmentID != nil && !equalPtr(dst.DepartmentID, src.DepartmentID) {
		dst.DepartmentID, changed = src.DepartmentID, true
	}
	if src.CreatorID != nil && !equalPtr(dst.CreatorID, src.CreatorID) {
		dst.CreatorID, changed = src.CreatorID, true
	}
	if src.ExecutorID != nil && !equalPtr(dst.ExecutorID, src.ExecutorID) {
		dst.ExecutorID, changed = src.ExecutorID, true
	}
	if src.ExecutorIDs != nil && !equalSlices(dst.ExecutorIDs, src.ExecutorIDs) {
		dst.ExecutorIDs, changed = src.ExecutorIDs, true
	}
	if src.UpdatedAt != nil && !equalPtr(dst.UpdatedAt, src.UpdatedAt) {
		dst.UpdatedAt, changed = src.UpdatedAt, true
	}
	return changed
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

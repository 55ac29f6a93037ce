package client

import (
	"sync"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

// Change describes one observable effect of applying an envelope, used
// by callers that surface updates (the watch CLI prints them).
type Change struct {
	View     string
	Kind     domain.EventKind
	EntityID string
}

// ViewData is the result of one bulk fetch of all three views.
type ViewData struct {
	MyAppeals       []domain.AppealSnapshot
	DepartmentQueue []domain.AppealSnapshot
	MyTasks         []domain.AppealSnapshot
}

// Reconciler keeps the three role-scoped views consistent with server
// state using only the event stream plus bulk fetches. One envelope may
// land in zero, one, two, or all three views at once; each view decides
// independently through its membership predicate.
type Reconciler struct {
	mu       sync.Mutex
	viewer   Viewer
	views    []*View
	messages map[string][]domain.MessageSnapshot
}

// NewReconciler creates a reconciler for the given viewer with empty
// views. Populate them with Reset before applying envelopes.
func NewReconciler(viewer Viewer) *Reconciler {
	me := viewer.ID.String()
	dept := viewer.DepartmentID.String()

	myAppeals := NewView("my appeals", func(keys domain.ScopeKeys, _ *domain.AppealSnapshot) bool {
		return keys.CreatorID.String() == me
	})
	departmentQueue := NewView("department queue", func(keys domain.ScopeKeys, _ *domain.AppealSnapshot) bool {
		return keys.DepartmentID.String() == dept
	})
	myTasks := NewView("my tasks", func(keys domain.ScopeKeys, snapshot *domain.AppealSnapshot) bool {
		// A finished task is no longer the executor's concern; the
		// creator and department views keep their own history.
		if !openSnapshot(snapshot) {
			return false
		}
		if keys.ExecutorID != nil && keys.ExecutorID.String() == me {
			return true
		}
		for _, id := range keys.AssignedExecutorIDs {
			if id.String() == me {
				return true
			}
		}
		return false
	})

	return &Reconciler{
		viewer:   viewer,
		views:    []*View{myAppeals, departmentQueue, myTasks},
		messages: make(map[string][]domain.MessageSnapshot),
	}
}

// openSnapshot reports whether the snapshot describes an appeal still
// in flight. Missing status information is treated as open.
func openSnapshot(snapshot *domain.AppealSnapshot) bool {
	if snapshot == nil || snapshot.Status == nil {
		return true
	}
	return domain.IsOpenStatus(domain.AppealStatus(*snapshot.Status))
}

// Apply merges one envelope into every view and returns the changes it
// caused. Applying the same envelope twice returns no changes the
// second time.
func (r *Reconciler) Apply(env domain.Envelope) []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []Change

	if env.Kind == domain.EventMessageAppended {
		if r.appendMessage(&env) {
			changes = append(changes, Change{
				Kind:     env.Kind,
				EntityID: env.EntityID.String(),
			})
		}
		return changes
	}

	for _, view := range r.views {
		if view.apply(&env) {
			changes = append(changes, Change{
				View:     view.Name(),
				Kind:     env.Kind,
				EntityID: env.EntityID.String(),
			})
		}
	}

	if env.Kind == domain.EventEntityDeleted {
		delete(r.messages, env.EntityID.String())
	}

	return changes
}

// appendMessage stores the message if its appeal is loaded in any view,
// deduplicating by message id.
func (r *Reconciler) appendMessage(env *domain.Envelope) bool {
	if env.Message == nil {
		return false
	}

	id := env.EntityID.String()
	loaded := false
	for _, view := range r.views {
		if view.Contains(id) {
			loaded = true
			break
		}
	}
	if !loaded {
		return false
	}

	for _, existing := range r.messages[id] {
		if existing.ID == env.Message.ID {
			return false
		}
	}
	r.messages[id] = append(r.messages[id], *env.Message)
	return true
}

// Reset replaces all local state with freshly fetched views. This is
// the authoritative resync point after a reconnect: envelopes observed
// between the disconnect and the reset are superseded, not merged.
func (r *Reconciler) Reset(data ViewData) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.views[0].reset(data.MyAppeals)
	r.views[1].reset(data.DepartmentQueue)
	r.views[2].reset(data.MyTasks)
	r.messages = make(map[string][]domain.MessageSnapshot)
}

// MyAppeals returns the "my appeals" view entries, most recent first.
func (r *Reconciler) MyAppeals() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[0].Entries()
}

// DepartmentQueue returns the "department queue" view entries.
func (r *Reconciler) DepartmentQueue() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[1].Entries()
}

// MyTasks returns the "my tasks" view entries.
func (r *Reconciler) MyTasks() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[2].Entries()
}

// Messages returns the message thread accumulated for an appeal.
func (r *Reconciler) Messages(appealID string) []domain.MessageSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MessageSnapshot(nil), r.messages[appealID]...)
}

// ClearChanged resets the transient change markers in all views.
func (r *Reconciler) ClearChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, view := range r.views {
		view.ClearChanged()
	}
}

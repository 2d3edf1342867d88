// Package admission implements the session admission tracker: the
// process-wide gate deciding whether a session's declared peak fits within
// remaining global capacity, independent of and coarser-grained than the
// per-ticket resource monitor.
package admission

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salus-sched/salus/internal/salog"
	"github.com/salus-sched/salus/resources"
	"github.com/salus-sched/salus/ticket"
)

// Tracker holds limits, admitted sessions, and a peak-ordered view over
// them, all under one mutex. Unlike the source's process-wide singleton, a
// Tracker is an explicit instance constructed by its host; nothing in this
// package reaches for hidden global state.
type Tracker struct {
	mu sync.Mutex

	disabled   bool
	limits     resources.Resources
	sessions   map[ticket.Ticket]ResourceMap
	peak       []ticket.Ticket // sorted by temporaryMemoryScalar descending
	nextTicket ticket.Ticket

	log *zap.Logger
}

// New constructs a Tracker capped at limits (typically devices.Limits(...)
// from device enumeration, optionally narrowed by a configured cap before
// being passed in here). A nil logger is replaced with a no-op logger.
func New(limits resources.Resources, log *zap.Logger) *Tracker {
	if log == nil {
		log = salog.Noop()
	}
	return &Tracker{
		limits:     resources.RemoveInvalid(limits.Clone()),
		sessions:   make(map[ticket.Ticket]ResourceMap),
		nextTicket: 1,
		log:        log,
	}
}

// SetDisabled toggles admission gating. While disabled, Admit always
// succeeds and no longer consults limits, though tickets are still issued
// and sessions still tracked, for symmetry with Free and Usage.
func (tr *Tracker) SetDisabled(disabled bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.disabled = disabled
}

// Disabled reports the current gating state.
func (tr *Tracker) Disabled() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.disabled
}

// Admit decides whether cap may be admitted. On success it returns a fresh
// ticket and true. On denial it returns ticket.Invalid and false; no state
// changes.
func (tr *Tracker) Admit(cap ResourceMap) (ticket.Ticket, bool) {
	cap = ResourceMap{
		Temporary:  resources.RemoveInvalid(cap.Temporary.Clone()),
		Persistent: resources.RemoveInvalid(cap.Persistent.Clone()),
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.disabled {
		return tr.admitUnconditionallyLocked(cap), true
	}

	required := tr.requiredLocked(cap)
	if !resources.Contains(tr.limits, required) {
		tr.log.Debug("admission denied", zap.Any("required", required), zap.Any("limits", tr.limits))
		return ticket.Invalid, false
	}
	return tr.admitUnconditionallyLocked(cap), true
}

// requiredLocked computes cap.Persistent + max(cap.Temporary, peak_head's
// Temporary) + the persistent contribution of every currently admitted
// session, element-wise. peak_head is the session with the largest
// temporaryMemoryScalar, or the zero value if none are admitted yet.
func (tr *Tracker) requiredLocked(cap ResourceMap) resources.Resources {
	required := make(resources.Resources)
	resources.Merge(required, cap.Persistent, false)

	var peakTemp resources.Resources
	if len(tr.peak) > 0 {
		peakTemp = tr.sessions[tr.peak[0]].Temporary
	}
	resources.Merge(required, resources.Max(cap.Temporary.Clone(), peakTemp), false)

	for _, s := range tr.sessions {
		resources.Merge(required, s.Persistent, false)
	}
	return required
}

func (tr *Tracker) admitUnconditionallyLocked(cap ResourceMap) ticket.Ticket {
	t := tr.nextTicket
	tr.nextTicket++
	tr.sessions[t] = cap
	tr.insertPeakLocked(t)
	return t
}

// insertPeakLocked inserts t into the peak-ordered slice, keeping it sorted
// by temporaryMemoryScalar descending, ties broken by ascending ticket. The
// slice holds tickets, not pointers into sessions, per the source's own
// guidance against back-references into a map.
func (tr *Tracker) insertPeakLocked(t ticket.Ticket) {
	scalar := tr.sessions[t].temporaryMemoryScalar()
	i := sort.Search(len(tr.peak), func(i int) bool {
		other := tr.sessions[tr.peak[i]]
		if other.temporaryMemoryScalar() != scalar {
			return other.temporaryMemoryScalar() < scalar
		}
		return tr.peak[i] >= t
	})
	tr.peak = append(tr.peak, 0)
	copy(tr.peak[i+1:], tr.peak[i:])
	tr.peak[i] = t
}

func (tr *Tracker) removeFromPeakLocked(t ticket.Ticket) {
	for i, candidate := range tr.peak {
		if candidate == t {
			tr.peak = append(tr.peak[:i], tr.peak[i+1:]...)
			return
		}
	}
}

// AcceptAdmission attaches handle to ticket t's session entry. Calling it
// again with the same handle is a no-op; calling it with a different handle
// is an error, since a session's persistent handle is assigned exactly once.
func (tr *Tracker) AcceptAdmission(t ticket.Ticket, handle string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	s, ok := tr.sessions[t]
	if !ok {
		return fmt.Errorf("admission: accept_admission: unknown ticket %d", t)
	}
	if s.PersistentHandle == "" {
		s.PersistentHandle = handle
		tr.sessions[t] = s
		return nil
	}
	if s.PersistentHandle != handle {
		return fmt.Errorf("admission: accept_admission: ticket %d already bound to handle %q, got %q",
			t, s.PersistentHandle, handle)
	}
	return nil
}

// Usage returns a snapshot of ticket t's session entry, or ok=false if t is
// unknown.
func (tr *Tracker) Usage(t ticket.Ticket) (ResourceMap, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	s, ok := tr.sessions[t]
	if !ok {
		return ResourceMap{}, false
	}
	return s.clone(), true
}

// Free removes ticket t's session entirely. Unknown tickets are a no-op.
func (tr *Tracker) Free(t ticket.Ticket) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, ok := tr.sessions[t]; !ok {
		return
	}
	delete(tr.sessions, t)
	tr.removeFromPeakLocked(t)
}

// Remaining returns a snapshot of limits minus the currently committed
// admission cost (every session's persistent contribution, plus the single
// largest temporary declaration among them) — the same quantity Admit tests
// a new session's requirement against. Exposed for introspection.
func (tr *Tracker) Remaining() resources.Resources {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	committed := make(resources.Resources)
	for _, s := range tr.sessions {
		resources.Merge(committed, s.Persistent, false)
	}
	if len(tr.peak) > 0 {
		resources.Merge(committed, tr.sessions[tr.peak[0]].Temporary, false)
	}
	remaining := tr.limits.Clone()
	resources.Subtract(remaining, committed, false)
	return remaining
}

// NewHandle generates a fresh random session handle, for callers that don't
// otherwise have a natural identifier to pass to AcceptAdmission.
func NewHandle() string {
	return uuid.NewString()
}

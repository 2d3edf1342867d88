// Package monitor implements the resource monitor: the thread-safe
// custodian of device capacity limits, staged reservations, and in-use
// amounts keyed by ticket. It is the two-phase (pre-allocate / allocate)
// accounting core described by the admission specification.
package monitor

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/salus-sched/salus/internal/salog"
	"github.com/salus-sched/salus/resources"
	"github.com/salus-sched/salus/ticket"
)

// Monitor holds limits, staging, and using under a single mutex. All public
// mutators acquire the mutex; pure queries do too, since even a query walks
// shared maps. Operations exposed through LockedProxy (see locked_proxy.go)
// reuse the same *Locked implementations below without re-acquiring mu.
type Monitor struct {
	mu sync.Mutex

	limits     resources.Resources
	staging    map[ticket.Ticket]resources.Resources
	using      map[ticket.Ticket]resources.Resources
	nextTicket ticket.Ticket

	log *zap.Logger
}

// New constructs an empty Monitor. Call InitializeLimits or
// InitializeLimitsCapped before issuing reservations. A nil logger is
// replaced with a no-op logger.
func New(log *zap.Logger) *Monitor {
	if log == nil {
		log = salog.Noop()
	}
	return &Monitor{
		staging:    make(map[ticket.Ticket]resources.Resources),
		using:      make(map[ticket.Ticket]resources.Resources),
		nextTicket: 1,
		log:        log,
	}
}

// InitializeLimits populates limits from an already-enumerated Resources
// map (typically devices.Limits(enumerator.Enumerate())). The device
// registry itself is queried exactly once, by the caller, before this is
// invoked; the Monitor never consults it again.
func (m *Monitor) InitializeLimits(limits resources.Resources) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = resources.RemoveInvalid(limits.Clone())
}

// InitializeLimitsCapped populates limits from the enumerated Resources,
// then takes the element-wise minimum with cap. Tags present in limits but
// absent from cap are left unconstrained; tags present in cap but absent
// from limits are dropped (the hardware does not have that device/type at
// all, so there is nothing to cap).
func (m *Monitor) InitializeLimitsCapped(limits, cap resources.Resources) {
	m.mu.Lock()
	defer m.mu.Unlock()
	capped := make(resources.Resources, len(limits))
	for tag, qty := range limits {
		if c, ok := cap[tag]; ok && c < qty {
			capped[tag] = c
		} else {
			capped[tag] = qty
		}
	}
	m.limits = resources.RemoveInvalid(capped)
}

// headroomLocked computes limits - Σstaging - Σusing, clamped at zero per
// tag. Caller must hold m.mu.
func (m *Monitor) headroomLocked() resources.Resources {
	headroom := m.limits.Clone()
	for _, s := range m.staging {
		resources.Subtract(headroom, s, false)
	}
	for _, u := range m.using {
		resources.Subtract(headroom, u, false)
	}
	return headroom
}

// Headroom returns a snapshot of limits − Σstaging − Σusing, the same
// quantity pre_allocate tests requests against. Exposed for introspection
// (e.g. the gossip announcer's capacity snapshots); it never itself mutates
// state.
func (m *Monitor) Headroom() resources.Resources {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headroomLocked()
}

// PreAllocate attempts to reserve req. On success it returns a fresh ticket
// and a nil missing map. On failure it returns ticket.Invalid and a missing
// map naming, for every over-subscribed tag, how much additional capacity
// would have been needed.
//
// req is first passed through RemoveInvalid; if it cleans to empty, the
// call still succeeds and issues a ticket, but nothing is recorded in
// staging for it — a legal no-op reservation, to keep the ticket-issuing
// path uniform for callers that don't yet know their exact requirement.
func (m *Monitor) PreAllocate(req resources.Resources) (ticket.Ticket, resources.Resources) {
	req = resources.RemoveInvalid(req.Clone())

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preAllocateLocked(req)
}

func (m *Monitor) preAllocateLocked(req resources.Resources) (ticket.Ticket, resources.Resources) {
	headroom := m.headroomLocked()
	if resources.Contains(headroom, req) {
		t := m.nextTicket
		m.nextTicket++
		if len(req) > 0 {
			m.staging[t] = req
		}
		return t, nil
	}

	missing := make(resources.Resources)
	for tag, want := range req {
		if have := headroom[tag]; want > have {
			missing[tag] = want - have
		}
	}
	m.log.Debug("pre-allocate denied", zap.Any("missing", missing))
	return ticket.Invalid, missing
}

// Allocate draws res against ticket t's staged reservation. If res fits
// within what's staged, it moves cleanly from staging to using and returns
// true. Otherwise the allocation still takes effect — using[t] is charged
// the full amount, staging[t] is drained, and the uncovered excess is
// subtracted directly (and permanently, even across a later Free) from
// limits — but Allocate returns false so the caller knows the task ran over
// its declared budget.
func (m *Monitor) Allocate(t ticket.Ticket, res resources.Resources) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocateLocked(t, res)
}

func (m *Monitor) allocateLocked(t ticket.Ticket, res resources.Resources) bool {
	res = resources.RemoveInvalid(res.Clone())

	staged := m.staging[t]
	if resources.Contains(staged, res) {
		resources.Subtract(staged, res, false)
		if len(staged) == 0 {
			delete(m.staging, t)
		} else {
			m.staging[t] = staged
		}
		m.chargeUsingLocked(t, res)
		return true
	}

	excess := make(resources.Resources)
	for tag, want := range res {
		if have := staged[tag]; want > have {
			excess[tag] = want - have
		}
	}
	resources.Subtract(staged, res, false)
	if len(staged) == 0 {
		delete(m.staging, t)
	} else {
		m.staging[t] = staged
	}
	m.chargeUsingLocked(t, res)
	resources.Subtract(m.limits, excess, false)
	m.log.Warn("allocate over-draw charged against limits",
		zap.Uint64("ticket", uint64(t)), zap.Any("excess", excess))
	return false
}

func (m *Monitor) chargeUsingLocked(t ticket.Ticket, res resources.Resources) {
	u, ok := m.using[t]
	if !ok {
		u = make(resources.Resources, len(res))
	}
	resources.Merge(u, res, false)
	m.using[t] = u
}

// FreeStaging releases any resources still staged (but never allocated) for
// ticket t. If using[t] is also empty or absent afterward, the ticket is
// erased entirely.
func (m *Monitor) FreeStaging(t ticket.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeStagingLocked(t)
}

func (m *Monitor) freeStagingLocked(t ticket.Ticket) {
	delete(m.staging, t)
	if len(m.using[t]) == 0 {
		delete(m.using, t)
	}
}

// Free subtracts res from ticket t's in-use amount, clamped at zero.
// Freeing an unknown or already-drained ticket is a no-op that returns
// true, matching the "double free is fine" error policy. Returns true iff,
// after the subtraction, the ticket holds nothing in either staging or
// using — at which point it is erased.
func (m *Monitor) Free(t ticket.Ticket, res resources.Resources) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeLocked(t, res)
}

func (m *Monitor) freeLocked(t ticket.Ticket, res resources.Resources) bool {
	res = resources.RemoveInvalid(res.Clone())

	u, ok := m.using[t]
	if !ok {
		if len(m.staging[t]) > 0 {
			return false
		}
		m.log.Debug("free of unknown or drained ticket is a no-op", zap.Uint64("ticket", uint64(t)))
		return true
	}

	resources.Subtract(u, res, false)
	if len(u) == 0 {
		delete(m.using, t)
	} else {
		m.using[t] = u
	}

	drained := len(m.staging[t]) == 0 && len(m.using[t]) == 0
	if drained {
		delete(m.staging, t)
		delete(m.using, t)
	}
	return drained
}

// QueryUsage returns a snapshot of ticket t's in-use resources, or ok=false
// if t is unknown or holds nothing in using.
func (m *Monitor) QueryUsage(t ticket.Ticket) (resources.Resources, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryUsageLocked(t)
}

func (m *Monitor) queryUsageLocked(t ticket.Ticket) (resources.Resources, bool) {
	u, ok := m.using[t]
	if !ok || len(u) == 0 {
		return nil, false
	}
	return u.Clone(), true
}

// QueryStaging returns a snapshot of ticket t's staged (not yet allocated)
// resources, or ok=false if t is unknown or holds nothing in staging.
func (m *Monitor) QueryStaging(t ticket.Ticket) (resources.Resources, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryStagingLocked(t)
}

func (m *Monitor) queryStagingLocked(t ticket.Ticket) (resources.Resources, bool) {
	s, ok := m.staging[t]
	if !ok || len(s) == 0 {
		return nil, false
	}
	return s.Clone(), true
}

// QueryUsages returns the element-wise sum of using[t] for every live
// ticket named in tickets. Unknown tickets contribute nothing.
func (m *Monitor) QueryUsages(tickets []ticket.Ticket) resources.Resources {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := make(resources.Resources)
	for _, t := range tickets {
		if u, ok := m.using[t]; ok {
			resources.Merge(sum, u, false)
		}
	}
	return sum
}

// Victim pairs a candidate ticket with its scalar memory footprint, for
// eviction ranking.
type Victim struct {
	Usage  int64
	Ticket ticket.Ticket
}

// SortVictim ranks the live tickets among candidates by total MEMORY
// quantity (summed across staging and using, across all devices),
// descending, with ties broken by ascending ticket (older reservations
// evicted first). This is ranking only: eviction itself is external
// policy, matching the base spec's explicit exclusion of any scheduling
// policy from the core.
func (m *Monitor) SortVictim(candidates []ticket.Ticket) []Victim {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Victim, 0, len(candidates))
	for _, t := range candidates {
		s, sok := m.staging[t]
		u, uok := m.using[t]
		if !sok && !uok {
			continue
		}
		var mem int64
		for tag, qty := range s {
			if tag.Type == resources.Memory {
				mem += qty
			}
		}
		for tag, qty := range u {
			if tag.Type == resources.Memory {
				mem += qty
			}
		}
		out = append(out, Victim{Usage: mem, Ticket: t})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Usage != out[j].Usage {
			return out[i].Usage > out[j].Usage
		}
		return out[i].Ticket < out[j].Ticket
	})
	return out
}

// Lock returns a LockedProxy holding the monitor's mutex for the caller to
// bundle multiple operations (e.g. QueryStaging then Allocate) into one
// atomic critical section. See locked_proxy.go.
func (m *Monitor) Lock() *LockedProxy {
	m.mu.Lock()
	return newLockedProxy(m)
}

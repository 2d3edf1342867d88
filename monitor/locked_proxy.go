package monitor

import (
	"sync"

	"github.com/salus-sched/salus/resources"
	"github.com/salus-sched/salus/ticket"
)

// noCopy triggers `go vet`'s copylocks check if a LockedProxy value is ever
// copied by value instead of passed as the pointer Lock returns, the Go
// equivalent of the source's "copy is forbidden" RAII contract.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// LockedProxy is a scoped, exclusive view of a Monitor: it holds the
// monitor's mutex for its entire lifetime so that a caller can compose
// several operations (typically QueryStaging followed by Allocate) into one
// atomic critical section. Release must be called exactly once; it is safe
// to call more than once (the second and later calls are no-ops) but it is
// a programming error to use a LockedProxy after calling Release.
//
// There is no move-only ownership transfer in Go the way the source's C++
// RAII type has; a LockedProxy is used by reference (it is always handed
// out as a *LockedProxy) and must never be copied or used concurrently from
// two goroutines — the embedded noCopy documents and partially enforces
// that via go vet.
type LockedProxy struct {
	_ noCopy

	mon      *Monitor
	released sync.Once
}

func newLockedProxy(m *Monitor) *LockedProxy {
	return &LockedProxy{mon: m}
}

// Release unlocks the underlying monitor. Safe to call multiple times;
// only the first call has any effect. Callers should typically `defer
// proxy.Release()` immediately after `Lock()`.
func (p *LockedProxy) Release() {
	p.released.Do(func() {
		p.mon.mu.Unlock()
	})
}

// Allocate is LockedProxy's equivalent of Monitor.Allocate, operating on the
// already-held lock instead of acquiring it again.
func (p *LockedProxy) Allocate(t ticket.Ticket, res resources.Resources) bool {
	return p.mon.allocateLocked(t, res)
}

// Free is LockedProxy's equivalent of Monitor.Free.
func (p *LockedProxy) Free(t ticket.Ticket, res resources.Resources) bool {
	return p.mon.freeLocked(t, res)
}

// QueryStaging is LockedProxy's equivalent of Monitor.QueryStaging.
func (p *LockedProxy) QueryStaging(t ticket.Ticket) (resources.Resources, bool) {
	return p.mon.queryStagingLocked(t)
}

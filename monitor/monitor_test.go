package monitor

import (
	"testing"

	"github.com/salus-sched/salus/resources"
	"github.com/salus-sched/salus/ticket"
)

func newTestMonitor(limits resources.Resources) *Monitor {
	m := New(nil)
	m.InitializeLimits(limits)
	return m
}

func TestHappyPath(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})

	t1, missing := m.PreAllocate(resources.Resources{resources.GPU0Memory: 300})
	if t1 != 1 || missing != nil {
		t.Fatalf("PreAllocate(300) = (%d, %v), want (1, nil)", t1, missing)
	}

	t2, missing := m.PreAllocate(resources.Resources{resources.GPU0Memory: 600})
	if t2 != 2 || missing != nil {
		t.Fatalf("PreAllocate(600) = (%d, %v), want (2, nil)", t2, missing)
	}

	t3, missing := m.PreAllocate(resources.Resources{resources.GPU0Memory: 200})
	if t3 != ticket.Invalid {
		t.Fatalf("PreAllocate(200) unexpectedly succeeded: ticket %d", t3)
	}
	if missing[resources.GPU0Memory] != 100 {
		t.Fatalf("missing = %v, want GPU0Memory: 100", missing)
	}

	if ok := m.Allocate(t1, resources.Resources{resources.GPU0Memory: 300}); !ok {
		t.Fatalf("Allocate(t1, 300) = false, want true")
	}
	if drained := m.Free(t1, resources.Resources{resources.GPU0Memory: 300}); !drained {
		t.Fatalf("Free(t1, 300) = false, want true (ticket drained)")
	}

	t4, missing := m.PreAllocate(resources.Resources{resources.GPU0Memory: 200})
	if t4 != 3 || missing != nil {
		t.Fatalf("retry PreAllocate(200) = (%d, %v), want (3, nil)", t4, missing)
	}
}

func TestOverDraw(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})

	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 500})

	ok := m.Allocate(t1, resources.Resources{resources.GPU0Memory: 700})
	if ok {
		t.Fatalf("Allocate over-draw returned true, want false")
	}

	usage, live := m.QueryUsage(t1)
	if !live || usage[resources.GPU0Memory] != 700 {
		t.Fatalf("QueryUsage(t1) = (%v, %v), want (700, true)", usage, live)
	}
	if staged, ok := m.QueryStaging(t1); ok {
		t.Fatalf("staging(t1) = %v, want drained", staged)
	}

	_, missing := m.PreAllocate(resources.Resources{resources.GPU0Memory: 400})
	if missing[resources.GPU0Memory] != 300 {
		t.Fatalf("missing after over-draw = %v, want GPU0Memory: 300", missing)
	}
}

func TestOverDrawPenaltyPersistsAcrossFree(t *testing.T) {
	// Open Question (b): the excess subtracted from limits during an
	// over-draw is not restored by a later Free. This test documents and
	// pins that behavior.
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})

	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 500})
	m.Allocate(t1, resources.Resources{resources.GPU0Memory: 700})
	m.Free(t1, resources.Resources{resources.GPU0Memory: 700})

	t2, missing := m.PreAllocate(resources.Resources{resources.GPU0Memory: 900})
	if t2 != ticket.Invalid {
		t.Fatalf("PreAllocate(900) unexpectedly succeeded after Free; the over-draw penalty should persist")
	}
	if missing[resources.GPU0Memory] != 100 {
		t.Fatalf("missing = %v, want GPU0Memory: 100 (limits permanently reduced to 800)", missing)
	}
}

func TestVictimRanking(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 10000})

	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 300})
	t2, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 800})
	t3, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 500})

	m.Allocate(t1, resources.Resources{resources.GPU0Memory: 300})
	m.Allocate(t2, resources.Resources{resources.GPU0Memory: 800})
	m.Allocate(t3, resources.Resources{resources.GPU0Memory: 500})

	got := m.SortVictim([]ticket.Ticket{t1, t2, t3})
	want := []Victim{{800, t2}, {500, t3}, {300, t1}}

	if len(got) != len(want) {
		t.Fatalf("SortVictim len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortVictim[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestVictimRankingTieBreaksByAscendingTicket(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 10000})

	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 500})
	t2, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 500})
	m.Allocate(t1, resources.Resources{resources.GPU0Memory: 500})
	m.Allocate(t2, resources.Resources{resources.GPU0Memory: 500})

	got := m.SortVictim([]ticket.Ticket{t2, t1})
	if got[0].Ticket != t1 || got[1].Ticket != t2 {
		t.Fatalf("SortVictim tie order = %v, want [t1, t2] (ascending ticket)", got)
	}
}

func TestSortVictimSkipsDeadTickets(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})
	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 100})
	m.FreeStaging(t1)

	got := m.SortVictim([]ticket.Ticket{t1, 999})
	if len(got) != 0 {
		t.Fatalf("SortVictim over dead tickets = %v, want empty", got)
	}
}

func TestFreeUnknownTicketIsNoOp(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})
	if ok := m.Free(42, resources.Resources{resources.GPU0Memory: 5}); !ok {
		t.Fatalf("Free(unknown) = false, want true (no-op)")
	}
}

func TestPreAllocateEmptyRequestIsLegalNoOp(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})
	t1, missing := m.PreAllocate(resources.Resources{resources.GPU0Memory: 0})
	if t1 == ticket.Invalid || missing != nil {
		t.Fatalf("PreAllocate(empty) = (%d, %v), want a valid ticket and nil missing", t1, missing)
	}
	if _, ok := m.QueryStaging(t1); ok {
		t.Fatalf("empty PreAllocate unexpectedly staged something")
	}
}

func TestInitializeLimitsCapped(t *testing.T) {
	m := New(nil)
	hw := resources.Resources{resources.GPU0Memory: 2000, resources.GPU1Memory: 500}
	cap := resources.Resources{resources.GPU0Memory: 1000, resources.CPU0Memory: 999}

	m.InitializeLimitsCapped(hw, cap)

	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 1000})
	if t1 == ticket.Invalid {
		t.Fatalf("GPU0Memory capped to 1000 should admit exactly 1000")
	}
	_, missing := m.PreAllocate(resources.Resources{resources.GPU1Memory: 501})
	if missing[resources.GPU1Memory] != 1 {
		t.Fatalf("GPU1Memory should remain unconstrained at hardware's 500, missing=%v", missing)
	}
}

func TestLockedProxyAtomicity(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})
	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 500})

	proxy := m.Lock()
	staged, ok := proxy.QueryStaging(t1)
	if !ok || staged[resources.GPU0Memory] != 500 {
		t.Fatalf("QueryStaging via LockedProxy = (%v, %v), want (500, true)", staged, ok)
	}

	done := make(chan struct{})
	go func() {
		m.PreAllocate(resources.Resources{resources.GPU0Memory: 500})
		close(done)
	}()

	if !proxy.Allocate(t1, resources.Resources{resources.GPU0Memory: 500}) {
		t.Fatalf("Allocate via LockedProxy = false, want true")
	}
	proxy.Release()

	<-done // must not deadlock: PreAllocate only proceeds after Release
}

func TestQueryUsagesSumsAcrossTickets(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})
	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 200})
	t2, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 300})
	m.Allocate(t1, resources.Resources{resources.GPU0Memory: 200})
	m.Allocate(t2, resources.Resources{resources.GPU0Memory: 300})

	sum := m.QueryUsages([]ticket.Ticket{t1, t2, 999})
	if sum[resources.GPU0Memory] != 500 {
		t.Fatalf("QueryUsages = %v, want GPU0Memory: 500", sum)
	}
}

func TestDebugStringIsDeterministic(t *testing.T) {
	m := newTestMonitor(resources.Resources{resources.GPU0Memory: 1000})
	t1, _ := m.PreAllocate(resources.Resources{resources.GPU0Memory: 200})
	m.Allocate(t1, resources.Resources{resources.GPU0Memory: 200})

	a := m.DebugString()
	b := m.DebugString()
	if a != b {
		t.Fatalf("DebugString not deterministic:\n%s\nvs\n%s", a, b)
	}
	if a == "" {
		t.Fatal("DebugString empty")
	}
}

package monitor

import (
	"sort"
	"strconv"
	"strings"

	"github.com/salus-sched/salus/resources"
	"github.com/salus-sched/salus/ticket"
)

// DebugString renders limits, then per-ticket staging and using blocks,
// sorted by ticket. Deterministic given identical state, so test oracles
// can diff it directly.
func (m *Monitor) DebugString() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	b.WriteString("limits:\n")
	b.WriteString(resources.DebugString(m.limits, "  "))

	for _, t := range sortedLiveTickets(m.staging, m.using) {
		b.WriteString("ticket ")
		b.WriteString(strconv.FormatUint(uint64(t), 10))
		b.WriteString(":\n")
		if s, ok := m.staging[t]; ok && len(s) > 0 {
			b.WriteString("  staging:\n")
			b.WriteString(resources.DebugString(s, "    "))
		}
		if u, ok := m.using[t]; ok && len(u) > 0 {
			b.WriteString("  using:\n")
			b.WriteString(resources.DebugString(u, "    "))
		}
	}
	return b.String()
}

func sortedLiveTickets(staging, using map[ticket.Ticket]resources.Resources) []ticket.Ticket {
	seen := make(map[ticket.Ticket]struct{}, len(staging)+len(using))
	for t := range staging {
		seen[t] = struct{}{}
	}
	for t := range using {
		seen[t] = struct{}{}
	}
	out := make([]ticket.Ticket, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

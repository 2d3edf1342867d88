package admission

import (
	"sort"
	"strconv"
	"strings"

	"github.com/salus-sched/salus/resources"
	"github.com/salus-sched/salus/ticket"
)

// DebugString renders limits, the disabled flag, and then every admitted
// session sorted by ticket, deterministic given identical state.
func (tr *Tracker) DebugString() string {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var b strings.Builder
	b.WriteString("limits:\n")
	b.WriteString(resources.DebugString(tr.limits, "  "))
	b.WriteString("disabled: ")
	b.WriteString(strconv.FormatBool(tr.disabled))
	b.WriteString("\n")

	tickets := make([]ticket.Ticket, 0, len(tr.sessions))
	for t := range tr.sessions {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })

	for _, t := range tickets {
		s := tr.sessions[t]
		b.WriteString("session ")
		b.WriteString(strconv.FormatUint(uint64(t), 10))
		b.WriteString(":\n")
		if s.PersistentHandle != "" {
			b.WriteString("  handle: ")
			b.WriteString(s.PersistentHandle)
			b.WriteString("\n")
		}
		b.WriteString("  temporary:\n")
		b.WriteString(resources.DebugString(s.Temporary, "    "))
		b.WriteString("  persistent:\n")
		b.WriteString(resources.DebugString(s.Persistent, "    "))
	}
	return b.String()
}

package admission

import "github.com/salus-sched/salus/resources"

// ResourceMap is a session's declared peak: the temporary resources it
// expects to hold at its busiest moment, the resources it holds for its
// entire lifetime, and (once assigned) the opaque handle naming the admitted
// session.
type ResourceMap struct {
	Temporary        resources.Resources
	Persistent       resources.Resources
	PersistentHandle string
}

func (rm ResourceMap) clone() ResourceMap {
	return ResourceMap{
		Temporary:        rm.Temporary.Clone(),
		Persistent:       rm.Persistent.Clone(),
		PersistentHandle: rm.PersistentHandle,
	}
}

// temporaryMemoryScalar sums the MEMORY-typed quantities of Temporary across
// all devices, the scalar used to order the peak list and to pick the
// current peak_head when computing a new admission's required headroom.
func (rm ResourceMap) temporaryMemoryScalar() int64 {
	var mem int64
	for tag, qty := range rm.Temporary {
		if tag.Type == resources.Memory {
			mem += qty
		}
	}
	return mem
}

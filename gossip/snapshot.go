package gossip

import (
	"encoding/json"
	"time"

	tpb "google.golang.org/protobuf/types/known/timestamppb"

	"github.com/salus-sched/salus/resources"
)

// Snapshot is the payload published on the capacity-gossip topic: a node's
// current headroom and remaining admission capacity, plus an expiry after
// which a receiver should discard it. It carries no ticket or session
// identity — it is advisory, read-only information for peers deciding where
// else to try, never an input to any admission decision made by this
// process.
type Snapshot struct {
	Node                     string              `json:"node"`
	Headroom                 resources.Resources `json:"headroom"`
	RemainingSessionCapacity resources.Resources `json:"remaining_session_capacity"`
	ExpiresAt                *tpb.Timestamp      `json:"expires_at"`
}

// newSnapshot stamps a Snapshot with an expiry ttl from now.
func newSnapshot(node string, headroom, remaining resources.Resources, ttl time.Duration) Snapshot {
	return Snapshot{
		Node:                     node,
		Headroom:                 headroom,
		RemainingSessionCapacity: remaining,
		ExpiresAt:                tpb.New(time.Now().Add(ttl)),
	}
}

// Expired reports whether this snapshot's TTL has elapsed.
func (s Snapshot) Expired() bool {
	return s.ExpiresAt == nil || s.ExpiresAt.AsTime().Before(time.Now())
}

// marshal/unmarshal use encoding/json rather than proto.Marshal: this
// message is not one of the teacher's protoc-generated types (no .proto
// definition or generated Go bindings ships with this repository), but
// ExpiresAt is still a genuine google.golang.org/protobuf/types/known
// value, following the teacher's exact `tpb "...timestamppb"` /
// `tpb.New(...)` idiom for lease expirations.
func (s Snapshot) marshal() ([]byte, error) { return json.Marshal(s) }

func unmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	err := json.Unmarshal(data, &s)
	return s, err
}

package gossip

import (
	"testing"
	"time"

	"github.com/salus-sched/salus/resources"
)

func TestSnapshotRoundTrip(t *testing.T) {
	snap := newSnapshot("node-a", resources.Resources{resources.GPU0Memory: 200}, resources.Resources{resources.GPU0Memory: 800}, time.Minute)

	data, err := snap.marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := unmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Node != snap.Node {
		t.Fatalf("Node = %q, want %q", got.Node, snap.Node)
	}
	if got.Headroom[resources.GPU0Memory] != 200 {
		t.Fatalf("Headroom = %v, want GPU0Memory:200", got.Headroom)
	}
	if got.RemainingSessionCapacity[resources.GPU0Memory] != 800 {
		t.Fatalf("RemainingSessionCapacity = %v, want GPU0Memory:800", got.RemainingSessionCapacity)
	}
	if got.Expired() {
		t.Fatal("freshly minted snapshot reported expired")
	}
}

func TestSnapshotExpired(t *testing.T) {
	snap := newSnapshot("node-a", nil, nil, -time.Second)
	if !snap.Expired() {
		t.Fatal("snapshot with a negative TTL should already be expired")
	}
}

func TestHasHeadroom(t *testing.T) {
	if hasHeadroom(resources.Resources{}) {
		t.Fatal("empty Resources reported headroom")
	}
	if !hasHeadroom(resources.Resources{resources.GPU0Memory: 1}) {
		t.Fatal("nonzero Resources reported no headroom")
	}
}

package gossip

import (
	"time"

	"github.com/nictuku/dht"
)

// hasCapacityInfoHash is the well-known DHT infohash peers announce
// themselves under while they have spare headroom, mirroring the teacher's
// p2p.Topics map (there keyed by an enum; here there is only one topic, so
// it is inlined).
const hasCapacityInfoHash dht.InfoHash = "0xdeadbeefcafe5a105"

var queryTimeout = 30 * time.Second

// capacityBeacon wraps a *dht.DHT to announce and revoke this node's
// membership in the "has capacity" swarm, and to query which peers are
// currently announcing it. Adapted from the teacher's p2p.Store, which
// exposed the identical Announce/Revoke/Query trio against the same
// nictuku/dht primitives.
type capacityBeacon struct {
	node *dht.DHT
}

func newCapacityBeacon(port int) (*capacityBeacon, error) {
	conf := dht.NewConfig()
	conf.Port = port
	node, err := dht.New(conf)
	if err != nil {
		return nil, err
	}
	go node.Run()
	return &capacityBeacon{node: node}, nil
}

func (b *capacityBeacon) Announce() { b.node.PeersRequest(string(hasCapacityInfoHash), true) }
func (b *capacityBeacon) Revoke()   { b.node.RemoveInfoHash(string(hasCapacityInfoHash)) }

// Peers returns up to max peer addresses currently announcing capacity.
func (b *capacityBeacon) Peers(max int) []string {
	b.node.PeersRequest(string(hasCapacityInfoHash), false)

	var peers []string
	select {
	case d := <-b.node.PeersRequestResults:
		for ih, eps := range d {
			if ih != hasCapacityInfoHash {
				continue
			}
			for _, ep := range eps {
				peers = append(peers, dht.DecodePeerAddress(ep))
				if len(peers) >= max {
					return peers
				}
			}
		}
	case <-time.After(queryTimeout):
	}
	return peers
}

func (b *capacityBeacon) Close() { b.node.Stop() }

// Package gossip is an optional, disabled-by-default component that
// advertises this node's spare capacity to the rest of a cluster. It sits
// strictly outside the admission core: nothing in monitor or admission
// imports this package, and no admission decision ever consults gossip
// state — a peer's advertised headroom is advisory information for whoever
// is choosing where to send work next, never an input to whether this
// process admits anything.
package gossip

import (
	"context"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/salus-sched/salus/admission"
	"github.com/salus-sched/salus/internal/salog"
	"github.com/salus-sched/salus/monitor"
	"github.com/salus-sched/salus/resources"
)

// SnapshotTopic is the libp2p-pubsub topic capacity snapshots are published
// and subscribed on, the gossip equivalent of the teacher's
// LeaseRequestTopic/LeaseResponseTopic constants.
const SnapshotTopic = "SALUS_CAPACITY_SNAPSHOT"

// Options configures an Announcer. PubSub and Self are constructed by the
// host process exactly as the teacher's pubsub.O expects an
// already-started *pubsub.PubSub and the local peer.ID — this package never
// stands up its own libp2p host.
type Options struct {
	PubSub *pubsub.PubSub
	Self   peer.ID

	Node    string
	Monitor *monitor.Monitor
	Tracker *admission.Tracker

	Interval time.Duration
	TTL      time.Duration
	DHTPort  int

	Log *zap.Logger
}

// Announcer periodically publishes this node's Snapshot and keeps a cache
// of the latest snapshot seen from every other node, evicting entries once
// their TTL elapses. It also toggles a DHT "has capacity" beacon so peers
// that only need a boolean can avoid joining the pubsub topic at all.
type Announcer struct {
	opts Options
	log  *zap.Logger

	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	beacon *capacityBeacon
	cancel context.CancelFunc

	mu    sync.Mutex
	peers map[string]Snapshot
}

// NewAnnouncer constructs an Announcer. Start must be called to begin
// publishing and listening; until then, Snapshot still works for a
// networking-free preview of what would be broadcast.
func NewAnnouncer(opts Options) *Announcer {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * opts.Interval
	}
	log := opts.Log
	if log == nil {
		log = salog.Noop()
	}
	return &Announcer{
		opts:  opts,
		log:   log,
		peers: make(map[string]Snapshot),
	}
}

// Snapshot computes this node's current advertisement without publishing
// it. Used both by the publisher loop and by a caller previewing gossip
// state before joining the network (see cmd/salusctl's gossip-preview).
func (a *Announcer) Snapshot() Snapshot {
	headroom := a.opts.Monitor.Headroom()
	remaining := a.opts.Tracker.Remaining()
	return newSnapshot(a.opts.Node, headroom, remaining, a.opts.TTL)
}

// Start joins the pubsub topic, opens the DHT beacon, and launches the
// publisher/listener/cleaner goroutine trio, mirroring the teacher's
// pubsub.Allocator daemon/listener/cleaner structure.
func (a *Announcer) Start(ctx context.Context) error {
	topic, err := a.opts.PubSub.Join(SnapshotTopic)
	if err != nil {
		return fmt.Errorf("gossip: joining topic %s: %w", SnapshotTopic, err)
	}
	sub, err := topic.Subscribe(pubsub.WithBufferSize(0))
	if err != nil {
		return fmt.Errorf("gossip: subscribing to topic %s: %w", SnapshotTopic, err)
	}
	beacon, err := newCapacityBeacon(a.opts.DHTPort)
	if err != nil {
		return fmt.Errorf("gossip: starting DHT beacon: %w", err)
	}

	a.topic = topic
	a.sub = sub
	a.beacon = beacon

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.publisher(runCtx)
	go a.listener(runCtx)
	go a.cleaner(runCtx)
	return nil
}

// Stop cancels the background goroutines and revokes this node's DHT
// beacon. Safe to call on an Announcer that was never Start-ed.
func (a *Announcer) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.beacon != nil {
		a.beacon.Revoke()
		a.beacon.Close()
	}
}

// Peers returns a snapshot copy of the latest advertisement seen from every
// other node still within its TTL.
func (a *Announcer) Peers() map[string]Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Snapshot, len(a.peers))
	for node, snap := range a.peers {
		if snap.Expired() {
			continue
		}
		out[node] = snap
	}
	return out
}

func (a *Announcer) publisher(ctx context.Context) {
	ticker := time.NewTicker(a.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := a.Snapshot()
			if hasHeadroom(snap.Headroom) {
				a.beacon.Announce()
			} else {
				a.beacon.Revoke()
			}
			data, err := snap.marshal()
			if err != nil {
				a.log.Warn("gossip: marshal snapshot", zap.Error(err))
				continue
			}
			if err := a.topic.Publish(ctx, data); err != nil {
				a.log.Warn("gossip: publish snapshot", zap.Error(err))
			}
		}
	}
}

func (a *Announcer) listener(ctx context.Context) {
	for {
		msg, err := a.sub.Next(ctx)
		if err != nil {
			// Subscription closed (ctx cancelled or Stop torn down the host).
			// The teacher panics here (pubsub/pubsub.go:sub); this component
			// instead exits its goroutine quietly since gossip failures are
			// never allowed to be fatal to the host process.
			return
		}
		if msg.ReceivedFrom == a.opts.Self {
			continue
		}
		snap, err := unmarshalSnapshot(msg.Data)
		if err != nil {
			a.log.Debug("gossip: dropping malformed snapshot", zap.Error(err))
			continue
		}
		a.mu.Lock()
		a.peers[snap.Node] = snap
		a.mu.Unlock()
	}
}

func (a *Announcer) cleaner(ctx context.Context) {
	ticker := time.NewTicker(a.opts.TTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			for node, snap := range a.peers {
				if snap.Expired() {
					delete(a.peers, node)
				}
			}
			a.mu.Unlock()
		}
	}
}

func hasHeadroom(r resources.Resources) bool {
	for _, qty := range r {
		if qty > 0 {
			return true
		}
	}
	return false
}

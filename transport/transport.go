// Package transport implements the router of spec.md §4.6 — the heart of
// the system: the path table, dedup ring, announce queue, receipt table,
// and reverse table all exist to serve the single Transport that owns
// interface fan-out, packet ingestion, and announce propagation. Grounded
// on the teacher's server.Server (minimal-signal/server/server.go), which
// plays the same "one process holding every connection and routing
// messages between them" role, generalized from a fixed-recipient relay
// into multi-hop path-aware forwarding with local delivery.
package transport

import (
	"sync"
	"time"

	"github.com/torlando-tech/reticulum-kt-sub003/configs"
	"github.com/torlando-tech/reticulum-kt-sub003/destination"
	"github.com/torlando-tech/reticulum-kt-sub003/iface"
	"github.com/torlando-tech/reticulum-kt-sub003/identity"
	"github.com/torlando-tech/reticulum-kt-sub003/internal/rlog"
	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

var log = rlog.For("transport")

func pathTTL() time.Duration { return configs.PathTTL }

type registeredInterface struct {
	adapter  iface.Adapter
	lastUsed time.Time
}

// Transport is the single-serialization router: every table access funnels
// through mu, matching spec.md §5's "single serialized event loop per
// process" model. mu is held only around table/map access, never around an
// application callback (destination.OnPacket, destination.OnLinkRequest,
// Receipt.OnDelivered/OnFailed) — those routinely call back into Transport
// (Send, RegisterLink) and mu is not reentrant.
type Transport struct {
	mu sync.Mutex

	ifaces map[string]*registeredInterface

	paths     *pathTable
	dedup     DedupRing
	announceQ *announceQueue
	receipts  *receiptTable
	reverse   *reverseTable
	ratchets  *identity.RatchetStore

	localDestinations map[[16]byte]*destination.Destination
	// links maps a link id to its inbound-frame handler. Kept as a bare
	// function rather than a named interface type so package link can
	// satisfy it structurally without transport importing link (spec.md §9's
	// cycle-avoidance requirement).
	links map[[16]byte]func(p *wire.Packet)

	knownDestinations map[[16]byte]knownDestinationRecord
	statePath         string
	stateDir          string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Config bundles the construction-time knobs a process supplies.
type Config struct {
	DedupCapacity int
	DedupBackend  DedupRing // optional; defaults to an in-memory ring sized by DedupCapacity
	StatePath     string    // known_destinations persistence file; "" disables persistence
	StateDir      string    // ratchets/ subdirectory root; "" disables persistence
}

// New constructs an idle Transport. Start begins its maintenance loop and
// per-interface pumps.
func New(cfg Config) *Transport {
	dedup := cfg.DedupBackend
	if dedup == nil {
		capacity := cfg.DedupCapacity
		if capacity == 0 {
			capacity = configs.DedupRingFloor
		}
		dedup = newMemoryDedupRing(capacity)
	}

	t := &Transport{
		ifaces:            make(map[string]*registeredInterface),
		paths:             newPathTable(),
		dedup:             dedup,
		announceQ:         newAnnounceQueue(),
		receipts:          newReceiptTable(),
		reverse:           newReverseTable(),
		ratchets:          identity.NewRatchetStore(),
		localDestinations: make(map[[16]byte]*destination.Destination),
		links:             make(map[[16]byte]func(p *wire.Packet)),
		knownDestinations: make(map[[16]byte]knownDestinationRecord),
		statePath:         cfg.StatePath,
		stateDir:          cfg.StateDir,
		stopCh:            make(chan struct{}),
	}

	if t.statePath != "" {
		if loaded, err := LoadKnownDestinations(t.statePath); err == nil {
			t.knownDestinations = loaded
		} else {
			log.WithError(err).Warn("failed to load known destinations")
		}
	}

	return t
}

// RegisterInterface adds adapter to the router's fan-out set and starts its
// inbound pump.
func (t *Transport) RegisterInterface(a iface.Adapter) {
	t.mu.Lock()
	t.ifaces[a.ID()] = &registeredInterface{adapter: a}
	t.mu.Unlock()

	t.wg.Add(1)
	go t.pumpInbound(a)
}

// RegisterDestination makes d reachable for local delivery and, if it owns
// an identity, eligible to originate announces.
func (t *Transport) RegisterDestination(d *destination.Destination) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.localDestinations[d.Hash()] = d
}

// RegisterLink attaches a link's inbound-frame handler so packets addressed
// to linkID (by id, not destination hash) reach it (spec.md §4.7).
func (t *Transport) RegisterLink(linkID [16]byte, handleInbound func(p *wire.Packet)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.links[linkID] = handleInbound
}

// UnregisterLink removes a torn-down link.
func (t *Transport) UnregisterLink(linkID [16]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.links, linkID)
}

// Start launches the periodic maintenance loop at interval (spec.md §4.6:
// ServerMaintenanceInterval for always-on nodes, EnergyConstrainedMaintenanceInterval
// for battery-powered ones).
func (t *Transport) Start(interval time.Duration) {
	t.wg.Add(1)
	go t.maintenanceLoop(interval)
}

// Shutdown stops the maintenance loop and every inbound pump, and fails
// every outstanding receipt (spec.md §5 shutdown contract).
func (t *Transport) Shutdown() {
	close(t.stopCh)
	t.wg.Wait()

	t.mu.Lock()
	callbacks := t.receipts.CancelAll()
	t.mu.Unlock()

	reason := rerrors.New(rerrors.LifecycleNotStarted)
	for _, cb := range callbacks {
		cb(reason)
	}

	t.persist()
}

func (t *Transport) pumpInbound(a iface.Adapter) {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopCh:
			return
		case raw, ok := <-a.Inbound():
			if !ok {
				return
			}
			t.Ingest(a.ID(), raw)
		}
	}
}

// Ingest runs one received frame through the pipeline of spec.md §4.2/§4.6:
// IFAC verification (if the originating interface carries one), wire
// decode, packet-hash computation, deduplication, and dispatch. It is safe
// to call directly (e.g. from tests) without a running interface pump.
func (t *Transport) Ingest(ifaceID string, raw []byte) {
	t.mu.Lock()
	ri, ok := t.ifaces[ifaceID]
	t.mu.Unlock()
	if !ok {
		return
	}

	body := raw
	if secret, size, hasIFAC := ri.adapter.IFACSecret(); hasIFAC {
		unmasked, valid := iface.Unmask(secret, size, raw)
		if !valid {
			log.WithField("iface", ifaceID).Debug("dropping packet: IFAC verification failed")
			return
		}
		body = unmasked
	}

	p, err := wire.Decode(body)
	if err != nil {
		log.WithError(err).WithField("iface", ifaceID).Debug("dropping packet: decode failed")
		return
	}

	now := time.Now()
	fullHash := p.Hash()

	t.mu.Lock()
	seen := t.dedup.SeenOrInsert(fullHash, now)
	t.mu.Unlock()
	if seen {
		return
	}

	t.dispatch(ifaceID, p, now)
}

func (t *Transport) dispatch(inboundIface string, p *wire.Packet, now time.Time) {
	switch p.PacketType {
	case wire.TypeAnnounce:
		t.handleAnnounce(inboundIface, p, now)
	case wire.TypeProof:
		t.handleProof(p, now)
	case wire.TypeLinkRequest:
		t.handleLinkRequest(inboundIface, p, now)
	case wire.TypeData:
		t.handleData(inboundIface, p, now)
	}
}

func (t *Transport) handleAnnounce(inboundIface string, p *wire.Packet, now time.Time) {
	entry, err := identity.ValidateAnnounce(p)
	if err != nil {
		log.WithError(err).Debug("dropping announce: validation failed")
		return
	}

	if entry.Ratchet != nil {
		t.ratchets.Add(entry.DestinationHash, *entry.Ratchet, now)
	}

	t.mu.Lock()
	t.knownDestinations[entry.DestinationHash] = knownDestinationRecord{
		TimestampMs: now.UnixMilli(),
		PacketHash:  entry.PacketHash[:],
		PublicKey:   entry.PublicKey,
		AppData:     entry.AppData,
	}

	candidate := &PathEntry{
		NextHopInterface: inboundIface,
		Hops:             p.Hops + 1,
		LatestAnnounce:   p.Encode(),
		LatestAnnounceAt: now,
		PublicKey:        entry.PublicKey,
	}
	if ri, ok := t.ifaces[inboundIface]; ok {
		candidate.interfaceBitrate = ri.adapter.Bitrate()
	}
	accepted := t.paths.Offer(entry.DestinationHash, candidate, now)
	d, hasLocal := t.localDestinations[entry.DestinationHash]
	t.mu.Unlock()

	// Local destinations get the announce's app_data even when the path
	// itself wasn't an improvement (spec.md §4.6 "local-client immediate
	// forwarding").
	if hasLocal && d.OnPacket != nil {
		d.OnPacket(entry.AppData, p)
	}

	if !accepted {
		return
	}
	t.propagateAnnounce(inboundIface, p, now)
}

// propagateAnnounce re-enqueues an accepted announce on every other
// registered interface, each behind its own token bucket (spec.md §4.6,
// §9's 2%/4x rate limit). It touches only internal tables, so it is safe to
// run entirely under mu.
func (t *Transport) propagateAnnounce(excludeIface string, p *wire.Packet, now time.Time) {
	if p.Hops+1 >= 255 {
		return
	}
	forwarded := &wire.Packet{
		HeaderType:      p.HeaderType,
		PropagationType: p.PropagationType,
		DestType:        p.DestType,
		PacketType:      p.PacketType,
		ContextFlag:     p.ContextFlag,
		Hops:            p.Hops + 1,
		TransportID:     p.TransportID,
		DestinationHash: p.DestinationHash,
		Context:         p.Context,
		Payload:         p.Payload,
	}
	encoded := forwarded.Encode()

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ri := range t.ifaces {
		if id == excludeIface || !ri.adapter.Online() {
			continue
		}
		entry := &announceQueueEntry{
			destHash:     p.DestinationHash,
			packetBytes:  encoded,
			receivedOn:   excludeIface,
			arrivalTime:  now,
			hops:         forwarded.Hops,
			retransmitAt: now,
		}
		if !t.announceQ.Enqueue(id, ri.adapter.Bitrate(), entry, now) {
			log.WithField("iface", id).Debug("announce queue full, dropping")
		}
	}
}

func (t *Transport) handleProof(p *wire.Packet, now time.Time) {
	var corr [16]byte
	copy(corr[:], p.Payload[:min(16, len(p.Payload))])

	t.mu.Lock()
	onDelivered := t.receipts.Deliver(corr)
	t.mu.Unlock()
	if onDelivered != nil {
		onDelivered()
	}

	t.mu.Lock()
	rev, hasRev := t.reverse.Lookup(p.Hash())
	if hasRev {
		if ri, ok := t.ifaces[rev.InboundInterface]; ok && ri.adapter.Online() {
			_ = ri.adapter.Send(p.Encode())
		}
		t.reverse.Delete(p.Hash())
	}
	handler, hasLink := t.links[p.DestinationHash]
	t.mu.Unlock()

	if hasRev {
		return
	}
	if hasLink {
		handler(p)
	}
}

func (t *Transport) handleLinkRequest(inboundIface string, p *wire.Packet, now time.Time) {
	t.mu.Lock()
	d, hasLocal := t.localDestinations[p.DestinationHash]
	t.mu.Unlock()

	if hasLocal {
		if d.OnLinkRequest != nil {
			proofPayload, err := d.OnLinkRequest(p.Payload, p)
			if err != nil {
				log.WithError(err).Debug("link request refused")
				return
			}
			proof := &wire.Packet{
				HeaderType:      wire.Header1,
				PropagationType: wire.Broadcast,
				DestType:        wire.DestLink,
				PacketType:      wire.TypeProof,
				DestinationHash: p.TruncHash(),
				Context:         wire.CtxLinkProof,
				Payload:         proofPayload,
			}
			t.mu.Lock()
			if ri, ok := t.ifaces[inboundIface]; ok && ri.adapter.Online() {
				_ = ri.adapter.Send(proof.Encode())
			}
			t.mu.Unlock()
			return
		}
		if d.OnPacket != nil {
			d.OnPacket(p.Payload, p)
		}
		return
	}

	// Not ours: forward toward the best known path, recording a reverse
	// entry so the eventual LRPROOF finds its way back (spec.md §4.7).
	t.mu.Lock()
	defer t.mu.Unlock()
	path, ok := t.paths.Get(p.DestinationHash)
	if !ok {
		return
	}
	ri, ok := t.ifaces[path.NextHopInterface]
	if !ok || !ri.adapter.Online() {
		return
	}
	t.reverse.Record(p.Hash(), &ReverseEntry{
		InboundInterface:  inboundIface,
		OutboundInterface: path.NextHopInterface,
		Timestamp:         now,
	})
	_ = ri.adapter.Send(p.Encode())
}

func (t *Transport) handleData(inboundIface string, p *wire.Packet, now time.Time) {
	t.mu.Lock()
	handler, hasLink := t.links[p.DestinationHash]
	d, hasLocal := t.localDestinations[p.DestinationHash]
	t.mu.Unlock()

	if hasLink {
		handler(p)
		return
	}
	if hasLocal {
		if d.OnPacket != nil {
			d.OnPacket(p.Payload, p)
		}
		if d.ShouldProve(p) {
			t.sendProof(inboundIface, p)
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	path, ok := t.paths.Get(p.DestinationHash)
	if !ok {
		return
	}
	ri, ok := t.ifaces[path.NextHopInterface]
	if !ok || !ri.adapter.Online() {
		return
	}
	forwarded := *p
	forwarded.Hops++
	_ = ri.adapter.Send(forwarded.Encode())
}

func (t *Transport) sendProof(inboundIface string, p *wire.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ri, ok := t.ifaces[inboundIface]
	if !ok {
		return
	}
	truncHash := p.TruncHash()
	proof := &wire.Packet{
		HeaderType:      wire.Header1,
		PropagationType: wire.Broadcast,
		DestType:        wire.DestSingle,
		PacketType:      wire.TypeProof,
		DestinationHash: p.DestinationHash,
		Context:         wire.CtxNone,
		Payload:         truncHash[:],
	}
	_ = ri.adapter.Send(proof.Encode())
}

// Send transmits p on the best interface for its destination, recording a
// Receipt if onDelivered/onFailed are non-nil (spec.md §4.6, §5). Adding a
// receipt never invokes a callback itself, so this is safe to run entirely
// under mu.
func (t *Transport) Send(p *wire.Packet, onDelivered func(), onFailed func(error)) error {
	_, err := t.SendVia(p, onDelivered, onFailed)
	return err
}

// SendVia behaves like Send but additionally reports which interface the
// packet went out on, so package link can remember where to address
// subsequent traffic on the link it is establishing.
func (t *Transport) SendVia(p *wire.Packet, onDelivered func(), onFailed func(error)) (ifaceID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	path, ok := t.paths.Get(p.DestinationHash)
	if !ok {
		return "", rerrors.New(rerrors.TransportPathExpired)
	}
	ri, ok := t.ifaces[path.NextHopInterface]
	if !ok || !ri.adapter.Online() {
		return "", rerrors.New(rerrors.TransportInterfaceOffline)
	}

	if err := ri.adapter.Send(p.Encode()); err != nil {
		return "", rerrors.Wrap(rerrors.TransportInterfaceOffline, err)
	}
	ri.lastUsed = time.Now()

	if onDelivered != nil || onFailed != nil {
		timeout := configs.TimeoutBase + time.Duration(path.Hops)*configs.TimeoutPerHop + configs.TimeoutSlack
		t.receipts.Add(&Receipt{
			TruncHash:   p.TruncHash(),
			TimeoutAt:   time.Now().Add(timeout),
			State:       ReceiptSent,
			OnDelivered: onDelivered,
			OnFailed:    onFailed,
		})
	}
	return path.NextHopInterface, nil
}

// SendOnInterface transmits p directly on a named interface, bypassing the
// path table. Package link uses this for post-handshake link traffic: a
// link id has no path-table entry of its own, so traffic addressed to it
// rides the same interface the handshake completed on.
func (t *Transport) SendOnInterface(ifaceID string, p *wire.Packet) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ri, ok := t.ifaces[ifaceID]
	if !ok || !ri.adapter.Online() {
		return rerrors.New(rerrors.TransportInterfaceOffline)
	}
	if err := ri.adapter.Send(p.Encode()); err != nil {
		return rerrors.Wrap(rerrors.TransportInterfaceOffline, err)
	}
	ri.lastUsed = time.Now()
	return nil
}

// EnqueueAnnounce queues a locally originated announce on every online
// interface's announce queue; the next maintenance tick drains each queue
// as far as that interface's token bucket allows.
func (t *Transport) EnqueueAnnounce(p *wire.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	encoded := p.Encode()
	for id, ri := range t.ifaces {
		if !ri.adapter.Online() {
			continue
		}
		entry := &announceQueueEntry{
			destHash:     p.DestinationHash,
			packetBytes:  encoded,
			arrivalTime:  now,
			retransmitAt: now,
		}
		t.announceQ.Enqueue(id, ri.adapter.Bitrate(), entry, now)
	}
}

func (t *Transport) maintenanceLoop(interval time.Duration) {
	defer t.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case now := <-ticker.C:
			t.runMaintenance(now)
		}
	}
}

func (t *Transport) runMaintenance(now time.Time) {
	t.mu.Lock()
	t.paths.Cull(now)
	t.reverse.Cull(now, 2*configs.TimeoutBase)
	timeoutCallbacks := t.receipts.SweepTimeouts(now)
	t.ratchets.Prune(now)

	for id, ri := range t.ifaces {
		if !ri.adapter.Online() {
			continue
		}
		for _, entry := range t.announceQ.Drain(id, ri.adapter.Bitrate(), now) {
			_ = ri.adapter.Send(entry.packetBytes)
		}
	}
	t.mu.Unlock()

	reason := rerrors.New(rerrors.TimeoutReceipt)
	for _, cb := range timeoutCallbacks {
		cb(reason)
	}

	t.persist()
}

func (t *Transport) persist() {
	t.mu.Lock()
	snapshot := make(map[[16]byte]knownDestinationRecord, len(t.knownDestinations))
	for k, v := range t.knownDestinations {
		snapshot[k] = v
	}
	statePath := t.statePath
	t.mu.Unlock()

	if statePath == "" {
		return
	}
	if err := SaveKnownDestinations(statePath, snapshot); err != nil {
		log.WithError(err).Warn("failed to persist known destinations")
	}
}

// PathFor exposes the router's current best path for a destination. Package
// link does not call it; Initiate relies on SendVia's own path lookup.
func (t *Transport) PathFor(destHash [16]byte) (*PathEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paths.Get(destHash)
}

// RatchetsFor exposes stored ratchets for a destination, newest first, for
// package identity.Decrypt callers assembling a candidate key list.
func (t *Transport) RatchetsFor(destHash [16]byte) [][32]byte {
	return t.ratchets.For(destHash)
}

// InterfaceStatus is a read-only view of one registered interface, for
// internal/monitor's diagnostics dashboard.
type InterfaceStatus struct {
	ID       string
	Online   bool
	Bitrate  int64
	LastUsed time.Time
}

// Snapshot is a read-only, point-in-time view of router state: enough for a
// diagnostics dashboard to render without holding a reference into the
// router's own locked tables (spec.md §9's "diagnostics observes, never
// drives" boundary).
type Snapshot struct {
	Interfaces        []InterfaceStatus
	Paths             map[[16]byte]PathEntry
	KnownDestinations int
	ActiveLinks       int
	AnnounceQueued    int
}

// Snapshot copies out a consistent view of the router's tables for
// internal/monitor to render. It never returns a live reference into
// Transport's own state.
func (t *Transport) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	ifaces := make([]InterfaceStatus, 0, len(t.ifaces))
	for id, ri := range t.ifaces {
		ifaces = append(ifaces, InterfaceStatus{
			ID:       id,
			Online:   ri.adapter.Online(),
			Bitrate:  ri.adapter.Bitrate(),
			LastUsed: ri.lastUsed,
		})
	}

	return Snapshot{
		Interfaces:        ifaces,
		Paths:             t.paths.Snapshot(),
		KnownDestinations: len(t.knownDestinations),
		ActiveLinks:       len(t.links),
		AnnounceQueued:    t.announceQ.TotalLen(),
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

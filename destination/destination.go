// Package destination implements named endpoints (spec.md §4.4): hash
// derivation, proof strategy, packet/link callbacks, and request handlers.
// Grounded on the teacher's client.ChatApp (minimal-signal/client/chatapp.go),
// which plays the same role of "the thing a packet is addressed to and
// dispatched into" — generalized from a single hardcoded chat peer into the
// spec's typed, multi-aspect addressing scheme.
package destination

import (
	"strings"

	"github.com/torlando-tech/reticulum-kt-sub003/crypto/hash"
	"github.com/torlando-tech/reticulum-kt-sub003/identity"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

// Direction is whether this destination is ours to receive on or a remote
// peer we address.
type Direction uint8

const (
	In Direction = iota
	Out
)

// Type is the destination type of spec.md §6.1's 2-bit field.
type Type uint8

const (
	Single Type = iota
	Group
	Plain
	Link
)

// ProofStrategy governs when Destination.ShouldProve returns true.
type ProofStrategy uint8

const (
	ProveNone ProofStrategy = iota
	ProveAll
	ProveApp
)

// LinkHandle is the minimal surface destination needs from an established
// link, implemented by link.Link. Keeping it an interface here (rather than
// importing the link package) avoids the Link<->Destination<->Transport
// reference cycle spec.md §9 calls out; destinations never hold a link
// directly, only receive one transiently via LinkEstablished.
type LinkHandle interface {
	ID() [16]byte
	Send(payload []byte) error
	Close() error
}

// RequestHandler answers an incoming REQUEST frame addressed to a path on an
// active link.
type RequestHandler func(path string, requestData []byte) (responseData []byte, err error)

// PacketCallback is invoked with payload data delivered to this destination.
type PacketCallback func(payload []byte, fromPacket *wire.Packet)

// LinkEstablishedCallback fires once when a link attached to this
// destination reaches ACTIVE.
type LinkEstablishedCallback func(link LinkHandle)

// ProveAppFunc is the application-supplied predicate for ProveApp strategy.
type ProveAppFunc func(p *wire.Packet) bool

// LinkRequestHandler answers an inbound LINKREQUEST addressed to this
// destination: given the initiator's ephemeral public key and the request
// packet (needed for its TruncHash, which doubles as the link id), it
// returns the LRPROOF payload to send back, or an error to refuse silently.
// Set by package link's Listen; transport routes the reply out the same
// interface the request arrived on, so it is never queued against a path
// table entry that doesn't exist yet.
type LinkRequestHandler func(initiatorEphemeral []byte, fromPacket *wire.Packet) (proofPayload []byte, err error)

// Destination is a named, typed endpoint (spec.md §3 "Destination").
type Destination struct {
	Owner    *identity.Identity // nil for PLAIN
	Dir      Direction
	Typ      Type
	AppName  string
	Aspects  []string

	Strategy ProofStrategy
	ProveApp ProveAppFunc

	OnPacket        PacketCallback
	OnLinkEstablish LinkEstablishedCallback
	OnLinkRequest   LinkRequestHandler

	requestHandlers map[string]RequestHandler
}

// New constructs a Destination. owner may be nil for Plain/Group types.
func New(owner *identity.Identity, dir Direction, typ Type, appName string, aspects []string) *Destination {
	return &Destination{
		Owner:           owner,
		Dir:             dir,
		Typ:             typ,
		AppName:         appName,
		Aspects:         append([]string(nil), aspects...),
		Strategy:        ProveNone,
		requestHandlers: make(map[string]RequestHandler),
	}
}

// nameHashInput builds "app_name.aspect1.aspect2..." (spec.md §4.4).
func (d *Destination) nameHashInput() string {
	if len(d.Aspects) == 0 {
		return d.AppName
	}
	return d.AppName + "." + strings.Join(d.Aspects, ".")
}

// NameHash returns the 10-byte name hash of this destination.
func (d *Destination) NameHash() [10]byte {
	return hash.Name(d.nameHashInput())
}

// Hash computes the 16-byte destination hash (spec.md §3/§4.4). For Single
// it folds in the owner identity hash; Group and Plain omit it.
func (d *Destination) Hash() [16]byte {
	nameHash := d.NameHash()
	if d.Typ == Single {
		if d.Owner == nil {
			panic("destination: SINGLE destination requires an owner identity")
		}
		idHash := d.Owner.Hash()
		return hash.Trunc16(append(append([]byte{}, nameHash[:]...), idHash[:]...))
	}
	return hash.Trunc16(nameHash[:])
}

// SetRequestHandler registers a handler for requests on path, routed over an
// active link attached to this destination.
func (d *Destination) SetRequestHandler(path string, h RequestHandler) {
	d.requestHandlers[path] = h
}

// RequestHandlerFor looks up a previously registered handler.
func (d *Destination) RequestHandlerFor(path string) (RequestHandler, bool) {
	h, ok := d.requestHandlers[path]
	return h, ok
}

// ShouldProve enforces the proof strategy of spec.md §4.4.
func (d *Destination) ShouldProve(p *wire.Packet) bool {
	switch d.Strategy {
	case ProveAll:
		return true
	case ProveApp:
		return d.ProveApp != nil && d.ProveApp(p)
	default:
		return false
	}
}

// BuildAnnounce constructs the ANNOUNCE payload and wire packet for this
// destination (spec.md §4.4). Submitting it to a transport's announce queue
// is the caller's responsibility.
func (d *Destination) BuildAnnounce(appData []byte, ratchet *[32]byte) (*wire.Packet, error) {
	if d.Owner == nil {
		panic("destination: BuildAnnounce requires an owner identity")
	}
	destHash := d.Hash()
	payload, ratchetPresent, err := identity.BuildAnnouncePayload(d.Owner, destHash, d.NameHash(), ratchet, appData)
	if err != nil {
		return nil, err
	}

	var ctxFlag uint8
	if ratchetPresent {
		ctxFlag = 1
	}

	return &wire.Packet{
		HeaderType:      wire.Header1,
		PropagationType: wire.Broadcast,
		DestType:        wire.DestSingle,
		PacketType:      wire.TypeAnnounce,
		ContextFlag:     ctxFlag,
		DestinationHash: destHash,
		Context:         wire.CtxNone,
		Payload:         payload,
	}, nil
}

// Package rerrors implements the closed error taxonomy of spec.md §7: six
// families of typed errors, each wrapping an underlying cause where one
// exists, following the teacher's fmt.Errorf("...: %w", err) idiom
// (client/protocol.go, protocol/doubleratchet/errors.go) generalized into
// reusable sentinel-backed types instead of one-off wraps.
package rerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which family and specific case an error belongs to.
type Kind int

const (
	_ Kind = iota

	// Parse errors: drop the packet, count it, never propagate.
	ParseTooShort
	ParseBadHeader
	ParseUnknownContext
	ParseBadPayload

	// Crypto errors: surface to the caller; ingress paths drop.
	CryptoHmac
	CryptoBadSignature
	CryptoPublicOnly
	CryptoTruncated
	CryptoBadPadding

	// Protocol errors: tear down the offending link/resource, log at info.
	ProtocolDuplicateLink
	ProtocolUnknownLink
	ProtocolResourceHashMismatch
	ProtocolProofMismatch

	// Timeouts: invoke the appropriate callback.
	TimeoutHandshake
	TimeoutKeepalive
	TimeoutReceipt
	TimeoutResource

	// Transport errors: surfaced to the caller of send, never auto-retried.
	TransportInterfaceOffline
	TransportPathExpired
	TransportQueueFull

	// Lifecycle errors: programming errors, surface loudly.
	LifecycleNotStarted
	LifecycleAlreadyStarted
)

var kindNames = map[Kind]string{
	ParseTooShort:                "parse: too short",
	ParseBadHeader:               "parse: bad header",
	ParseUnknownContext:          "parse: unknown context",
	ParseBadPayload:              "parse: bad payload",
	CryptoHmac:                   "crypto: hmac verification failed",
	CryptoBadSignature:           "crypto: bad signature",
	CryptoPublicOnly:             "crypto: identity is public-only",
	CryptoTruncated:              "crypto: ciphertext truncated",
	CryptoBadPadding:             "crypto: bad padding",
	ProtocolDuplicateLink:        "protocol: duplicate link",
	ProtocolUnknownLink:          "protocol: unknown link",
	ProtocolResourceHashMismatch: "protocol: resource hash mismatch",
	ProtocolProofMismatch:        "protocol: proof mismatch",
	TimeoutHandshake:             "timeout: handshake",
	TimeoutKeepalive:             "timeout: keepalive",
	TimeoutReceipt:               "timeout: receipt",
	TimeoutResource:              "timeout: resource",
	TransportInterfaceOffline:    "transport: interface offline",
	TransportPathExpired:         "transport: path expired",
	TransportQueueFull:           "transport: queue full",
	LifecycleNotStarted:          "lifecycle: not started",
	LifecycleAlreadyStarted:      "lifecycle: already started",
}

// Error is the concrete type for every error this module returns from a
// closed-taxonomy path. It wraps an optional underlying cause.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	name := kindNames[e.Kind]
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", name, e.Cause)
	}
	return name
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind) error {
	return &Error{Kind: kind}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error) error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err (or anything it wraps) is a rerrors.Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

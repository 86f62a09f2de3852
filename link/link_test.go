package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torlando-tech/reticulum-kt-sub003/destination"
	"github.com/torlando-tech/reticulum-kt-sub003/identity"
	"github.com/torlando-tech/reticulum-kt-sub003/iface"
	"github.com/torlando-tech/reticulum-kt-sub003/transport"
	"github.com/torlando-tech/reticulum-kt-sub003/wire"
)

// S3/S4: a link handshake completes and round-trips encrypted data.
func TestHandshakeAndDataRoundTrip(t *testing.T) {
	a, b := iface.NewMemoryPair("a", "b")
	tr := transport.New(transport.Config{})
	tr.RegisterInterface(a)
	tr.RegisterInterface(b)

	owner, err := identity.Create()
	require.NoError(t, err)
	serverDest := destination.New(owner, destination.In, destination.Single, "app", []string{"server"})
	tr.RegisterDestination(serverDest)

	var established *Link
	Listen(tr, serverDest, func(l *Link) { established = l })

	// Give the router a path to serverDest, as if an announce had already
	// been received on interface "a" (so the LINKREQUEST can be routed).
	announce, err := serverDest.BuildAnnounce(nil, nil)
	require.NoError(t, err)
	tr.Ingest("a", announce.Encode())

	var initiatorActive *Link
	var initiatorFailed error
	initiator, err := Initiate(tr, serverDest, func(l *Link) { initiatorActive = l }, func(e error) { initiatorFailed = e })
	require.NoError(t, err)

	// The path table points toward interface "a", so the LINKREQUEST goes
	// out there and is delivered onto its peer adapter's inbound side ("b").
	select {
	case raw := <-b.Inbound():
		tr.Ingest("b", raw)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected LINKREQUEST to arrive on interface b")
	}

	require.NotNil(t, established, "responder should have completed its half of the handshake")

	// The responder answers out the interface the request arrived on ("b"),
	// so the LRPROOF lands back on "a"'s inbound side.
	select {
	case raw := <-a.Inbound():
		tr.Ingest("a", raw)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected LRPROOF to arrive on interface a")
	}

	require.Nil(t, initiatorFailed)
	require.NotNil(t, initiatorActive, "initiator should have completed the handshake")
	assert.Equal(t, StateActive, initiator.State())
	assert.Equal(t, StateActive, established.State())
	assert.Equal(t, initiator.ID(), established.ID())

	var received []byte
	established.OnReceive = func(ctx wire.Context, plaintext []byte) { received = plaintext }

	require.NoError(t, initiator.Send([]byte("hello over the link")))

	select {
	case raw := <-b.Inbound():
		tr.Ingest("b", raw)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected DATA frame to arrive on interface b")
	}

	assert.Equal(t, []byte("hello over the link"), received)
}

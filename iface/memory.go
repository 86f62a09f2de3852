package iface

import (
	"github.com/torlando-tech/reticulum-kt-sub003/internal/rlog"
	"github.com/torlando-tech/reticulum-kt-sub003/rerrors"
)

var log = rlog.For("iface")

// MemoryAdapter is an in-process loopback adapter: Send on one end delivers
// onto the paired adapter's Inbound channel. It stands in for the
// out-of-scope physical interfaces in tests and the diagnostics dashboard.
type MemoryAdapter struct {
	id      string
	mtu     int
	bitrate int64
	online  bool
	mode    Mode

	ifacSecret []byte
	ifacSize   int

	inbound chan []byte
	peer    *MemoryAdapter
}

// NewMemoryPair builds two adapters wired to each other: sending on a
// delivers on b's Inbound channel and vice versa.
func NewMemoryPair(idA, idB string) (a, b *MemoryAdapter) {
	a = &MemoryAdapter{id: idA, mtu: 1500, bitrate: 10_000_000, online: true, inbound: make(chan []byte, 256)}
	b = &MemoryAdapter{id: idB, mtu: 1500, bitrate: 10_000_000, online: true, inbound: make(chan []byte, 256)}
	a.peer = b
	b.peer = a
	return a, b
}

func (m *MemoryAdapter) ID() string          { return m.id }
func (m *MemoryAdapter) MTU() int            { return m.mtu }
func (m *MemoryAdapter) Bitrate() int64      { return m.bitrate }
func (m *MemoryAdapter) Online() bool        { return m.online }
func (m *MemoryAdapter) Mode() Mode          { return m.mode }
func (m *MemoryAdapter) SetMode(mode Mode)   { m.mode = mode }
func (m *MemoryAdapter) SetOnline(online bool) { m.online = online }

func (m *MemoryAdapter) SetIFAC(secret []byte, size int) {
	m.ifacSecret = secret
	m.ifacSize = size
}

func (m *MemoryAdapter) IFACSecret() ([]byte, int, bool) {
	if m.ifacSecret == nil {
		return nil, 0, false
	}
	return m.ifacSecret, m.ifacSize, true
}

func (m *MemoryAdapter) Inbound() <-chan []byte { return m.inbound }

// Send is best-effort: it never blocks the caller. A full peer buffer is
// dropped and logged, per spec.md §6.2.
func (m *MemoryAdapter) Send(data []byte) error {
	if !m.online {
		return rerrors.New(rerrors.TransportInterfaceOffline)
	}
	buf := append([]byte(nil), data...)
	select {
	case m.peer.inbound <- buf:
		return nil
	default:
		log.WithField("interface", m.id).Warn("inbound buffer full, dropping frame")
		return rerrors.New(rerrors.TransportQueueFull)
	}
}

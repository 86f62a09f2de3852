package process

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateIdentityPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.key")

	first, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)

	second, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)

	assert.Equal(t, first.Hash(), second.Hash(), "reloading should yield the same identity, not a fresh one")
}

func TestLoadOrCreateIdentityEmptyPathIsEphemeral(t *testing.T) {
	a, err := LoadOrCreateIdentity("")
	require.NoError(t, err)
	b, err := LoadOrCreateIdentity("")
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash(), b.Hash(), "empty path should never persist, so each call creates a fresh identity")
}

func TestMaintenanceHooksFireOnTicks(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	fired := make(chan time.Time, 4)
	p.RegisterMaintenanceHook(func(now time.Time) { fired <- now })

	p.Start(10 * time.Millisecond)
	defer p.Shutdown()

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected maintenance hook to fire")
	}
}

func TestShutdownStopsHookTicker(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	var count int
	p.RegisterMaintenanceHook(func(now time.Time) { count++ })
	p.Start(5 * time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	p.Shutdown()
	countAtShutdown := count

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, countAtShutdown, count, "no hook should fire after Shutdown returns")
}

// Package process implements the root lifecycle of a running node: it owns
// the identity, the transport, and the on-disk state directory, and starts
// and stops every other component together. Grounded on the teacher's
// cmd/server/main.go and cmd/client/main.go, which each play this same
// "load or create the keys this process runs as, wire up its long-lived
// components, start them" role — generalized here from two separate
// single-purpose binaries into one reusable root type that `cmd/monitor`
// constructs.
package process

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/torlando-tech/reticulum-kt-sub003/identity"
	"github.com/torlando-tech/reticulum-kt-sub003/internal/rlog"
	"github.com/torlando-tech/reticulum-kt-sub003/transport"
)

var log = rlog.For("process")

// MaintenanceHook is periodic upkeep a caller registers alongside the
// transport's own maintenance cycle (spec.md §4.6) — for example
// link.Link.CheckStale and resource.Receiver.CheckTimeout, kept outside
// package transport so link and resource stay self-contained leaf packages
// transport never imports. Nothing in this module registers a hook itself;
// callers do.
type MaintenanceHook func(now time.Time)

// Process is the root component: one identity, one transport, one state
// directory. Constructing several Processes in a test is how this module
// simulates multiple independent nodes sharing in-memory interfaces.
type Process struct {
	Identity  *identity.Identity
	Transport *transport.Transport

	stateDir string

	mu       sync.Mutex
	hooks    []MaintenanceHook
	stopHook chan struct{}
	hookWG   sync.WaitGroup
}

// Config bundles the construction-time choices for New.
type Config struct {
	// StateDir roots known_destinations and ratchets/ persistence
	// (spec.md §6.3) and the identity key file. Empty disables all
	// persistence; the process runs in-memory only.
	StateDir string

	// Identity is used if provided; otherwise New loads or creates one at
	// StateDir/identity.key.
	Identity *identity.Identity

	DedupCapacity int
}

// New constructs a Process. It does not start any goroutines; call Start.
func New(cfg Config) (*Process, error) {
	id := cfg.Identity
	if id == nil {
		loaded, err := LoadOrCreateIdentity(identityPath(cfg.StateDir))
		if err != nil {
			return nil, err
		}
		id = loaded
	}

	tcfg := transport.Config{DedupCapacity: cfg.DedupCapacity}
	if cfg.StateDir != "" {
		tcfg.StatePath = filepath.Join(cfg.StateDir, "known_destinations")
		tcfg.StateDir = cfg.StateDir
	}

	return &Process{
		Identity:  id,
		Transport: transport.New(tcfg),
		stateDir:  cfg.StateDir,
	}, nil
}

// RegisterMaintenanceHook adds fn to the set invoked on every maintenance
// tick, alongside (but independently of) the transport's own path/dedup/
// receipt/ratchet upkeep.
func (p *Process) RegisterMaintenanceHook(fn MaintenanceHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, fn)
}

// Start begins the transport's maintenance loop and, independently, this
// process's own hook ticker at the same cadence (spec.md §4.6's
// ServerMaintenanceInterval for always-on nodes,
// EnergyConstrainedMaintenanceInterval for battery-powered ones).
func (p *Process) Start(interval time.Duration) {
	p.Transport.Start(interval)

	p.stopHook = make(chan struct{})
	p.hookWG.Add(1)
	go p.runHooks(interval)
}

func (p *Process) runHooks(interval time.Duration) {
	defer p.hookWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopHook:
			return
		case now := <-ticker.C:
			p.mu.Lock()
			hooks := append([]MaintenanceHook(nil), p.hooks...)
			p.mu.Unlock()
			for _, h := range hooks {
				h(now)
			}
		}
	}
}

// Shutdown stops the hook ticker and the transport, in that order, so no
// hook fires against a transport that has already torn down its receipts.
func (p *Process) Shutdown() {
	if p.stopHook != nil {
		close(p.stopHook)
		p.hookWG.Wait()
	}
	p.Transport.Shutdown()
}

func identityPath(stateDir string) string {
	if stateDir == "" {
		return ""
	}
	return filepath.Join(stateDir, "identity.key")
}

// LoadOrCreateIdentity reads a previously saved private identity from path,
// or generates and persists a fresh one if path doesn't exist yet — the
// same "create keys on first run, reuse them after" idiom as the teacher's
// cmd/client/main.go createKeysIfNotExists, generalized from per-field .env
// entries to this module's own raw private-key encoding. An empty path
// always creates an ephemeral, unpersisted identity.
func LoadOrCreateIdentity(path string) (*identity.Identity, error) {
	if path == "" {
		return identity.Create()
	}

	if raw, err := os.ReadFile(path); err == nil {
		return identity.FromPrivateBytes(raw)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	id, err := identity.Create()
	if err != nil {
		return nil, err
	}
	priv, err := id.PrivateBytes()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := atomicWriteKey(path, priv); err != nil {
		return nil, err
	}
	return id, nil
}

// atomicWriteKey mirrors transport/persistence.go's temp-file-then-rename
// pattern so a crash mid-write can never leave a half-written key file.
func atomicWriteKey(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

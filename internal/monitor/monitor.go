// Package monitor implements a read-only diagnostics dashboard over a
// running transport.Transport. Grounded on the teacher's client/ui.go gocui
// view/layout pattern (InitGui, SetManagerFunc, one titled view per region
// of the screen), repointed from rendering chat messages at rendering
// router state: interfaces, known paths, and queue depth. It never calls
// anything that mutates the router — only transport.Transport.Snapshot — so
// it can never drive protocol behavior, keeping this module's CLI/daemon
// Non-goal intact.
package monitor

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jroimartin/gocui"

	"github.com/torlando-tech/reticulum-kt-sub003/transport"
)

// Dashboard renders a live view of a transport's Snapshot at a fixed
// refresh interval until Close is called or the user quits (Ctrl+C).
type Dashboard struct {
	gui       *gocui.Gui
	tr        *transport.Transport
	refresh   time.Duration
	stop      chan struct{}
	identHash string
}

// New constructs a Dashboard over tr. identHash is a short label (e.g. the
// owning identity's hex hash) shown in the title bar.
func New(tr *transport.Transport, identHash string, refresh time.Duration) (*Dashboard, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gocui: %w", err)
	}
	d := &Dashboard{gui: g, tr: tr, refresh: refresh, stop: make(chan struct{}), identHash: identHash}
	g.SetManagerFunc(d.layout)
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, d.quit); err != nil {
		return nil, err
	}
	return d, nil
}

// Run starts the background refresh loop and blocks in gocui's main loop
// until quit. Returns nil on a clean Ctrl+C exit.
func (d *Dashboard) Run() error {
	go d.refreshLoop()
	if err := d.gui.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

// Close stops the refresh loop and tears down the terminal UI.
func (d *Dashboard) Close() {
	close(d.stop)
	d.gui.Close()
}

func (d *Dashboard) quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func (d *Dashboard) refreshLoop() {
	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.gui.Update(func(g *gocui.Gui) error {
				return d.render(g)
			})
		}
	}
}

func (d *Dashboard) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("interfaces", 0, 0, maxX/2-1, maxY/3); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Interfaces"
		v.Wrap = true
	}

	if v, err := g.SetView("paths", maxX/2, 0, maxX-1, maxY/3); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Path table"
		v.Wrap = true
	}

	if v, err := g.SetView("summary", 0, maxY/3+1, maxX-1, maxY-1); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = fmt.Sprintf("Node %s — summary (Ctrl+C to quit)", d.identHash)
		v.Wrap = true
	}

	return d.render(g)
}

func (d *Dashboard) render(g *gocui.Gui) error {
	snap := d.tr.Snapshot()

	if v, err := g.View("interfaces"); err == nil {
		v.Clear()
		ifaces := append([]transport.InterfaceStatus(nil), snap.Interfaces...)
		sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].ID < ifaces[j].ID })
		for _, i := range ifaces {
			state := "offline"
			if i.Online {
				state = "online"
			}
			fmt.Fprintf(v, "%-10s %-8s bitrate=%d\n", i.ID, state, i.Bitrate)
		}
	}

	if v, err := g.View("paths"); err == nil {
		v.Clear()
		for destHash, entry := range snap.Paths {
			fmt.Fprintf(v, "%x via %-8s hops=%d\n", destHash[:4], entry.NextHopInterface, entry.Hops)
		}
	}

	if v, err := g.View("summary"); err == nil {
		v.Clear()
		fmt.Fprintf(v, "known destinations: %d\n", snap.KnownDestinations)
		fmt.Fprintf(v, "active links:       %d\n", snap.ActiveLinks)
		fmt.Fprintf(v, "announces queued:   %d\n", snap.AnnounceQueued)
		fmt.Fprintf(v, "paths:              %d\n", len(snap.Paths))
	}

	return nil
}

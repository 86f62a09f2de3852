// Command monitor is a small demo/debug launcher for internal/monitor,
// playing the same "binary that starts the gocui interface" role as the
// teacher's cmd/client/main.go, repointed from a chat session at a
// read-only diagnostics dashboard (spec.md §4.0.e). Since concrete physical
// interfaces are out of scope (spec.md §1), this binary stands its process
// up an in-memory neighbor so the dashboard has a live path table and
// interface to show; a real deployment wires process.Process to whatever
// iface.Adapter a caller supplies instead of this loopback pair.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torlando-tech/reticulum-kt-sub003/configs"
	"github.com/torlando-tech/reticulum-kt-sub003/destination"
	"github.com/torlando-tech/reticulum-kt-sub003/iface"
	"github.com/torlando-tech/reticulum-kt-sub003/internal/monitor"
	"github.com/torlando-tech/reticulum-kt-sub003/process"
)

var logger = logrus.New()

func main() {
	stateDir := flag.String("state-dir", "", "state directory for identity and persisted tables (empty = in-memory only)")
	refresh := flag.Duration("refresh", time.Second, "dashboard refresh interval")
	flag.Parse()

	configs.Load()

	self, err := process.New(process.Config{StateDir: *stateDir})
	if err != nil {
		logger.Fatalf("failed to start process: %v", err)
	}

	neighbor, err := process.New(process.Config{})
	if err != nil {
		logger.Fatalf("failed to start neighbor process: %v", err)
	}

	a, b := iface.NewMemoryPair("demo0", "demo0")
	self.Transport.RegisterInterface(a)
	neighbor.Transport.RegisterInterface(b)

	appDest := destination.New(neighbor.Identity, destination.Out, destination.Single, "monitor-demo", []string{"node"})
	announce, err := appDest.BuildAnnounce(nil, nil)
	if err != nil {
		logger.Fatalf("failed to build demo announce: %v", err)
	}
	neighbor.Transport.EnqueueAnnounce(announce)

	self.Start(configs.ServerMaintenanceInterval)
	neighbor.Start(configs.ServerMaintenanceInterval)
	defer self.Shutdown()
	defer neighbor.Shutdown()

	dash, err := monitor.New(self.Transport, fmt.Sprintf("%x", self.Identity.Hash()), *refresh)
	if err != nil {
		logger.Fatalf("failed to initialize dashboard: %v", err)
	}
	defer dash.Close()

	if err := dash.Run(); err != nil {
		logger.Errorf("dashboard exited with error: %v", err)
		os.Exit(1)
	}
}

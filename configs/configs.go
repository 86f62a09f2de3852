// Package configs holds the tunables of spec.md's transport, link, and
// resource components as package-level vars, the teacher's global-config
// idiom (minimal-signal/configs/configs.go), generalized with a Load()
// that layers .env overrides (via the teacher's indirect godotenv
// dependency) and then OS environment variables on top of the defaults
// below.
package configs

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/torlando-tech/reticulum-kt-sub003/internal/rlog"
)

var (
	// HKDFInfo is a configurable HKDF info string. No derivation in this
	// module reads it: identity encryption uses empty info, the link
	// handshake uses "link", and IFAC uses "ifac"/"stream".
	HKDFInfo = []byte("reticulum-kt-sub003")

	// Maintenance cadence (spec.md §4.6). ServerMaintenanceInterval applies
	// to always-on nodes; EnergyConstrainedMaintenanceInterval to battery
	// nodes.
	ServerMaintenanceInterval             = 250 * time.Millisecond
	EnergyConstrainedMaintenanceInterval  = 15 * time.Minute

	// Announce queue / rate limiting (spec.md §4.6, §9).
	AnnounceBandwidthCapFraction = 0.02 // 2% of interface bandwidth
	AnnounceBurstMultiplier      = 4.0

	// Deduplication ring capacity bounds (spec.md §3).
	DedupRingFloor   = 50_000
	DedupRingCeiling = 1_000_000

	// Path table TTL (spec.md §3 lifecycle summary).
	PathTTL = 7 * 24 * time.Hour

	// Ratchet TTL (spec.md §3, §4.3).
	RatchetTTL = 30 * 24 * time.Hour

	// Link keepalive (spec.md §4.7).
	LinkKeepaliveInterval = 360 * time.Second
	LinkKeepaliveTimeout  = 2 * LinkKeepaliveInterval

	// Timeout shape: base + hops*perHop + slack (spec.md §5).
	TimeoutBase   = 5 * time.Second
	TimeoutPerHop = 3 * time.Second
	TimeoutSlack  = 1 * time.Second

	// Resource transfer (spec.md §4.8).
	ResourceMaxSize = 64 * 1024 * 1024

	// LogLevel controls the root logger's verbosity.
	LogLevel = logrus.InfoLevel
)

// Load applies .env overrides (if a file is present) and then OS environment
// variable overrides on top of the compiled-in defaults, the same
// precedence the teacher's cmd/*/main.go binaries use.
func Load() {
	_ = godotenv.Load() // missing .env is not an error

	if v := os.Getenv("RETICULUM_MAINTENANCE_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			ServerMaintenanceInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("RETICULUM_DEDUP_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			DedupRingCeiling = n
		}
	}
	if v := os.Getenv("RETICULUM_LOG_LEVEL"); v != "" {
		if lvl, err := logrus.ParseLevel(v); err == nil {
			LogLevel = lvl
		}
	}

	rlog.SetLevel(LogLevel)
}

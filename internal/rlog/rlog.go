// Package rlog centralizes structured logging via logrus, the library the
// teacher already takes a *logrus.Logger with (minimal-signal/server,
// minimal-signal/client/main.go). Every long-lived component gets a
// *logrus.Entry scoped to its own "component" field instead of passing a
// bare *logrus.Logger around.
package rlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel adjusts the root logger's level (configs.Load wires this from
// config/env).
func SetLevel(level logrus.Level) {
	root().SetLevel(level)
}

// For returns a logger scoped to component.
func For(component string) *logrus.Entry {
	return root().WithField("component", component)
}

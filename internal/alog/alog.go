// Package alog adapts github.com/apex/log to the ltime.Logger interface
// used throughout this module, and provides a null logger for tests.
package alog

import (
	"github.com/apex/log"
	"github.com/s3sim/core/ltime"
)

// Apex wraps an *apex/log.Logger (or log.Entry) as a [ltime.Logger].
type Apex struct {
	entry *log.Entry
}

// New creates an [Apex] logger writing through the given apex/log logger.
func New(logger *log.Logger) *Apex {
	return &Apex{entry: log.NewEntry(logger)}
}

// Debugf implements ltime.Logger.
func (a *Apex) Debugf(format string, v ...any) { a.entry.Debugf(format, v...) }

// Debug implements ltime.Logger.
func (a *Apex) Debug(message string) { a.entry.Debug(message) }

// Infof implements ltime.Logger.
func (a *Apex) Infof(format string, v ...any) { a.entry.Infof(format, v...) }

// Info implements ltime.Logger.
func (a *Apex) Info(message string) { a.entry.Info(message) }

// Warnf implements ltime.Logger.
func (a *Apex) Warnf(format string, v ...any) { a.entry.Warnf(format, v...) }

// Warn implements ltime.Logger.
func (a *Apex) Warn(message string) { a.entry.Warn(message) }

var _ ltime.Logger = &Apex{}

// NullLogger is a [ltime.Logger] that discards everything.
type NullLogger struct{}

// Debug implements ltime.Logger.
func (*NullLogger) Debug(message string) {}

// Debugf implements ltime.Logger.
func (*NullLogger) Debugf(format string, v ...any) {}

// Info implements ltime.Logger.
func (*NullLogger) Info(message string) {}

// Infof implements ltime.Logger.
func (*NullLogger) Infof(format string, v ...any) {}

// Warn implements ltime.Logger.
func (*NullLogger) Warn(message string) {}

// Warnf implements ltime.Logger.
func (*NullLogger) Warnf(format string, v ...any) {}

var _ ltime.Logger = &NullLogger{}

// Package log is a small wrapper around the standard library logger that
// gives every subsystem a named logger and a debug switch.
//
// Every line carries a level and the service name:
//
//	2024/06/01 10:00:00.000000 INFO [search>] listing annotations by day
//
// Debug output is off by default. Enable it for everything with
// SetGlobalDebug (the --debug flag does this) or for a single service with
// EnableDebugFor:
//
//	log.EnableDebugFor("search")
//	log.ForService("search").Debugf("window %s..%s", start, end)
//
// Tests can capture output by passing a bytes.Buffer to SetOutput.
//
// The package name collides with the standard library log package; alias
// one of them when both are needed.
package log

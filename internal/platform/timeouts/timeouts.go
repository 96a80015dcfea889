// Package timeouts defines shared timeout constants used across gridwire
// components. Centralizing these values prevents drift between component
// boundaries and makes the durations discoverable.
package timeouts

import "time"

// Store caps a single event-store call (append, read, snapshot).
const Store = 5 * time.Second

// Sync caps a full-stream replay requested by a reconnecting client.
const Sync = 30 * time.Second

// ReorderWindow is how long the hub waits for an out-of-order bus message
// to be filled by its predecessor before issuing a gap-fill read from the
// event store.
const ReorderWindow = 250 * time.Millisecond

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

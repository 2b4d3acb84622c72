package main

import (
	"sync"
	"time"
)

const (
	statusConnected       = "Connected"
	statusDisconnected    = "Disconnected"
	statusConnectionError = "Connection Error"
	statusRPCError        = "RPC Error"
)

type connectionStatus struct {
	Connected bool      `json:"connected"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// connectionTracker holds the indicator shown in the navbar. Every page
// refresh and every watcher check reports into it.
type connectionTracker struct {
	mu     sync.RWMutex
	status connectionStatus
	now    func() time.Time
}

func newConnectionTracker() *connectionTracker {
	return &connectionTracker{
		status: connectionStatus{Connected: false, Message: statusDisconnected},
		now:    time.Now,
	}
}

// updateConnectionStatus records the latest state. An empty message
// becomes "Connected" or "Disconnected". It reports whether the connected
// flag flipped.
func (t *connectionTracker) updateConnectionStatus(connected bool, message string) (connectionStatus, bool) {
	if message == "" {
		if connected {
			message = statusConnected
		} else {
			message = statusDisconnected
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.status.Connected != connected
	t.status = connectionStatus{Connected: connected, Message: message, UpdatedAt: t.now()}
	return t.status, changed
}

func (t *connectionTracker) Snapshot() connectionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// statusFromResults derives the indicator from one refresh pass: any
// unreachable daemon call marks the connection as failed.
func statusFromResults(results ...apiResult) (bool, string) {
	for _, r := range results {
		if r.unreachable {
			return false, statusConnectionError
		}
	}
	return true, statusConnected
}

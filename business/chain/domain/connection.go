// Package domain contains the core domain types for the L1 chain context.
package domain

import "time"

// ConnectionState represents the state of the L1 node connection.
type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateReattaching  ConnectionState = "reattaching"
	StateClosed       ConnectionState = "closed"
)

// Gauge returns the numeric value recorded for the state metric.
func (s ConnectionState) Gauge() int64 {
	switch s {
	case StateConnected:
		return 1
	case StateReattaching:
		return 2
	case StateClosed:
		return 3
	default:
		return 0
	}
}

// ConnectionStatus is a point-in-time snapshot of the connection.
type ConnectionStatus struct {
	State       ConnectionState
	LastBlock   uint64
	LastRefresh time.Time
	Reattaches  int
	LastError   string
}

// Package events provides the in-process event bus for fleet changes.
//
// A Broker fans each published Event out to every registered Subscriber.
// Transports (WebSocket, SSE) and in-process listeners subscribe through
// the same interface, so domain code publishes once.
package events

import (
	"slices"
	"time"
)

// EventType represents the type of fleet event.
type EventType string

// Event types for fleet changes.
const (
	// Vehicle events (from the fleet view).
	VehicleAdded   EventType = "vehicle.added"
	VehicleUpdated EventType = "vehicle.updated"
	VehicleDeleted EventType = "vehicle.deleted"

	// Document events (from ingestion).
	DocumentProcessed EventType = "document.processed"

	// Maintenance events.
	FleetCleared EventType = "fleet.cleared"
	CacheCleared EventType = "cache.cleared"

	// Client events (from transport layers).
	ClientConnected EventType = "client.connected"
)

// Types returns every domain event type.
func Types() []EventType {
	return []EventType{
		VehicleAdded, VehicleUpdated, VehicleDeleted,
		DocumentProcessed, FleetCleared, CacheCleared,
	}
}

// Event represents a fleet event with type, timestamp, and data.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// VehiclePayload is the data carried by vehicle events.
type VehiclePayload struct {
	VIN        string `json:"vin"`
	RecordID   string `json:"recordId,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	Conflicts  int    `json:"conflicts,omitempty"`
	Score      int    `json:"score"`
	Risk       string `json:"risk,omitempty"`
}

// ParseEventType resolves a wire name such as "vehicle.added".
func ParseEventType(s string) (EventType, bool) {
	t := EventType(s)
	if t == ClientConnected || slices.Contains(Types(), t) {
		return t, true
	}
	return "", false
}

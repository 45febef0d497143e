// Package events provides the in-process event bus used to announce
// library, watcher, and scan transitions.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// Library events
	EventLibraryCreated EventType = "library.created"
	EventLibraryUpdated EventType = "library.updated"
	EventLibraryDeleted EventType = "library.deleted"

	// Watcher events
	EventWatcherStarted EventType = "watcher.started"
	EventWatcherStopped EventType = "watcher.stopped"

	// Scan events
	EventScanStarted   EventType = "scan.started"
	EventScanProgress  EventType = "scan.progress"
	EventScanCompleted EventType = "scan.completed"
	EventScanFailed    EventType = "scan.failed"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event)

// EventFilter selects which events a subscription receives. An empty
// filter matches everything.
type EventFilter struct {
	Types []EventType `json:"types,omitempty"`
}

func (f EventFilter) matches(e Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Subscription represents a registered event handler
type Subscription struct {
	ID      string       `json:"id"`
	Filter  EventFilter  `json:"filter"`
	Handler EventHandler `json:"-"`
	Created time.Time    `json:"created"`
}

// Stats reports counters for published events
type Stats struct {
	TotalEvents         int64            `json:"total_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
	Dropped             int64            `json:"dropped"`
}

// NewSystemEvent creates an event originating from the system itself
func NewSystemEvent(eventType EventType, title, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "system",
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

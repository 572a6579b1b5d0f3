// Package hub fans dashboard events out to websocket clients over channels.
package hub

import "time"

// Event is the envelope every dashboard client receives.
type Event struct {
	Type string    `json:"type"` // status, heading, command
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Time: time.Now(), Data: data}
}

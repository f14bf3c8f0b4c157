package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeCorrection is sent for every finished correction
	EventTypeCorrection EventType = "correction"
	// EventTypeDatasetReload is sent when a new dataset is swapped in
	EventTypeDatasetReload EventType = "dataset_reload"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping message
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// CorrectionEvent describes a correction without its text
type CorrectionEvent struct {
	Tone           string  `json:"tone"`
	Mode           string  `json:"mode"`
	InputLength    int     `json:"input_length"`
	OutputLength   int     `json:"output_length"`
	Changed        bool    `json:"changed"`
	CacheHit       bool    `json:"cache_hit"`
	DatasetVersion string  `json:"dataset_version"`
	ProcessingMS   float64 `json:"processing_ms"`
}

// DatasetReloadEvent reports a dataset swap
type DatasetReloadEvent struct {
	PreviousVersion string         `json:"previous_version"`
	Version         string         `json:"version"`
	Sizes           map[string]int `json:"sizes"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string               `json:"type"`
	Data *SubscriptionRequest `json:"data,omitempty"`
}

// SubscriptionRequest limits the event types a client receives
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	mu           sync.Mutex
	subscription *SubscriptionRequest
	lastPing     time.Time
}

func (c *Client) setSubscription(s *SubscriptionRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscription = s
}

func (c *Client) wants(eventType EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscription == nil || eventType == EventTypePong {
		return true
	}
	for _, t := range c.subscription.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

func (c *Client) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPing = time.Now()
}

package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flymap/trackd/internal/types"
)

const (
	SubjectDeviceUpdated = "track.device.updated"
	SubjectGroupsAdded   = "track.groups.added"
)

// GroupsEvent announces a change in live track group membership.
type GroupsEvent struct {
	GroupIDs []int64 `json:"group_ids"`
	Ts       int64   `json:"ts"`
}

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "TRACKD",
		Subjects: []string{"track.>"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishDeviceUpdated publishes a device refresh result
func (c *Client) PublishDeviceUpdated(update *types.DeviceUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	_, err = c.js.Publish(SubjectDeviceUpdated, data)
	if err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}

	return nil
}

// SubscribeDeviceUpdated subscribes to device refresh results
func (c *Client) SubscribeDeviceUpdated(handler func(*types.DeviceUpdate)) error {
	_, err := c.js.Subscribe(SubjectDeviceUpdated, func(msg *nats.Msg) {
		var update types.DeviceUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			fmt.Printf("Error unmarshaling update: %v\n", err)
			return
		}
		handler(&update)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// PublishGroupsAdded publishes the ids of newly loaded track groups
func (c *Client) PublishGroupsAdded(event *GroupsEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = c.js.Publish(SubjectGroupsAdded, data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// SubscribeGroupsAdded subscribes to track group announcements
func (c *Client) SubscribeGroupsAdded(handler func(*GroupsEvent)) error {
	_, err := c.js.Subscribe(SubjectGroupsAdded, func(msg *nats.Msg) {
		var event GroupsEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			fmt.Printf("Error unmarshaling event: %v\n", err)
			return
		}
		handler(&event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

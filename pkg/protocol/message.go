// Package protocol defines the WebSocket control messages exchanged between
// streaming endpoints and the relay. Binary frames carry encoded JPEG images
// and have no header; everything structured travels as JSON text messages.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies the type of control message.
type MessageType string

const (
	// TypeRegister binds a connection to a role and stream id.
	// Sent client -> relay, once per connection.
	TypeRegister MessageType = "register"

	// TypeActiveStreams announces the set of stream ids that currently
	// have a registered streamer. Sent relay -> multi-viewer, periodically.
	TypeActiveStreams MessageType = "active-streams"
)

// Role identifies what a connection does with a stream.
type Role string

const (
	// RoleStreamer produces frames for one stream id.
	RoleStreamer Role = "streamer"

	// RoleViewer consumes frames for one specific stream id.
	RoleViewer Role = "viewer"

	// RoleMultiViewer receives active-streams broadcasts instead of
	// frames. Registers with stream id "all".
	RoleMultiViewer Role = "multi-viewer"
)

// StreamAll is the stream id a multi-viewer registers with.
const StreamAll = "all"

// ErrMissingType is returned when a control message has no "type" field.
var ErrMissingType = errors.New("control message missing type")

// Message is a control message. The wire format is flat JSON with a
// required "type" field; which other fields are meaningful depends on it.
// Unknown types parse without error so dispatchers can ignore them.
type Message struct {
	Type MessageType `json:"type"`

	// register
	Role     Role   `json:"role,omitempty"`
	StreamID string `json:"streamId,omitempty"`

	// active-streams
	Streams []string `json:"streams,omitempty"`
}

// NewRegister creates a register message for the given role and stream id.
func NewRegister(role Role, streamID string) *Message {
	return &Message{Type: TypeRegister, Role: role, StreamID: streamID}
}

// NewActiveStreams creates an active-streams broadcast.
func NewActiveStreams(ids []string) *Message {
	return &Message{Type: TypeActiveStreams, Streams: ids}
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// Parse parses a control message from bytes. Messages without a type field
// are rejected; messages with an unrecognized type are not.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse control message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}

// ValidRole reports whether r is one of the roles the relay accepts.
func ValidRole(r Role) bool {
	switch r {
	case RoleStreamer, RoleViewer, RoleMultiViewer:
		return true
	}
	return false
}

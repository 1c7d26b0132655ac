package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// StreamKeyType tags the StreamKey union.
type StreamKeyType string

const (
	StreamKeyDirect StreamKeyType = "direct"
	StreamKeyRelay  StreamKeyType = "relay"
)

// DirectPlatformKey is an ingest stream of the primary platform.
type DirectPlatformKey struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// RelayKey is a named entry on the relay that fans one stream out.
// Embedded, if set, is the primary ingest stream the relay forwards to.
type RelayKey struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Embedded  *DirectPlatformKey `json:"embedded,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// StreamKey holds exactly one of Direct or Relay, selected by Type.
type StreamKey struct {
	Type   StreamKeyType      `json:"type"`
	Direct *DirectPlatformKey `json:"direct,omitempty"`
	Relay  *RelayKey          `json:"relay,omitempty"`
}

var ErrInvalidStreamKey = errors.New("invalid stream key")

// NewDirectStreamKey wraps a direct key. The key is copied.
func NewDirectStreamKey(k DirectPlatformKey) *StreamKey {
	return &StreamKey{Type: StreamKeyDirect, Direct: &k}
}

// NewRelayStreamKey wraps a relay key. The key and its embedded key are copied.
func NewRelayStreamKey(k RelayKey) *StreamKey {
	if k.Embedded != nil {
		e := *k.Embedded
		k.Embedded = &e
	}
	return &StreamKey{Type: StreamKeyRelay, Relay: &k}
}

// Validate checks the union invariant.
func (k *StreamKey) Validate() error {
	switch k.Type {
	case StreamKeyDirect:
		if k.Direct == nil || k.Relay != nil {
			return ErrInvalidStreamKey
		}
	case StreamKeyRelay:
		if k.Relay == nil || k.Direct != nil {
			return ErrInvalidStreamKey
		}
	default:
		return ErrInvalidStreamKey
	}
	return nil
}

// PrimaryKey returns the primary ingest stream a broadcast binds to, if any.
func (k *StreamKey) PrimaryKey() *DirectPlatformKey {
	switch k.Type {
	case StreamKeyDirect:
		return k.Direct
	case StreamKeyRelay:
		return k.Relay.Embedded
	}
	return nil
}

// IsRelay reports whether the key goes through the relay.
func (k *StreamKey) IsRelay() bool {
	return k != nil && k.Type == StreamKeyRelay && k.Relay != nil
}

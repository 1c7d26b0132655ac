// Package platforms holds the value types exchanged with the primary video
// platform, the secondary mirror platform and the relay.
package platforms

import (
	"errors"
	"time"

	"github.com/kt-lectures/broadcaster/internal/models"
)

// ErrNotFound is returned when a remote object id does not exist.
var ErrNotFound = errors.New("remote object not found")

// Lifecycle is the primary platform's own state of a broadcast.
type Lifecycle string

const (
	LifecycleCreated      Lifecycle = "created"
	LifecycleReady        Lifecycle = "ready"
	LifecycleTestStarting Lifecycle = "testStarting"
	LifecycleTesting      Lifecycle = "testing"
	LifecycleLiveStarting Lifecycle = "liveStarting"
	LifecycleLive         Lifecycle = "live"
	LifecycleComplete     Lifecycle = "complete"
	LifecycleRevoked      Lifecycle = "revoked"
)

// OnAir reports whether viewers already receive the stream.
func (l Lifecycle) OnAir() bool {
	return l == LifecycleLive || l == LifecycleLiveStarting
}

// BroadcastDetails is the metadata pushed to a platform video.
type BroadcastDetails struct {
	Title          string
	Description    string
	Privacy        models.Privacy
	ScheduledStart time.Time
}

// Broadcast is a schedulable live video on the primary platform.
type Broadcast struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Lifecycle     Lifecycle `json:"lifecycle"`
	BoundStreamID string    `json:"bound_stream_id,omitempty"`
}

// IngestStream is a primary platform ingest endpoint.
type IngestStream struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key"`
	IngestURL string `json:"ingest_url"`
	Status    string `json:"status,omitempty"`
	Health    string `json:"health,omitempty"`
}

// Secondary platform video lifecycle values.
const (
	SecondaryDraft   = "draft"
	SecondaryLive    = "live"
	SecondaryStopped = "stopped"
)

// SecondaryVideo is a broadcast-like video on the mirror platform.
type SecondaryVideo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	StreamURL string `json:"-"`
	Link      string `json:"link,omitempty"`
}

// RelayStatus is what the relay reports for a key.
type RelayStatus struct {
	IsLive        bool       `json:"is_live"`
	Bitrate       int64      `json:"bitrate"`
	LastFrameTime *time.Time `json:"last_frame_time,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoState is the local publishing state of a video.
type VideoState string

const (
	VideoStateNew       VideoState = "new"
	VideoStateScheduled VideoState = "scheduled"
	VideoStateLiveTest  VideoState = "live_test"
	VideoStateLive      VideoState = "live"
	VideoStateRecorded  VideoState = "recorded"
)

var stateOrder = map[VideoState]int{
	VideoStateNew:       0,
	VideoStateScheduled: 1,
	VideoStateLiveTest:  2,
	VideoStateLive:      3,
	VideoStateRecorded:  4,
}

// Valid reports whether s is a known state.
func (s VideoState) Valid() bool {
	_, ok := stateOrder[s]
	return ok
}

// CanAdvance reports whether moving from s to next keeps the state sequence
// monotonic. LiveTest may follow itself; Scheduled may be skipped on the way
// to LiveTest; New may jump straight to Recorded when an external upload is linked.
func (s VideoState) CanAdvance(next VideoState) bool {
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	to, ok := stateOrder[next]
	if !ok {
		return false
	}
	switch {
	case s == VideoStateLiveTest && next == VideoStateLiveTest:
		return true
	case to == from+1:
		return true
	case next == VideoStateRecorded && (s == VideoStateNew || s == VideoStateRecorded):
		return true
	}
	return false
}

// Video is one lecture broadcast of a lesson.
type Video struct {
	ID                   uuid.UUID  `json:"id"`
	Title                string     `json:"title"`
	LectureNumber        string     `json:"lecture_number"`
	ThumbnailsTemplateID uuid.UUID  `json:"thumbnails_template_id"`
	ThumbnailLabel       *string    `json:"thumbnail_label,omitempty"`
	CustomTitle          *string    `json:"custom_title,omitempty"`
	LessonID             uuid.UUID  `json:"lesson_id"`
	State                VideoState `json:"state"`
	PrimaryBroadcastID   *string    `json:"primary_broadcast_id,omitempty"`
	SecondaryVideoID     *string    `json:"secondary_video_id,omitempty"`
	SecondaryStreamURL   *string    `json:"secondary_stream_url,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NumberLabel is the text drawn in the thumbnail number slot.
func (v *Video) NumberLabel(kind LessonKind) string {
	if v.ThumbnailLabel != nil && *v.ThumbnailLabel != "" {
		return *v.ThumbnailLabel
	}
	return kind.NumberPrefix() + v.LectureNumber
}

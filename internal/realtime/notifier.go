package realtime

import (
	"context"

	"github.com/kt-lectures/broadcaster/internal/models"
)

// EventVideoStateChanged is pushed whenever a video is persisted.
const EventVideoStateChanged = "video_state_changed"

// VideoEvent is the payload of EventVideoStateChanged.
type VideoEvent struct {
	VideoID       string            `json:"video_id"`
	LessonID      string            `json:"lesson_id"`
	State         models.VideoState `json:"state"`
	Title         string            `json:"title"`
	LectureNumber string            `json:"lecture_number"`
}

// Notifier fans video changes out to the consoles watching the lesson.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) VideoChanged(_ context.Context, v *models.Video) {
	n.hub.Publish(v.LessonID, EventVideoStateChanged, VideoEvent{
		VideoID:       v.ID.String(),
		LessonID:      v.LessonID.String(),
		State:         v.State,
		Title:         v.Title,
		LectureNumber: v.LectureNumber,
	})
}

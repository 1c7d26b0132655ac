package publishing

import "github.com/kt-lectures/broadcaster/internal/models"

// Step names a sub-step of an operation.
type Step string

const (
	StepPrimaryPlaylist    Step = "primary_playlist_attach"
	StepSecondaryCreate    Step = "secondary_create"
	StepSecondaryAlbum     Step = "secondary_album_attach"
	StepRelayProvision     Step = "relay_provision"
	StepThumbnailRender    Step = "thumbnail_render"
	StepPrimaryThumbnail   Step = "primary_thumbnail_upload"
	StepSecondaryThumbnail Step = "secondary_thumbnail_upload"
	StepRelayAddTarget     Step = "relay_add_target"
	StepSecondaryPublish   Step = "secondary_publish"
	StepSecondaryStop      Step = "secondary_stop"
)

// Retryable reports whether the step can be replayed later on its own.
func (s Step) Retryable() bool {
	switch s {
	case StepPrimaryPlaylist, StepSecondaryAlbum, StepPrimaryThumbnail, StepSecondaryThumbnail, StepSecondaryStop:
		return true
	}
	return false
}

// StepFailure records a best-effort step that failed.
type StepFailure struct {
	Step     Step     `json:"step"`
	Platform Platform `json:"platform,omitempty"`
	Err      error    `json:"-"`
	Message  string   `json:"error"`
}

// Result is the outcome of a side-effecting operation. Degraded lists
// best-effort steps that failed while the operation itself succeeded.
type Result struct {
	Video    *models.Video `json:"video"`
	Degraded []StepFailure `json:"degraded,omitempty"`
	// Pending is set by StartStreaming when the broadcast is not ready yet.
	Pending bool `json:"pending,omitempty"`
}

// Clean reports whether every step succeeded.
func (r *Result) Clean() bool { return len(r.Degraded) == 0 }

// Failed reports whether step is among the degraded ones.
func (r *Result) Failed(step Step) bool {
	for _, f := range r.Degraded {
		if f.Step == step {
			return true
		}
	}
	return false
}

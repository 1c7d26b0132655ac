package publishing

import (
	"context"
	"errors"
	"fmt"

	"github.com/kt-lectures/broadcaster/internal/models"
)

var (
	// ErrNotFound aliases the repository sentinel so callers can match either.
	ErrNotFound = models.ErrNotFound
	// ErrWrongState means the video is not in a state that permits the operation.
	// Callers treat it as a silent no-op.
	ErrWrongState = errors.New("video is not in the required state")
	// ErrPreconditionFailed means the lesson lacks configuration the operation needs.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrNoStreamKey means the lesson has no stream key configured.
	ErrNoStreamKey = errors.New("lesson has no stream key")
	// ErrStopRejected means the primary broadcast is neither live nor complete.
	ErrStopRejected = errors.New("broadcast cannot be stopped in its current lifecycle")
	// ErrExternalNotFound means a platform video id supplied by the operator does not exist.
	ErrExternalNotFound = errors.New("external video not found")
	// ErrKeyspaceExhausted means every relay key name is taken.
	ErrKeyspaceExhausted = errors.New("relay key names exhausted")
	// ErrPlatformDisabled means the operation needs a platform that is not configured.
	ErrPlatformDisabled = errors.New("platform is not configured")
)

// Platform selects one of the remote collaborators.
type Platform string

const (
	PlatformPrimary   Platform = "primary"
	PlatformSecondary Platform = "secondary"
	PlatformRelay     Platform = "relay"
)

// Valid reports whether p names a video platform (not the relay).
func (p Platform) Valid() bool {
	return p == PlatformPrimary || p == PlatformSecondary
}

// PlatformError wraps any failure returned by a remote collaborator.
type PlatformError struct {
	Platform  Platform
	Op        string
	Transient bool
	Err       error
}

func (e *PlatformError) Error() string {
	if e.Transient {
		return fmt.Sprintf("%s %s (transient): %v", e.Platform, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

func platformError(p Platform, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return err
	}
	return &PlatformError{
		Platform:  p,
		Op:        op,
		Transient: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}

func wrongState(v *models.Video, op string) error {
	return fmt.Errorf("%s on video %s in state %s: %w", op, v.ID, v.State, ErrWrongState)
}

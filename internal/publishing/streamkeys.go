package publishing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

const (
	relayKeyMin  = 10000
	relayKeySpan = 90000
	// randomRelayKeyAttempts random draws are tried before scanning for a free name.
	randomRelayKeyAttempts = 64
	insertRelayKeyAttempts = 3
	// RelayStreamPrefix names the primary ingest stream created for a relay key.
	RelayStreamPrefix = "__r"
)

// GenerateUniqueRelayKeyName returns a 5-digit name not used by any stored relay key.
func (e *Engine) GenerateUniqueRelayKeyName(ctx context.Context) (string, error) {
	names, err := e.relayKeys.RelayKeyNames(ctx)
	if err != nil {
		return "", fmt.Errorf("list relay keys: %w", err)
	}
	taken := make(map[string]struct{}, len(names))
	for _, n := range names {
		taken[n] = struct{}{}
	}
	return pickRelayKeyName(taken, e.intn)
}

func pickRelayKeyName(taken map[string]struct{}, intn func(int) int) (string, error) {
	for i := 0; i < randomRelayKeyAttempts; i++ {
		name := strconv.Itoa(relayKeyMin + intn(relayKeySpan))
		if _, ok := taken[name]; !ok {
			return name, nil
		}
	}
	start := intn(relayKeySpan)
	for i := 0; i < relayKeySpan; i++ {
		name := strconv.Itoa(relayKeyMin + (start+i)%relayKeySpan)
		if _, ok := taken[name]; !ok {
			return name, nil
		}
	}
	return "", ErrKeyspaceExhausted
}

// SetRelayStreamKey creates a relay key with its own primary ingest stream
// and makes it the lesson's stream key.
func (e *Engine) SetRelayStreamKey(ctx context.Context, lessonID uuid.UUID) (*models.Lesson, error) {
	if _, err := e.loadLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	key, err := e.reserveRelayKey(ctx)
	if err != nil {
		return nil, err
	}

	var s *platforms.IngestStream
	err = e.call(ctx, PlatformPrimary, "create stream", func(ctx context.Context) (err error) {
		s, err = e.primary.CreateStream(ctx, RelayStreamPrefix+key.Name)
		return err
	})
	if err != nil {
		return nil, err
	}
	key.Embedded = &models.DirectPlatformKey{ID: s.ID, Name: s.Name, Key: s.Key}
	if err := e.relayKeys.ReplaceRelayKey(ctx, key); err != nil {
		return nil, fmt.Errorf("replace relay key %s: %w", key.Name, err)
	}

	if e.relay != nil {
		err := e.call(ctx, PlatformRelay, "provision", func(ctx context.Context) error {
			return e.provisionRelay(ctx, key, nil)
		})
		if err != nil {
			e.logger.Warn("relay provisioning deferred to testing", zap.String("relay_key", key.Name), zap.Error(err))
		}
	}

	sk := models.NewRelayStreamKey(*key)
	l, err := e.editLesson(ctx, lessonID, func(l *models.Lesson) error {
		l.StreamKey = sk
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("relay key assigned", zap.String("lesson_id", lessonID.String()), zap.String("relay_key", key.Name))
	return l, nil
}

// reserveRelayKey stores a fresh relay key, regenerating the name when a
// concurrent insert took it first.
func (e *Engine) reserveRelayKey(ctx context.Context) (*models.RelayKey, error) {
	var lastErr error
	for attempt := 0; attempt < insertRelayKeyAttempts; attempt++ {
		name, err := e.GenerateUniqueRelayKeyName(ctx)
		if err != nil {
			return nil, err
		}
		key := &models.RelayKey{ID: uuid.New(), Name: name, CreatedAt: e.now()}
		err = e.relayKeys.InsertRelayKey(ctx, key)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, models.ErrDuplicateKey) {
			return nil, fmt.Errorf("insert relay key: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("insert relay key: %w", lastErr)
}

// provisionRelay upserts the relay key with the full target list: the
// primary target, if any, and the secondary forward URL v already records.
// Provision replaces the list on the relay, so a target left out here stops
// being forwarded.
func (e *Engine) provisionRelay(ctx context.Context, key *models.RelayKey, v *models.Video) error {
	if e.relay == nil {
		return ErrPlatformDisabled
	}
	targets := []string{}
	if key.Embedded != nil {
		targets = append(targets, e.PrimaryTarget(key.Embedded))
	}
	if v != nil && v.SecondaryStreamURL != nil {
		targets = append(targets, *v.SecondaryStreamURL)
	}
	return e.relay.Provision(ctx, key.Name, targets)
}

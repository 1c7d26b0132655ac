package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/publishing"
)

// Engine is the part of the publishing engine the dialogues drive.
type Engine interface {
	CreateLesson(ctx context.Context, in publishing.LessonInput) (*models.Lesson, error)
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	EditLectureNumber(ctx context.Context, videoID uuid.UUID, number string) (*models.Video, error)
	EditCustomTitle(ctx context.Context, videoID uuid.UUID, title, label string) (*models.Video, error)
	UseTemplateTitle(ctx context.Context, videoID uuid.UUID) (*models.Video, error)
	ApplyTemplateToExternalVideo(ctx context.Context, videoID uuid.UUID, p publishing.Platform, externalID string) (*publishing.Result, error)
}

// Reply is what the operator sees after a message.
type Reply struct {
	Text     string                   `json:"text,omitempty"`
	Lesson   *models.Lesson           `json:"lesson,omitempty"`
	Video    *models.Video            `json:"video,omitempty"`
	Actions  []publishing.Action      `json:"actions,omitempty"`
	Degraded []publishing.StepFailure `json:"degraded,omitempty"`
	// Ignored is set when the command no longer applied and nothing changed.
	Ignored bool `json:"ignored,omitempty"`
}

const (
	CmdCancel        = "/cancel"
	CmdNewLesson     = "/newlesson"
	CmdLectureNumber = "/number"
	CmdCustomTitle   = "/title"
	CmdUseTemplate   = "/useTemplate"
	CmdApplyTemplate = "/apply"
)

const (
	askLessonName     = "Send a short name for the course, for example `1.MathAn38-39` or `2.OS.Hard`."
	askLessonTitle    = "Ok! Now send the formal course title used in video titles, for example `Mathematical Analysis`."
	askLessonLecturer = "Ok! Now send the name of the lecturer."
	askLessonTerm     = "Ok! Now send the term: a number from 1 to 8 or `SC` for elective courses."
	badLessonTerm     = "The term must be a number from 1 to 8 or `SC` for elective courses."
	askCustomLabel    = "Now send the lecture number to print on the cover, for example `L1` or `P2`."
	cancelled         = "Cancelled."
)

// Dialogue routes operator messages through the open session.
type Dialogue struct {
	engine   Engine
	sessions SessionStore
	logger   *zap.Logger
}

func NewDialogue(engine Engine, sessions SessionStore, logger *zap.Logger) *Dialogue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialogue{engine: engine, sessions: sessions, logger: logger}
}

// Handle processes one message from userID.
func (d *Dialogue) Handle(ctx context.Context, userID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	s, err := d.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		s = &Session{}
	}

	if strings.HasPrefix(text, "/") && text != CmdUseTemplate {
		return d.command(ctx, userID, text)
	}

	switch s.Step {
	case StepLessonName, StepLessonTitle, StepLessonLecturer, StepLessonTerm:
		return d.lessonStep(ctx, userID, s, text)
	case StepLectureNumber:
		return d.finishVideoEdit(ctx, userID, func(id uuid.UUID) (*models.Video, error) {
			return d.engine.EditLectureNumber(ctx, id, text)
		}, s)
	case StepCustomTitle:
		if text == CmdUseTemplate {
			return d.finishVideoEdit(ctx, userID, func(id uuid.UUID) (*models.Video, error) {
				return d.engine.UseTemplateTitle(ctx, id)
			}, s)
		}
		s.Title = text
		s.Step = StepCustomLabel
		return d.ask(ctx, userID, s, askCustomLabel)
	case StepCustomLabel:
		title := s.Title
		return d.finishVideoEdit(ctx, userID, func(id uuid.UUID) (*models.Video, error) {
			return d.engine.EditCustomTitle(ctx, id, title, text)
		}, s)
	case StepExternalVideoID:
		return d.applyTemplate(ctx, userID, s, text)
	}
	return &Reply{Text: "Nothing to do. Start with " + CmdNewLesson + "."}, nil
}

func (d *Dialogue) command(ctx context.Context, userID, text string) (*Reply, error) {
	fields := strings.Fields(text)
	switch fields[0] {
	case CmdCancel:
		if err := d.sessions.Delete(ctx, userID); err != nil {
			return nil, err
		}
		return &Reply{Text: cancelled}, nil
	case CmdNewLesson:
		return d.ask(ctx, userID, &Session{Step: StepLessonName}, askLessonName)
	case CmdLectureNumber, CmdCustomTitle, CmdApplyTemplate:
		return d.startVideoEdit(ctx, userID, fields)
	}
	return &Reply{Text: "Unknown command " + fields[0] + "."}, nil
}

func (d *Dialogue) ask(ctx context.Context, userID string, s *Session, text string) (*Reply, error) {
	if err := d.sessions.Save(ctx, userID, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &Reply{Text: text}, nil
}

func (d *Dialogue) lessonStep(ctx context.Context, userID string, s *Session, text string) (*Reply, error) {
	if text == "" {
		return &Reply{Text: "Please send a non-empty answer."}, nil
	}
	switch s.Step {
	case StepLessonName:
		s.Draft.Name, s.Step = text, StepLessonTitle
		return d.ask(ctx, userID, s, askLessonTitle)
	case StepLessonTitle:
		s.Draft.Title, s.Step = text, StepLessonLecturer
		return d.ask(ctx, userID, s, askLessonLecturer)
	case StepLessonLecturer:
		s.Draft.LecturerName, s.Step = text, StepLessonTerm
		return d.ask(ctx, userID, s, askLessonTerm)
	}

	if !models.ValidTerm(text) {
		return &Reply{Text: badLessonTerm}, nil
	}
	s.Draft.TermNumber = text
	l, err := d.engine.CreateLesson(ctx, s.Draft)
	if err != nil {
		return nil, err
	}
	if err := d.sessions.Delete(ctx, userID); err != nil {
		return nil, err
	}
	d.logger.Info("lesson created from chat", zap.String("user_id", userID), zap.String("lesson_id", l.ID.String()))
	return &Reply{Text: "Course " + l.Name + " created.", Lesson: l}, nil
}

func (d *Dialogue) startVideoEdit(ctx context.Context, userID string, fields []string) (*Reply, error) {
	if len(fields) < 2 {
		return &Reply{Text: "Usage: " + fields[0] + " <video id>"}, nil
	}
	id, err := uuid.Parse(fields[1])
	if err != nil {
		return &Reply{Text: "Invalid video id."}, nil
	}
	v, err := d.engine.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	s := &Session{VideoID: v.ID}
	var prompt string
	switch fields[0] {
	case CmdLectureNumber:
		s.Step = StepLectureNumber
		prompt = fmt.Sprintf("Send the lecture number for the video or %s. Current number: `%s`", CmdCancel, v.LectureNumber)
	case CmdCustomTitle:
		s.Step = StepCustomTitle
		prompt = fmt.Sprintf("Send a custom video title or %s to build it from the template. Current title: `%s`", CmdUseTemplate, v.Title)
	case CmdApplyTemplate:
		s.Platform = publishing.PlatformPrimary
		if len(fields) > 2 {
			s.Platform = publishing.Platform(fields[2])
		}
		if !s.Platform.Valid() {
			return &Reply{Text: "Platform must be primary or secondary."}, nil
		}
		s.Step = StepExternalVideoID
		prompt = "Send the video id or URL to apply the template to, or " + CmdCancel + "."
	}
	return d.ask(ctx, userID, s, prompt)
}

func (d *Dialogue) finishVideoEdit(ctx context.Context, userID string, edit func(uuid.UUID) (*models.Video, error), s *Session) (*Reply, error) {
	v, err := edit(s.VideoID)
	if err != nil {
		return nil, err
	}
	if err := d.sessions.Delete(ctx, userID); err != nil {
		return nil, err
	}
	return &Reply{Text: "Video updated.", Video: v, Actions: publishing.AllowedActions(v.State)}, nil
}

func (d *Dialogue) applyTemplate(ctx context.Context, userID string, s *Session, text string) (*Reply, error) {
	externalID := ExternalVideoID(s.Platform, text)
	if externalID == "" {
		return &Reply{Text: "Could not find a video id in that message."}, nil
	}
	res, err := d.engine.ApplyTemplateToExternalVideo(ctx, s.VideoID, s.Platform, externalID)
	switch {
	case errors.Is(err, publishing.ErrWrongState):
		_ = d.sessions.Delete(ctx, userID)
		return &Reply{Ignored: true}, nil
	case errors.Is(err, publishing.ErrExternalNotFound):
		return &Reply{Text: "Video " + externalID + " was not found. Send another id or " + CmdCancel + "."}, nil
	case err != nil:
		return nil, err
	}
	if err := d.sessions.Delete(ctx, userID); err != nil {
		return nil, err
	}
	return &Reply{
		Text:     "Template applied.",
		Video:    res.Video,
		Actions:  publishing.AllowedActions(res.Video.State),
		Degraded: res.Degraded,
	}, nil
}

var secondaryVideoRe = regexp.MustCompile(`video-?\d+_(\d+)`)

// ExternalVideoID extracts a platform video id from a bare id or a link.
func ExternalVideoID(p publishing.Platform, text string) string {
	text = strings.TrimSpace(text)
	if p == publishing.PlatformSecondary {
		if m := secondaryVideoRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		if strings.Contains(text, "/") {
			return ""
		}
		return text
	}
	u, err := url.Parse(text)
	if err != nil || u.Host == "" {
		return text
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := parts[len(parts)-1]
	if u.Host == "youtu.be" || (len(parts) == 2 && (parts[0] == "live" || parts[0] == "shorts")) {
		return last
	}
	return ""
}

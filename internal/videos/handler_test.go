package videos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/publishing"
)

type serviceStub struct {
	video   *models.Video
	err     error
	calls   []string
	degrade bool
}

func (s *serviceStub) get(id uuid.UUID) (*models.Video, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.video.ID != id {
		return nil, models.ErrNotFound
	}
	return s.video, nil
}

func (s *serviceStub) result(name string, id uuid.UUID, next models.VideoState) (*publishing.Result, error) {
	s.calls = append(s.calls, name)
	v, err := s.get(id)
	if err != nil {
		return nil, err
	}
	v.State = next
	res := &publishing.Result{Video: v}
	if s.degrade {
		res.Degraded = []publishing.StepFailure{{Step: publishing.StepPrimaryPlaylist, Platform: publishing.PlatformPrimary, Message: "quota"}}
	}
	return res, nil
}

func (s *serviceStub) CreateVideo(_ context.Context, lessonID uuid.UUID) (*models.Video, error) {
	return &models.Video{ID: uuid.New(), LessonID: lessonID, State: models.VideoStateNew}, nil
}

func (s *serviceStub) GetVideo(_ context.Context, id uuid.UUID) (*models.Video, error) {
	return s.get(id)
}

func (s *serviceStub) ListVideos(_ context.Context, lessonID uuid.UUID) ([]models.Video, error) {
	return []models.Video{*s.video}, nil
}

func (s *serviceStub) Status(_ context.Context, id uuid.UUID) (*publishing.VideoStatus, error) {
	v, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &publishing.VideoStatus{Video: v, Actions: publishing.AllowedActions(v.State)}, nil
}

func (s *serviceStub) Thumbnail(_ context.Context, id uuid.UUID) ([]byte, error) {
	if _, err := s.get(id); err != nil {
		return nil, err
	}
	return []byte("\x89PNG"), nil
}

func (s *serviceStub) ScheduleStream(_ context.Context, id uuid.UUID) (*publishing.Result, error) {
	return s.result("schedule", id, models.VideoStateScheduled)
}

func (s *serviceStub) StartTesting(_ context.Context, id uuid.UUID) (*publishing.Result, error) {
	return s.result("testing", id, models.VideoStateLiveTest)
}

func (s *serviceStub) StartStreaming(_ context.Context, id uuid.UUID) (*publishing.Result, error) {
	return s.result("streaming", id, models.VideoStateLive)
}

func (s *serviceStub) RequestStop(_ context.Context, id uuid.UUID) (*publishing.StopPrompt, error) {
	v, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &publishing.StopPrompt{Video: v, Message: "Stop?"}, nil
}

func (s *serviceStub) ConfirmStop(_ context.Context, id uuid.UUID) (*publishing.Result, error) {
	return s.result("stop", id, models.VideoStateRecorded)
}

func (s *serviceStub) ApplyTemplateToExternalVideo(_ context.Context, id uuid.UUID, p publishing.Platform, ext string) (*publishing.Result, error) {
	return s.result("apply:"+string(p)+":"+ext, id, models.VideoStateRecorded)
}

func (s *serviceStub) EditLectureNumber(_ context.Context, id uuid.UUID, n string) (*models.Video, error) {
	s.calls = append(s.calls, "number:"+n)
	return s.get(id)
}

func (s *serviceStub) EditCustomTitle(_ context.Context, id uuid.UUID, title, label string) (*models.Video, error) {
	s.calls = append(s.calls, "title:"+title+"|"+label)
	return s.get(id)
}

func (s *serviceStub) UseTemplateTitle(_ context.Context, id uuid.UUID) (*models.Video, error) {
	s.calls = append(s.calls, "template")
	return s.get(id)
}

func newRouter(svc *serviceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, nil)
	r := gin.New()
	r.POST("/lessons/:id/videos", h.Create)
	r.GET("/lessons/:id/videos", h.ListByLesson)
	r.GET("/videos/:id", h.Get)
	r.PATCH("/videos/:id", h.Update)
	r.GET("/videos/:id/status", h.Status)
	r.GET("/videos/:id/thumbnail", h.Thumbnail)
	r.POST("/videos/:id/schedule", h.Schedule)
	r.POST("/videos/:id/testing", h.StartTesting)
	r.POST("/videos/:id/streaming", h.StartStreaming)
	r.POST("/videos/:id/stop", h.RequestStop)
	r.POST("/videos/:id/stop/confirm", h.ConfirmStop)
	r.POST("/videos/:id/apply-template", h.ApplyTemplate)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Ignored bool            `json:"ignored"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return e
}

func TestTransitions(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New(), State: models.VideoStateNew}}
	r := newRouter(svc)
	base := "/videos/" + svc.video.ID.String()

	for _, tt := range []struct {
		path string
		want models.VideoState
	}{
		{"/schedule", models.VideoStateScheduled},
		{"/testing", models.VideoStateLiveTest},
		{"/streaming", models.VideoStateLive},
		{"/stop/confirm", models.VideoStateRecorded},
	} {
		w := do(r, http.MethodPost, base+tt.path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", tt.path, w.Code, w.Body.String())
		}
		var got ResultView
		if err := json.Unmarshal(decode(t, w).Data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Video.State != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.path, tt.want, got.Video.State)
		}
	}
}

func TestTransitionReportsDegradedSteps(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New(), State: models.VideoStateNew}, degrade: true}
	w := do(newRouter(svc), http.MethodPost, "/videos/"+svc.video.ID.String()+"/schedule", "")
	var got ResultView
	if err := json.Unmarshal(decode(t, w).Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Degraded) != 1 || got.Degraded[0].Step != publishing.StepPrimaryPlaylist {
		t.Fatalf("unexpected degraded steps %+v", got.Degraded)
	}
	if len(got.Video.Actions) == 0 {
		t.Fatal("expected actions for scheduled video")
	}
}

func TestWrongStateIsIgnored(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New()}, err: publishing.ErrWrongState}
	w := do(newRouter(svc), http.MethodPost, "/videos/"+svc.video.ID.String()+"/testing", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if e := decode(t, w); !e.Ignored {
		t.Fatalf("expected ignored envelope, got %+v", e)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{publishing.ErrStopRejected, http.StatusUnprocessableEntity},
		{publishing.ErrNoStreamKey, http.StatusUnprocessableEntity},
		{&publishing.PlatformError{Platform: publishing.PlatformPrimary, Op: "insert", Err: errors.New("boom")}, http.StatusBadGateway},
		{publishing.ErrPlatformDisabled, http.StatusServiceUnavailable},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &serviceStub{video: &models.Video{ID: uuid.New()}, err: tt.err}
		w := do(newRouter(svc), http.MethodPost, "/videos/"+svc.video.ID.String()+"/stop/confirm", "")
		if w.Code != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, w.Code)
		}
	}
}

func TestInvalidID(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New()}}
	if w := do(newRouter(svc), http.MethodGet, "/videos/nope", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdate(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New(), State: models.VideoStateNew}}
	r := newRouter(svc)
	path := "/videos/" + svc.video.ID.String()

	for _, body := range []string{
		`{"lecture_number":"5"}`,
		`{"custom_title":"Guest","thumbnail_label":"G1"}`,
		`{"use_template":true}`,
	} {
		if w := do(r, http.MethodPatch, path, body); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", body, w.Code)
		}
	}
	want := []string{"number:5", "title:Guest|G1", "template"}
	if len(svc.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, svc.calls)
	}
	for i := range want {
		if svc.calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, svc.calls)
		}
	}

	if w := do(r, http.MethodPatch, path, `{"custom_title":"Guest"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without label, got %d", w.Code)
	}
	if w := do(r, http.MethodPatch, path, `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", w.Code)
	}
}

func TestApplyTemplate(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New(), State: models.VideoStateNew}}
	r := newRouter(svc)
	path := "/videos/" + svc.video.ID.String() + "/apply-template"

	if w := do(r, http.MethodPost, path, `{"platform":"secondary","external_id":"456"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.calls) != 1 || svc.calls[0] != "apply:secondary:456" {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
	if w := do(r, http.MethodPost, path, `{"platform":"relay","external_id":"456"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for relay, got %d", w.Code)
	}
}

func TestStopPromptAndThumbnail(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New(), State: models.VideoStateLive}}
	r := newRouter(svc)
	base := "/videos/" + svc.video.ID.String()

	w := do(r, http.MethodPost, base+"/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.video.State != models.VideoStateLive {
		t.Fatal("stop prompt must not change state")
	}

	w = do(r, http.MethodGet, base+"/thumbnail", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected thumbnail response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestLessonVideos(t *testing.T) {
	svc := &serviceStub{video: &models.Video{ID: uuid.New(), State: models.VideoStateRecorded}}
	r := newRouter(svc)
	lessonID := uuid.NewString()

	if w := do(r, http.MethodPost, "/lessons/"+lessonID+"/videos", ""); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	w := do(r, http.MethodGet, "/lessons/"+lessonID+"/videos", "")
	var got []VideoView
	if err := json.Unmarshal(decode(t, w).Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Actions) != 2 {
		t.Fatalf("unexpected list %+v", got)
	}
}

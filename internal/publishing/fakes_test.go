package publishing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

type memStore struct {
	mu        sync.Mutex
	videos    map[uuid.UUID]models.Video
	lessons   map[uuid.UUID]models.Lesson
	templates map[uuid.UUID]models.ThumbnailsTemplate
	relayKeys map[string]models.RelayKey
	// beforeReplace runs inside ReplaceVideo before the state check.
	beforeReplace func(stored *models.Video)
}

func newMemStore() *memStore {
	return &memStore{
		videos:    make(map[uuid.UUID]models.Video),
		lessons:   make(map[uuid.UUID]models.Lesson),
		templates: make(map[uuid.UUID]models.ThumbnailsTemplate),
		relayKeys: make(map[string]models.RelayKey),
	}
}

func (s *memStore) GetVideo(_ context.Context, id uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &v, nil
}

func (s *memStore) InsertVideo(_ context.Context, v *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = *v
	return nil
}

func (s *memStore) ReplaceVideo(_ context.Context, v *models.Video, expected models.VideoState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.videos[v.ID]
	if !ok {
		return models.ErrStaleWrite
	}
	if s.beforeReplace != nil {
		s.beforeReplace(&cur)
		s.videos[v.ID] = cur
	}
	if cur.State != expected {
		return models.ErrStaleWrite
	}
	s.videos[v.ID] = *v
	return nil
}

func (s *memStore) ListVideosByLesson(_ context.Context, lessonID uuid.UUID) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.videos {
		if v.LessonID == lessonID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListVideosByState(_ context.Context, state models.VideoState) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.videos {
		if v.State == state {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) GetLesson(_ context.Context, id uuid.UUID) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &l, nil
}

func (s *memStore) ListLessons(_ context.Context) ([]models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Lesson
	for _, l := range s.lessons {
		out = append(out, l)
	}
	return out, nil
}

func (s *memStore) InsertLesson(_ context.Context, l *models.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = *l
	return nil
}

func (s *memStore) ReplaceLesson(_ context.Context, l *models.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[l.ID]; !ok {
		return models.ErrStaleWrite
	}
	s.lessons[l.ID] = *l
	return nil
}

func (s *memStore) ShiftLectureNumber(_ context.Context, id uuid.UUID, forward bool) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if err := l.ShiftLectureNumber(forward); err != nil {
		return nil, err
	}
	s.lessons[id] = l
	return &l, nil
}

func (s *memStore) GetTemplate(_ context.Context, id uuid.UUID) (*models.ThumbnailsTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (s *memStore) RelayKeyNames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.relayKeys))
	for name := range s.relayKeys {
		out = append(out, name)
	}
	return out, nil
}

func (s *memStore) InsertRelayKey(_ context.Context, k *models.RelayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relayKeys[k.Name]; ok {
		return models.ErrDuplicateKey
	}
	s.relayKeys[k.Name] = *k
	return nil
}

func (s *memStore) ReplaceRelayKey(_ context.Context, k *models.RelayKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relayKeys[k.Name]; !ok {
		return models.ErrStaleWrite
	}
	s.relayKeys[k.Name] = *k
	return nil
}

func (s *memStore) video(t *testing.T, id uuid.UUID) models.Video {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		t.Fatalf("video %s not stored", id)
	}
	return v
}

type stubPrimary struct {
	mu         sync.Mutex
	broadcasts map[string]*platforms.Broadcast
	streams    map[string]platforms.IngestStream
	external   map[string]bool
	// script overrides the lifecycle seen by successive GetBroadcast calls.
	script []platforms.Lifecycle
	// stuck pins every broadcast to one lifecycle regardless of transitions.
	stuck       platforms.Lifecycle
	transitions []platforms.Lifecycle
	bound       map[string]string
	playlists   []string
	thumbnails  []string
	updated     []string
	created     int
	block       bool

	failCreate    error
	failPlaylist  error
	failThumbnail error
	failBind      error
}

func newStubPrimary() *stubPrimary {
	return &stubPrimary{
		broadcasts: make(map[string]*platforms.Broadcast),
		streams:    make(map[string]platforms.IngestStream),
		external:   make(map[string]bool),
		bound:      make(map[string]string),
	}
}

func (p *stubPrimary) CreateBroadcast(ctx context.Context, d platforms.BroadcastDetails) (*platforms.Broadcast, error) {
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate != nil {
		return nil, p.failCreate
	}
	p.created++
	b := &platforms.Broadcast{ID: fmt.Sprintf("yt-%d", p.created), Title: d.Title, Lifecycle: platforms.LifecycleCreated}
	p.broadcasts[b.ID] = b
	c := *b
	return &c, nil
}

func (p *stubPrimary) GetBroadcast(_ context.Context, id string) (*platforms.Broadcast, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.broadcasts[id]
	if !ok {
		return nil, platforms.ErrNotFound
	}
	if len(p.script) > 0 {
		b.Lifecycle = p.script[0]
		p.script = p.script[1:]
	}
	if p.stuck != "" {
		b.Lifecycle = p.stuck
	}
	c := *b
	return &c, nil
}

func (p *stubPrimary) TransitionBroadcast(_ context.Context, id string, to platforms.Lifecycle) (*platforms.Broadcast, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.broadcasts[id]
	if !ok {
		return nil, platforms.ErrNotFound
	}
	p.transitions = append(p.transitions, to)
	b.Lifecycle = to
	if p.stuck != "" {
		b.Lifecycle = p.stuck
	}
	c := *b
	return &c, nil
}

func (p *stubPrimary) BindStream(_ context.Context, broadcastID, streamID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failBind != nil {
		return p.failBind
	}
	p.bound[broadcastID] = streamID
	return nil
}

func (p *stubPrimary) UpdateVideo(_ context.Context, videoID string, _ platforms.BroadcastDetails) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.external[videoID] {
		return platforms.ErrNotFound
	}
	p.updated = append(p.updated, videoID)
	return nil
}

func (p *stubPrimary) UploadThumbnail(_ context.Context, videoID string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failThumbnail != nil {
		return p.failThumbnail
	}
	p.thumbnails = append(p.thumbnails, videoID)
	return nil
}

func (p *stubPrimary) CreatePlaylist(_ context.Context, _, _ string, _ models.Privacy) (string, error) {
	return "PL1", nil
}

func (p *stubPrimary) AddToPlaylist(_ context.Context, playlistID, videoID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPlaylist != nil {
		return p.failPlaylist
	}
	p.playlists = append(p.playlists, playlistID+"/"+videoID)
	return nil
}

func (p *stubPrimary) PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + id
}

func (p *stubPrimary) ListStreams(_ context.Context) ([]platforms.IngestStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platforms.IngestStream
	for _, s := range p.streams {
		out = append(out, s)
	}
	return out, nil
}

func (p *stubPrimary) GetStream(_ context.Context, id string) (*platforms.IngestStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[id]
	if !ok {
		return nil, platforms.ErrNotFound
	}
	return &s, nil
}

func (p *stubPrimary) CreateStream(_ context.Context, title string) (*platforms.IngestStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := platforms.IngestStream{ID: "stream-" + title, Name: title, Key: "key-" + title}
	p.streams[s.ID] = s
	return &s, nil
}

type stubSecondary struct {
	mu         sync.Mutex
	created    int
	published  []string
	stopped    []string
	albums     []string
	thumbnails []string
	external   map[string]bool
	failCreate error
	failStop   error
}

func (s *stubSecondary) CreateBroadcast(_ context.Context, d platforms.BroadcastDetails) (*platforms.SecondaryVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return nil, s.failCreate
	}
	s.created++
	id := fmt.Sprintf("vk-%d", s.created)
	return &platforms.SecondaryVideo{ID: id, Title: d.Title, Status: platforms.SecondaryDraft, StreamURL: "rtmp://vk.example/live/" + id}, nil
}

func (s *stubSecondary) PublishBroadcast(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, id)
	return nil
}

func (s *stubSecondary) StopBroadcast(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStop != nil {
		return s.failStop
	}
	s.stopped = append(s.stopped, id)
	return nil
}

func (s *stubSecondary) GetVideo(_ context.Context, id string) (*platforms.SecondaryVideo, error) {
	return &platforms.SecondaryVideo{ID: id, Status: platforms.SecondaryLive}, nil
}

func (s *stubSecondary) UpdateVideo(_ context.Context, id string, _ platforms.BroadcastDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.external[id] {
		return platforms.ErrNotFound
	}
	return nil
}

func (s *stubSecondary) UploadThumbnail(_ context.Context, id string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbnails = append(s.thumbnails, id)
	return nil
}

func (s *stubSecondary) CreateAlbum(_ context.Context, _ string, _ models.Privacy) (string, error) {
	return "77", nil
}

func (s *stubSecondary) AddToAlbum(_ context.Context, albumID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albums = append(s.albums, albumID+"/"+videoID)
	return nil
}

func (s *stubSecondary) AlbumURL(id string) string {
	return "https://vk.com/video/playlist/-1_" + id
}

type stubRelay struct {
	mu         sync.Mutex
	targets    map[string][]string
	live       map[string]bool
	addCalls   int
	failStatus error
}

func newStubRelay() *stubRelay {
	return &stubRelay{targets: make(map[string][]string), live: make(map[string]bool)}
}

// Provision replaces the target list, as the relay API does.
func (r *stubRelay) Provision(_ context.Context, key string, targets []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[key] = append([]string{}, targets...)
	return nil
}

func (r *stubRelay) AddTarget(_ context.Context, key, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addCalls++
	r.targets[key] = appendUnique(r.targets[key], target)
	return nil
}

func (r *stubRelay) Status(_ context.Context, key string) (*platforms.RelayStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStatus != nil {
		return nil, r.failStatus
	}
	if _, ok := r.targets[key]; !ok {
		return nil, platforms.ErrNotFound
	}
	return &platforms.RelayStatus{IsLive: r.live[key], Bitrate: 4000}, nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

type stubRenderer struct {
	labels []string
	fail   error
}

func (r *stubRenderer) Render(_ context.Context, _ *models.ThumbnailsTemplate, label string) ([]byte, error) {
	if r.fail != nil {
		return nil, r.fail
	}
	r.labels = append(r.labels, label)
	return []byte("png:" + label), nil
}

type recordingQueue struct {
	mu    sync.Mutex
	steps []string
	// onEnqueue runs synchronously, like a worker that picks the job up at once.
	onEnqueue func(videoID uuid.UUID, step string)
}

func (q *recordingQueue) EnqueueStepRetry(_ context.Context, videoID uuid.UUID, step string) error {
	q.mu.Lock()
	q.steps = append(q.steps, step)
	hook := q.onEnqueue
	q.mu.Unlock()
	if hook != nil {
		hook(videoID, step)
	}
	return nil
}

type stateRecorder struct {
	mu     sync.Mutex
	states map[uuid.UUID][]models.VideoState
}

func (r *stateRecorder) VideoChanged(_ context.Context, v *models.Video) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states == nil {
		r.states = make(map[uuid.UUID][]models.VideoState)
	}
	r.states[v.ID] = append(r.states[v.ID], v.State)
}

type fixture struct {
	engine    *Engine
	store     *memStore
	primary   *stubPrimary
	secondary *stubSecondary
	relay     *stubRelay
	renderer  *stubRenderer
	queue     *recordingQueue
	recorder  *stateRecorder
	lesson    models.Lesson
}

// newFixture seeds a single-numbered lesson with a template and a direct stream key.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		primary:   newStubPrimary(),
		secondary: &stubSecondary{external: make(map[string]bool)},
		relay:     newStubRelay(),
		renderer:  &stubRenderer{},
		queue:     &recordingQueue{},
		recorder:  &stateRecorder{},
	}
	tpl := models.ThumbnailsTemplate{ID: uuid.New(), Name: "algo", FirstTitle: "Algorithms", Color: "capri"}
	f.store.templates[tpl.ID] = tpl
	f.primary.streams["s1"] = platforms.IngestStream{ID: "s1", Name: "Main", Key: "abcd-1234"}
	f.lesson = models.Lesson{
		ID:                   uuid.New(),
		Name:                 "algo",
		Title:                "Algorithms",
		LecturerName:         "Ivanov",
		TermNumber:           "3",
		Year:                 "2024",
		Kind:                 models.LessonKindLecture,
		Privacy:              models.PrivacyPublic,
		MainTemplateID:       &tpl.ID,
		StreamKey:            models.NewDirectStreamKey(models.DirectPlatformKey{ID: "s1", Name: "Main", Key: "abcd-1234"}),
		CurrentLectureNumber: 1,
	}
	f.store.lessons[f.lesson.ID] = f.lesson
	f.engine = New(Deps{
		Videos:     f.store,
		Lessons:    f.store,
		Templates:  f.store,
		RelayKeys:  f.store,
		Primary:    f.primary,
		Secondary:  f.secondary,
		Relay:      f.relay,
		Thumbnails: f.renderer,
		Queue:      f.queue,
		Notifier:   f.recorder,
	}, Config{CallTimeout: time.Second, Program: "Applied Mathematics"})
	return f
}

// useRelay switches the fixture lesson to a relay key with an embedded primary stream.
func (f *fixture) useRelay(t *testing.T) *models.RelayKey {
	t.Helper()
	key := models.RelayKey{
		ID:        uuid.New(),
		Name:      "12345",
		Embedded:  &models.DirectPlatformKey{ID: "s1", Name: "Main", Key: "abcd-1234"},
		CreatedAt: time.Now(),
	}
	f.store.relayKeys[key.Name] = key
	l := f.store.lessons[f.lesson.ID]
	l.StreamKey = models.NewRelayStreamKey(key)
	f.store.lessons[l.ID] = l
	f.lesson = l
	return &key
}

func (f *fixture) newVideo(t *testing.T) *models.Video {
	t.Helper()
	v, err := f.engine.CreateVideo(context.Background(), f.lesson.ID)
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return v
}

// advance runs the video up to want using the regular operations.
func (f *fixture) advance(t *testing.T, id uuid.UUID, want models.VideoState) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		state models.VideoState
		run   func() error
	}{
		{models.VideoStateScheduled, func() error { _, err := f.engine.ScheduleStream(ctx, id); return err }},
		{models.VideoStateLiveTest, func() error { _, err := f.engine.StartTesting(ctx, id); return err }},
		{models.VideoStateLive, func() error { _, err := f.engine.StartStreaming(ctx, id); return err }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("advance to %s: %v", s.state, err)
		}
		if s.state == want {
			break
		}
	}
	if got := f.store.video(t, id).State; got != want {
		t.Fatalf("expected state %s, got %s", want, got)
	}
}

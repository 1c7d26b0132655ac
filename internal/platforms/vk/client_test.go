package vk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	forms map[string][]map[string]string
}

func (r *recorder) record(method string, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forms == nil {
		r.forms = make(map[string][]map[string]string)
	}
	form := map[string]string{}
	for k, v := range req.PostForm {
		form[k] = v[0]
	}
	r.calls = append(r.calls, method)
	r.forms[method] = append(r.forms[method], form)
}

func newTestClient(t *testing.T, routes map[string]string) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload" {
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `name="photo"`) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"hash":"h","photo":"p"}`))
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		method := strings.TrimPrefix(r.URL.Path, "/method/")
		rec.record(method, r)
		body, ok := routes[method]
		if !ok {
			body = `{"response":1}`
		}
		w.Write([]byte(strings.ReplaceAll(body, "{{server}}", "http://"+r.Host)))
	}))
	t.Cleanup(srv.Close)
	return New(Config{Token: "tok", GroupID: 42, BaseURL: srv.URL + "/method"}, nil), rec
}

func TestCreateBroadcast(t *testing.T) {
	c, rec := newTestClient(t, map[string]string{
		"video.startStreaming": `{"response":{"video_id":7,"name":"Lecture","stream":{"url":"rtmp://ovsu.vk.com/input/","key":"secret"}}}`,
	})

	v, err := c.CreateBroadcast(context.Background(), platforms.BroadcastDetails{Title: "Lecture", Privacy: models.PrivacyUnlisted})
	if err != nil {
		t.Fatalf("CreateBroadcast: %v", err)
	}
	if v.ID != "7" || v.StreamURL != "rtmp://ovsu.vk.com/input/secret" {
		t.Errorf("unexpected video %+v", v)
	}
	form := rec.forms["video.startStreaming"][0]
	if form["group_id"] != "42" || form["publish"] != "0" || form["privacy_view"] != "by_link" {
		t.Errorf("unexpected form %v", form)
	}
	if form["access_token"] != "tok" || form["v"] != DefaultVersion {
		t.Errorf("missing auth params %v", form)
	}
}

func TestAPIErrorNotFound(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"video.stopStreaming": `{"error":{"error_code":104,"error_msg":"Not found"}}`,
		"video.addAlbum":      `{"error":{"error_code":5,"error_msg":"User authorization failed"}}`,
	})

	if err := c.StopBroadcast(context.Background(), "7"); !errors.Is(err, platforms.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err := c.CreateAlbum(context.Background(), "x", models.PrivacyPublic)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 5 {
		t.Errorf("expected APIError 5, got %v", err)
	}
}

func TestUploadThumbnail(t *testing.T) {
	c, rec := newTestClient(t, map[string]string{
		"video.getThumbUploadUrl": `{"response":{"upload_url":"{{server}}/upload"}}`,
	})

	if err := c.UploadThumbnail(context.Background(), "7", []byte("png")); err != nil {
		t.Fatalf("UploadThumbnail: %v", err)
	}
	saved := rec.forms["video.saveUploadedThumb"]
	if len(saved) != 1 {
		t.Fatalf("expected saveUploadedThumb, got calls %v", rec.calls)
	}
	if saved[0]["thumb_json"] != `{"hash":"h","photo":"p"}` || saved[0]["owner_id"] != "-42" || saved[0]["set_thumb"] != "1" {
		t.Errorf("unexpected save form %v", saved[0])
	}
}

func TestGetVideoAndLinks(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"video.get": `{"response":{"count":1,"items":[{"id":7,"title":"Lecture","live_status":"started","access_key":"ak"}]}}`,
	})

	v, err := c.GetVideo(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if v.Status != platforms.SecondaryLive || v.Link != "https://vk.com/video-42_7?list=ak" {
		t.Errorf("unexpected video %+v", v)
	}
	if got := c.AlbumURL("3"); got != "https://vk.com/video/playlist/-42_3" {
		t.Errorf("unexpected album url %q", got)
	}
}

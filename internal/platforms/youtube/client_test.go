package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/option"

	"github.com/kt-lectures/broadcaster/internal/platforms"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewWithOptions(context.Background(), Config{}, nil,
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return c
}

func TestGetBroadcast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "b1" {
			w.Write([]byte(`{"items":[]}`))
			return
		}
		w.Write([]byte(`{"items":[{"id":"b1","snippet":{"title":"Lecture"},"status":{"lifeCycleStatus":"testing"},"contentDetails":{"boundStreamId":"s1"}}]}`))
	})

	b, err := c.GetBroadcast(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetBroadcast: %v", err)
	}
	if b.Lifecycle != platforms.LifecycleTesting || b.BoundStreamID != "s1" || b.Title != "Lecture" {
		t.Errorf("unexpected broadcast %+v", b)
	}

	if _, err := c.GetBroadcast(context.Background(), "missing"); !errors.Is(err, platforms.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotFoundStatusIsMapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Broadcast not found"}}`))
	})

	err := c.BindStream(context.Background(), "b1", "s1")
	if !errors.Is(err, platforms.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"s1","snippet":{"title":"Main"},"cdn":{"ingestionInfo":{"streamName":"abcd","ingestionAddress":"rtmp://a.rtmp.youtube.com/live2"}},"status":{"streamStatus":"active","healthStatus":{"status":"good"}}}]}`))
	})

	s, err := c.GetStream(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	if s.Key != "abcd" || s.Name != "Main" || s.Health != "good" {
		t.Errorf("unexpected stream %+v", s)
	}
	if got := c.PlaylistURL("PL1"); got != "https://www.youtube.com/playlist?list=PL1" {
		t.Errorf("unexpected playlist url %q", got)
	}
}

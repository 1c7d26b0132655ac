package models

import "testing"

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		from, to VideoState
		want     bool
	}{
		{VideoStateNew, VideoStateScheduled, true},
		{VideoStateScheduled, VideoStateLiveTest, true},
		{VideoStateLiveTest, VideoStateLiveTest, true},
		{VideoStateLiveTest, VideoStateLive, true},
		{VideoStateLive, VideoStateRecorded, true},
		{VideoStateNew, VideoStateRecorded, true},
		{VideoStateRecorded, VideoStateRecorded, true},
		{VideoStateScheduled, VideoStateNew, false},
		{VideoStateLive, VideoStateLiveTest, false},
		{VideoStateNew, VideoStateLive, false},
		{VideoStateScheduled, VideoStateScheduled, false},
		{VideoState("bogus"), VideoStateNew, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanAdvance(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestNumberLabel(t *testing.T) {
	v := Video{LectureNumber: "3-4"}
	if got := v.NumberLabel(LessonKindLecture); got != "L3-4" {
		t.Errorf("expected L3-4, got %q", got)
	}
	if got := v.NumberLabel(LessonKindPractice); got != "P3-4" {
		t.Errorf("expected P3-4, got %q", got)
	}
	label := "Exam"
	v.ThumbnailLabel = &label
	if got := v.NumberLabel(LessonKindLecture); got != "Exam" {
		t.Errorf("expected override, got %q", got)
	}
}

func TestStreamKeyValidate(t *testing.T) {
	direct := NewDirectStreamKey(DirectPlatformKey{ID: "s1", Key: "k"})
	if err := direct.Validate(); err != nil {
		t.Errorf("direct key: %v", err)
	}
	if direct.IsRelay() || direct.PrimaryKey().ID != "s1" {
		t.Errorf("unexpected direct key %+v", direct)
	}

	relay := NewRelayStreamKey(RelayKey{Name: "12345"})
	if err := relay.Validate(); err != nil {
		t.Errorf("relay key: %v", err)
	}
	if !relay.IsRelay() || relay.PrimaryKey() != nil {
		t.Errorf("relay key without embedded stream must have no primary key")
	}

	bad := &StreamKey{Type: StreamKeyDirect, Relay: &RelayKey{}}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid key")
	}
	var none *StreamKey
	if none.IsRelay() {
		t.Error("nil key is not a relay key")
	}
}

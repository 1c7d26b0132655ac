package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LessonKind distinguishes lecture courses from practice sessions.
type LessonKind string

const (
	LessonKindLecture  LessonKind = "lecture"
	LessonKindPractice LessonKind = "practice"
)

// Title is the human label used in video titles.
func (k LessonKind) Title() string {
	if k == LessonKindPractice {
		return "Practice"
	}
	return "Lecture"
}

// NumberPrefix is the short label drawn on thumbnails.
func (k LessonKind) NumberPrefix() string {
	if k == LessonKindPractice {
		return "P"
	}
	return "L"
}

// Valid reports whether k is a known kind.
func (k LessonKind) Valid() bool {
	return k == LessonKindLecture || k == LessonKindPractice
}

// Privacy is the visibility applied to every platform object of a lesson.
type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyUnlisted Privacy = "unlisted"
)

// Valid reports whether p is a known privacy value.
func (p Privacy) Valid() bool {
	return p == PrivacyPublic || p == PrivacyUnlisted
}

// TermSpecialCourse marks an elective course instead of a term number.
const TermSpecialCourse = "SC"

// ErrLectureNumberFloor is returned when a decrement would drop the counter below 1.
var ErrLectureNumberFloor = errors.New("lecture number cannot go below 1")

// ValidTerm accepts terms 1..8 and the special course marker.
func ValidTerm(term string) bool {
	if term == TermSpecialCourse {
		return true
	}
	n, err := strconv.Atoi(term)
	return err == nil && n >= 1 && n <= 8
}

// Lesson is a recurring course whose videos are broadcast one by one.
type Lesson struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	Title                string     `json:"title"`
	LecturerName         string     `json:"lecturer_name"`
	TermNumber           string     `json:"term_number"`
	Year                 string     `json:"year"`
	DoubleNumeration     bool       `json:"double_numeration"`
	Kind                 LessonKind `json:"kind"`
	Privacy              Privacy    `json:"privacy"`
	MainTemplateID       *uuid.UUID `json:"main_template_id,omitempty"`
	PlaylistID           *string    `json:"playlist_id,omitempty"`
	AlbumID              *string    `json:"album_id,omitempty"`
	StreamKey            *StreamKey `json:"stream_key,omitempty"`
	CurrentLectureNumber int        `json:"current_lecture_number"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NextLectureNumber returns the label of the next video: "N" or "N-(N+1)".
func (l *Lesson) NextLectureNumber() string {
	if l.DoubleNumeration {
		return fmt.Sprintf("%d-%d", l.CurrentLectureNumber, l.CurrentLectureNumber+1)
	}
	return strconv.Itoa(l.CurrentLectureNumber)
}

// NumberStep is how far the counter moves per video.
func (l *Lesson) NumberStep() int {
	if l.DoubleNumeration {
		return 2
	}
	return 1
}

// ShiftLectureNumber moves the counter one step forward or back.
func (l *Lesson) ShiftLectureNumber(forward bool) error {
	step := l.NumberStep()
	if !forward {
		step = -step
	}
	if l.CurrentLectureNumber+step < 1 {
		return ErrLectureNumberFloor
	}
	l.CurrentLectureNumber += step
	return nil
}

// TitleTermNumber renders the term as it appears in titles ("s3" or "SC").
func (l *Lesson) TitleTermNumber() string {
	if _, err := strconv.Atoi(l.TermNumber); err == nil {
		return "s" + l.TermNumber
	}
	return l.TermNumber
}

// VideoTitle is the common prefix of every video title in the lesson.
func (l *Lesson) VideoTitle() string {
	return fmt.Sprintf("[%s | %s] %s, %s", l.TitleTermNumber(), l.Year, l.Title, l.LecturerName)
}

// DefaultVideoTitle is the title used unless a custom one is set.
func (l *Lesson) DefaultVideoTitle(number string) string {
	return fmt.Sprintf("%s, %s %s", l.VideoTitle(), l.Kind.Title(), number)
}

var termPhrases = map[string]string{
	"1":               " in the first term",
	"2":               " in the second term",
	"3":               " in the third term",
	"4":               " in the fourth term",
	"5":               " in the fifth term",
	"6":               " in the sixth term",
	"7":               " in the seventh term",
	"8":               " in the eighth term",
	TermSpecialCourse: " as an elective course",
}

// Description is the course blurb shared by the playlist and every video.
func (l *Lesson) Description(program string) string {
	kind := "lectures"
	if l.Kind == LessonKindPractice {
		kind = "practice sessions"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recordings of %s for the course «%s»", kind, l.Title)
	if program != "" {
		fmt.Fprintf(&b, ", taught to students of %s", program)
	}
	b.WriteString(termPhrases[l.TermNumber])
	b.WriteString(".\nLecturer: ")
	b.WriteString(l.LecturerName)
	return b.String()
}

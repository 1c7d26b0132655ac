package models

import (
	"time"

	"github.com/google/uuid"
)

// ThumbnailsTemplate configures the cover image of a lesson's videos.
type ThumbnailsTemplate struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	FirstTitle   string     `json:"first_title"`
	SecondTitle  string     `json:"second_title"`
	LecturerName string     `json:"lecturer_name"`
	TermNumber   string     `json:"term_number"`
	Color        string     `json:"color"`
	ImageID      *uuid.UUID `json:"image_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ThumbnailsImage is a prepared base image stored in the blob store.
type ThumbnailsImage struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ObjectKey string    `json:"object_key"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents an admin's permission level.
type Role string

const (
	RoleAdmin Role = "admin"
	// RoleOwner may also manage the admin allow-list.
	RoleOwner Role = "owner"
)

// Admin is an allow-listed operator of the console.
type Admin struct {
	ID        uuid.UUID `json:"id"`
	Login     string    `json:"login"`
	Password  string    `json:"-"`
	Comment   string    `json:"comment,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminPublic is Admin without the password hash.
type AdminPublic struct {
	ID        uuid.UUID `json:"id"`
	Login     string    `json:"login"`
	Comment   string    `json:"comment,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Admin to AdminPublic.
func (a *Admin) ToPublic() AdminPublic {
	return AdminPublic{
		ID:        a.ID,
		Login:     a.Login,
		Comment:   a.Comment,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

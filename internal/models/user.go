package models

import (
	"fmt"
	"strings"
	"time"
)

// User is an authenticated actor that activity records may point back to.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	Role      string    `gorm:"size:32;not null;default:'staff'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID implements Entity.
func (u User) EntityID() uint { return u.ID }

// DisplayName implements Entity.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("user #%d", u.ID)
}

// Snapshot implements Entity. Credentials never appear here.
func (u User) Snapshot() map[string]any {
	return map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"username":  u.Username,
		"full_name": u.FullName,
		"role":      u.Role,
	}
}

package models

import "time"

// ContactMessage is an inquiry submitted through the public contact form.
type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Subject   string    `gorm:"size:255" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Status    string    `gorm:"size:32;not null;default:'new'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (m ContactMessage) EntityID() uint { return m.ID }

func (m ContactMessage) DisplayName() string {
	if m.Subject != "" {
		return m.Subject
	}
	return "Message from " + m.Name
}

func (m ContactMessage) Snapshot() map[string]any {
	return map[string]any{
		"id":      m.ID,
		"name":    m.Name,
		"email":   m.Email,
		"phone":   m.Phone,
		"subject": m.Subject,
		"status":  m.Status,
	}
}

package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

const (
	anonymousIdentifier = "Anonymous"
	anonymousGuestName  = "Anonymous Guest"
)

// RequestContext carries the caller identity and network details of the
// request that triggered an activity. UserID is set only for authenticated callers.
type RequestContext struct {
	UserID        *uint
	UserEmail     string
	Username      string
	UserFullName  string
	SessionID     string
	IPAddress     string
	UserAgent     string
	Referrer      string
	CorrelationID string
}

// Authenticated reports whether the request belongs to a logged-in user.
func (r RequestContext) Authenticated() bool {
	return r.UserID != nil && *r.UserID != 0
}

// GuestDetails holds what an anonymous visitor told us about themselves.
type GuestDetails struct {
	Name     string
	Email    string
	Phone    string
	Device   string
	Browser  string
	Platform string
	Source   string
	Campaign string
	Locale   string
}

// Actor is the resolved identity attributed to an activity. Exactly one of the
// user or guest variants is populated.
type Actor struct {
	Type       models.ActorType
	UserID     *uint
	Identifier string
	Name       string
	Metadata   map[string]interface{}
}

// ResolveActor picks the actor variant for a request. Authenticated callers
// become users identified by email; everybody else becomes a guest identified
// by the first non-empty of email, phone, session id and IP address.
func ResolveActor(req RequestContext, guest GuestDetails) Actor {
	if req.Authenticated() {
		id := *req.UserID
		identifier := firstNonEmpty(req.UserEmail, req.Username, fmt.Sprintf("user:%d", id))
		return Actor{
			Type:       models.ActorTypeUser,
			UserID:     &id,
			Identifier: identifier,
			Name:       firstNonEmpty(req.UserFullName, req.Username, identifier),
		}
	}

	identifier := firstNonEmpty(guest.Email, guest.Phone, req.SessionID, req.IPAddress, anonymousIdentifier)

	metadata := map[string]interface{}{}
	for key, value := range map[string]string{
		"email":      guest.Email,
		"phone":      guest.Phone,
		"session_id": req.SessionID,
		"device":     guest.Device,
		"browser":    guest.Browser,
		"platform":   guest.Platform,
		"source":     guest.Source,
		"campaign":   guest.Campaign,
		"referrer":   req.Referrer,
		"locale":     guest.Locale,
	} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			metadata[key] = trimmed
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return Actor{
		Type:       models.ActorTypeGuest,
		Identifier: identifier,
		Name:       firstNonEmpty(guest.Name, anonymousGuestName),
		Metadata:   metadata,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

package middleware

import (
	"context"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
	LocalCorrelationID  = "correlation_id"

	// maxCorrelationIDLength bounds caller-supplied ids, which end up in activity metadata.
	maxCorrelationIDLength = 128
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// CorrelationID binds a correlation identifier to every request. Caller-supplied ids are
// kept only when short and printable; otherwise a fresh uuid is issued.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := acceptCorrelationID(c.Get(HeaderCorrelationID))
		if incoming == "" {
			incoming = acceptCorrelationID(c.Get(HeaderRequestID))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		} else {
			// Header bytes are recycled with the request; the id travels further.
			incoming = fiberutils.CopyString(incoming)
		}

		c.Locals(LocalCorrelationID, incoming)
		c.Set(HeaderCorrelationID, incoming)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationKey, incoming))

		return c.Next()
	}
}

func acceptCorrelationID(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" || len(value) > maxCorrelationIDLength {
		return ""
	}
	for _, r := range value {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return ""
		}
	}
	return value
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(LocalCorrelationID).(string); ok && id != "" {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/middleware"
	"github.com/noah-isme/gema-activity-log/internal/service"
)

const (
	sessionCookie = "session_id"
	sessionHeader = "X-Session-ID"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, err
	}
	id := uint(parsed)
	return &id, nil
}

func parseQueryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseQueryBool(c *fiber.Ctx, key string) (*bool, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals(middleware.LocalUserID); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func localString(c *fiber.Ctx, key string) string {
	if v, ok := c.Locals(key).(string); ok {
		return v
	}
	return ""
}

func sessionID(c *fiber.Ctx) string {
	if session := strings.TrimSpace(c.Cookies(sessionCookie)); session != "" {
		return session
	}
	return strings.TrimSpace(c.Get(sessionHeader))
}

// requestContextFromFiber captures who made the request and from where. The result
// outlives the request on the background writer, so header values are copied out of
// fasthttp's pooled buffers.
func requestContextFromFiber(c *fiber.Ctx) service.RequestContext {
	req := service.RequestContext{
		SessionID:     fiberutils.CopyString(sessionID(c)),
		IPAddress:     middleware.ClientIP(c),
		UserAgent:     fiberutils.CopyString(c.Get(fiber.HeaderUserAgent)),
		Referrer:      fiberutils.CopyString(c.Get(fiber.HeaderReferer)),
		CorrelationID: middleware.GetCorrelationID(c),
	}
	if id := userIDFromContext(c); id != 0 {
		req.UserID = &id
		req.UserEmail = localString(c, middleware.LocalUserEmail)
		req.Username = localString(c, middleware.LocalUsername)
		req.UserFullName = localString(c, middleware.LocalUserFullName)
	}
	return req
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationDetails flattens validator errors into field -> rule pairs.
func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

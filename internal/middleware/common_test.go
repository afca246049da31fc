package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRegisterAllowsAttributionHeadersInPreflight(t *testing.T) {
	app := fiber.New()
	Register(app, Config{AllowOrigins: "https://admin.example.com"})
	app.Post("/api/v1/contact", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	req := httptest.NewRequest(fiber.MethodOptions, "/api/v1/contact", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://admin.example.com")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
	req.Header.Set(fiber.HeaderAccessControlRequestHeaders, "X-Session-ID")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://admin.example.com", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	require.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), "X-Session-ID")
	require.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), HeaderCorrelationID)
}

func TestRegisterExposesCorrelationID(t *testing.T) {
	app := fiber.New()
	Register(app, Config{})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://shop.example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(HeaderCorrelationID))
	require.Equal(t, HeaderCorrelationID, resp.Header.Get(fiber.HeaderAccessControlExposeHeaders))
}

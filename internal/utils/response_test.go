package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/utils"
)

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Meta    *dto.PaginationMeta `json:"meta"`
	Details map[string]string   `json:"details"`
}

func TestOKCarriesPaginationMeta(t *testing.T) {
	app := fiber.New()
	app.Get("/products", func(c *fiber.Ctx) error {
		items := []map[string]any{{"id": 123, "name": "Laptop"}}
		return utils.OK(c, items, "", dto.NewPaginationMeta(2, 10, 21))
	})

	payload := request(t, app, http.MethodGet, "/products", fiber.StatusOK)
	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.JSONEq(t, `[{"id":123,"name":"Laptop"}]`, string(payload.Data))
	require.Equal(t, dto.PaginationMeta{Page: 2, PageSize: 10, TotalItems: 21, TotalPages: 3}, *payload.Meta)
}

func TestFailCarriesFieldDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/activities", func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid query", map[string]string{"entity_path": "must look like app.Type"})
	})

	payload := request(t, app, http.MethodGet, "/activities", fiber.StatusBadRequest)
	require.False(t, payload.Success)
	require.Equal(t, "invalid query", payload.Message)
	require.Equal(t, "must look like app.Type", payload.Details["entity_path"])
	require.Empty(t, payload.Data)
	require.Nil(t, payload.Meta)
}

func TestSendHelpersDefaultMessages(t *testing.T) {
	app := fiber.New()
	app.Post("/contact", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "", map[string]uint{"id": 7})
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "")
	})

	created := request(t, app, http.MethodPost, "/contact", fiber.StatusCreated)
	require.True(t, created.Success)
	require.Equal(t, "success", created.Message)
	require.JSONEq(t, `{"id":7}`, string(created.Data))

	missing := request(t, app, http.MethodGet, "/missing", fiber.StatusNotFound)
	require.False(t, missing.Success)
	require.Equal(t, "error", missing.Message)
}

func request(t *testing.T, app *fiber.App, method, path string, wantStatus int) envelope {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-log/internal/database"
	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/handler"
	"github.com/noah-isme/gema-activity-log/internal/middleware"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/repository"
	"github.com/noah-isme/gema-activity-log/internal/service"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	var out envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func newActivityTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db := setupHandlerDB(t)
	require.NoError(t, db.Create(&models.User{ID: 1, Email: "admin@example.com", Username: "admin", Role: "admin"}).Error)

	repo := repository.NewActivityLogRepository(db)
	validate := validator.New()
	events := service.NewActivityEventBus(nil, "", nil, logger)
	writer := service.NewActivityService(repo, validate, service.NewMetadataSchemas(), events, nil, logger)
	query := service.NewActivityQueryService(repo, validate, nil, 0, logger)

	registry := service.NewEntityRegistry(logger)
	_, err := service.RegisterModel[models.Product](registry, db)
	require.NoError(t, err)

	h := handler.NewActivityHandler(query, writer, registry, validate, logger)

	app := fiber.New()
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, uint(1))
		c.Locals(middleware.LocalUserEmail, "admin@example.com")
		return c.Next()
	})
	h.Register(api.Group("/activities"))
	h.RegisterEntityRoutes(api.Group("/entities"))
	return app, db
}

func newJSONRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	raw := []byte(nil)
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()
	req := newJSONRequest(t, method, target, body)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestActivityHandlerRecordAndBrowse(t *testing.T) {
	app, db := newActivityTestApp(t)

	product := models.Product{SKU: "LAP-01", Name: "Laptop", Price: 15000000, Stock: 4, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/activities", map[string]interface{}{
		"action":      "export",
		"entity_kind": "product",
		"entity_path": "core.Product",
		"entity_id":   product.ID,
		"entity_name": "Laptop",
		"description": "Exported price sheet",
		"metadata":    map[string]interface{}{"format": "csv"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeEnvelope[dto.ActivityResponse](t, resp)
	require.True(t, created.Success)
	require.Equal(t, models.ActorTypeUser, created.Data.Actor.Type)
	require.Equal(t, "admin@example.com", created.Data.Actor.Identifier)
	require.Equal(t, "198.51.100.7", created.Data.IPAddress)
	require.Equal(t, "manual", created.Data.ExtraMetadata["source"])

	resp = doJSON(t, app, http.MethodGet, "/api/v1/activities?entity_path=core.Product", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	listed := decodeEnvelope[dto.ActivityListResponse](t, resp)
	require.Len(t, listed.Data.Items, 1)
	require.NotNil(t, listed.Data.Pagination)
	require.Equal(t, int64(1), listed.Data.Pagination.TotalItems)

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/activities/%d", created.Data.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/entities/core.Product/%d/activities", product.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	history := decodeEnvelope[[]dto.ActivityResponse](t, resp)
	require.Len(t, history.Data, 1)
	require.Equal(t, created.Data.ID, history.Data[0].ID)

	resp = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/activities/%d/metadata", created.Data.ID), map[string]interface{}{
		"metadata": map[string]interface{}{"ticket": "OPS-12"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	amended := decodeEnvelope[dto.ActivityResponse](t, resp)
	require.Equal(t, "OPS-12", amended.Data.ExtraMetadata["ticket"])
	require.Equal(t, "csv", amended.Data.ExtraMetadata["format"])
}

func TestActivityHandlerResolvesWeakReference(t *testing.T) {
	app, db := newActivityTestApp(t)

	product := models.Product{SKU: "MUG-1", Name: "Mug", Price: 50000, Stock: 3, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/activities", map[string]interface{}{
		"action":      "view",
		"entity_kind": "product",
		"entity_path": "core.Product",
		"entity_id":   product.ID,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeEnvelope[dto.ActivityResponse](t, resp)

	target := fmt.Sprintf("/api/v1/activities/%d/entity", created.Data.ID)
	resp = doJSON(t, app, http.MethodGet, target, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resolved := decodeEnvelope[dto.EntityResolveResponse](t, resp)
	require.Equal(t, "core.Product", resolved.Data.EntityPath)
	require.Equal(t, product.ID, resolved.Data.EntityID)

	require.NoError(t, db.Delete(&models.Product{}, product.ID).Error)

	resp = doJSON(t, app, http.MethodGet, target, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/activities/%d", created.Data.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestActivityHandlerRejectsBadInput(t *testing.T) {
	app, _ := newActivityTestApp(t)

	cases := []struct {
		name   string
		method string
		target string
		body   interface{}
		status int
	}{
		{"unknown action filter", http.MethodGet, "/api/v1/activities?action=dance", nil, fiber.StatusBadRequest},
		{"non numeric page", http.MethodGet, "/api/v1/activities?page=abc", nil, fiber.StatusBadRequest},
		{"bad since", http.MethodGet, "/api/v1/activities?since=yesterday", nil, fiber.StatusBadRequest},
		{"bad cursor", http.MethodGet, "/api/v1/activities?cursor=%25%25", nil, fiber.StatusBadRequest},
		{"bad actor type", http.MethodGet, "/api/v1/activities?actor_type=robot", nil, fiber.StatusBadRequest},
		{"missing record", http.MethodGet, "/api/v1/activities/999", nil, fiber.StatusNotFound},
		{"unknown action create", http.MethodPost, "/api/v1/activities", map[string]string{"action": "dance"}, fiber.StatusBadRequest},
		{"empty metadata patch", http.MethodPatch, "/api/v1/activities/1/metadata", map[string]interface{}{"metadata": map[string]interface{}{}}, fiber.StatusBadRequest},
		{"missing metadata target", http.MethodPatch, "/api/v1/activities/999/metadata", map[string]interface{}{"metadata": map[string]interface{}{"a": 1}}, fiber.StatusNotFound},
		{"invalid entity path", http.MethodGet, "/api/v1/entities/Product/1/activities", nil, fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, app, tc.method, tc.target, tc.body)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

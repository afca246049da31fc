package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.ContactMessage{}, &models.ActivityLog{}))
	return db
}

type recordingEventBus struct {
	mu        sync.Mutex
	published []dto.ActivityResponse
}

func (b *recordingEventBus) Publish(_ context.Context, activity dto.ActivityResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, activity)
}

func (b *recordingEventBus) Subscribe() (<-chan dto.ActivityResponse, func()) {
	ch := make(chan dto.ActivityResponse)
	return ch, func() {}
}

func (b *recordingEventBus) Start(context.Context) {}

func newTestActivityService(t *testing.T) (ActivityService, repository.ActivityLogRepository, *recordingEventBus) {
	t.Helper()
	db := setupServiceDB(t)
	repo := repository.NewActivityLogRepository(db)
	events := &recordingEventBus{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewActivityService(repo, validate, NewMetadataSchemas(), events, nil, testLogger()), repo, events
}

func ptrUint(v uint) *uint {
	return &v
}

func TestActivityServiceLogsProductPriceUpdate(t *testing.T) {
	svc, repo, events := newTestActivityService(t)

	previous := models.Product{ID: 123, SKU: "LAP-01", Name: "Laptop", Price: 15000000, Stock: 4, IsActive: true}
	current := previous
	current.Price = 14500000

	req := RequestContext{UserID: ptrUint(1), UserEmail: "john@example.com", IPAddress: "198.51.100.7"}
	response, err := svc.LogEntityChange(context.Background(), req, models.ActionUpdate, current, EntityChangeOptions{Previous: previous})
	require.NoError(t, err)

	require.Equal(t, models.ActionUpdate, response.Action)
	require.Equal(t, models.ActorTypeUser, response.Actor.Type)
	require.Equal(t, "john@example.com", response.Actor.Identifier)
	require.Equal(t, []string{"price"}, response.ChangedFields)
	require.Equal(t, "core.Product", response.Entity.Path)
	require.Equal(t, "product", response.Entity.Kind)

	stored, err := repo.FindByID(context.Background(), response.ID)
	require.NoError(t, err)
	require.Equal(t, uint(1), *stored.UserID)
	require.Equal(t, uint(123), *stored.EntityID)
	require.Equal(t, []string{"price"}, []string(stored.ChangedFields))
	require.Len(t, stored.BeforeSnapshot, 1)
	require.Len(t, stored.AfterSnapshot, 1)
	require.EqualValues(t, 15000000, stored.BeforeSnapshot["price"])
	require.EqualValues(t, 14500000, stored.AfterSnapshot["price"])

	require.Len(t, events.published, 1)
	require.Equal(t, response.ID, events.published[0].ID)
}

func TestActivityServiceGuestFallsBackToIP(t *testing.T) {
	svc, _, _ := newTestActivityService(t)

	req := RequestContext{IPAddress: "203.0.113.200", UserAgent: "Mozilla/5.0"}
	response, err := svc.LogGuestActivity(context.Background(), req, GuestActivity{
		Action:      models.ActionCreate,
		EntityKind:  "cart",
		Description: "Added item to cart",
	})
	require.NoError(t, err)

	require.Equal(t, models.ActorTypeGuest, response.Actor.Type)
	require.Nil(t, response.Actor.UserID)
	require.Equal(t, "203.0.113.200", response.Actor.Identifier)
	require.Equal(t, "Anonymous Guest", response.Actor.Name)
	require.Equal(t, "203.0.113.200", response.IPAddress)
	require.Equal(t, "Added item to cart", response.Description)
}

func TestActivityServiceRecordDowngradesEmptyUpdate(t *testing.T) {
	svc, _, _ := newTestActivityService(t)

	response, err := svc.Record(context.Background(), ActivityEntry{
		Action:     models.ActionUpdate,
		EntityKind: "product",
		EntityPath: "core.Product",
		EntityID:   ptrUint(7),
		EntityName: "Mouse",
		Before:     map[string]interface{}{"price": 10},
		After:      map[string]interface{}{"price": 10},
	})
	require.NoError(t, err)
	require.Equal(t, models.ActionView, response.Action)
	require.Empty(t, response.ChangedFields)
	require.Equal(t, "No changes detected for product: Mouse", response.Description)
}

func TestActivityServiceRecordRejectsUnknownAction(t *testing.T) {
	svc, _, events := newTestActivityService(t)

	_, err := svc.Record(context.Background(), ActivityEntry{Action: "teleport"})
	require.ErrorIs(t, err, ErrInvalidAction)
	require.Empty(t, events.published)
}

func TestActivityServiceRecordSanitizesAndTagsCorrelation(t *testing.T) {
	svc, _, _ := newTestActivityService(t)

	response, err := svc.Record(context.Background(), ActivityEntry{
		Request:     RequestContext{CorrelationID: "corr-1", IPAddress: "10.0.0.1"},
		Action:      models.ActionDownload,
		Description: "<script>alert(1)</script>Downloaded <b>price list</b>",
	})
	require.NoError(t, err)
	require.Equal(t, "Downloaded price list", response.Description)
	require.Equal(t, models.NoEntity, response.Entity.Kind)
	require.Equal(t, models.NoEntity, response.Entity.Path)
	require.Equal(t, "corr-1", response.ExtraMetadata["correlation_id"])
}

func TestActivityServiceKeepsRecordWhenMetadataBreaksSchema(t *testing.T) {
	svc, repo, _ := newTestActivityService(t)

	response, err := svc.Record(context.Background(), ActivityEntry{
		Request:        RequestContext{IPAddress: "10.0.0.2"},
		Action:         models.ActionSubmit,
		Extra:          map[string]interface{}{"has_subject": "yes"},
		MetadataSchema: ContactSubmissionSchema,
	})
	require.NoError(t, err)

	stored, err := repo.FindByID(context.Background(), response.ID)
	require.NoError(t, err)
	require.Equal(t, ContactSubmissionSchema, stored.ExtraMetadata[MetadataSchemaKey])
}

func TestActivityServiceCreateMarksManualSource(t *testing.T) {
	svc, _, _ := newTestActivityService(t)

	req := RequestContext{UserID: ptrUint(3), Username: "ops", IPAddress: "10.0.0.3"}
	response, err := svc.Create(context.Background(), req, dto.ActivityCreateRequest{
		Action:      "Export",
		Description: "Exported Q1 orders",
		Metadata:    map[string]interface{}{"format": "csv"},
	})
	require.NoError(t, err)
	require.Equal(t, models.ActionExport, response.Action)
	require.Equal(t, "ops", response.Actor.Identifier)
	require.Equal(t, "manual", response.ExtraMetadata["source"])
	require.Equal(t, "csv", response.ExtraMetadata["format"])

	_, err = svc.Create(context.Background(), req, dto.ActivityCreateRequest{Action: "explode"})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestActivityServiceAmendMetadata(t *testing.T) {
	svc, _, _ := newTestActivityService(t)

	created, err := svc.Record(context.Background(), ActivityEntry{
		Action: models.ActionLogin,
		Extra:  map[string]interface{}{"method": "password"},
	})
	require.NoError(t, err)

	amended, err := svc.AmendMetadata(context.Background(), created.ID, dto.ActivityMetadataPatchRequest{
		Metadata: map[string]interface{}{"flagged": true},
	})
	require.NoError(t, err)
	require.Equal(t, "password", amended.ExtraMetadata["method"])
	require.Equal(t, true, amended.ExtraMetadata["flagged"])
	require.Equal(t, created.Description, amended.Description)

	_, err = svc.AmendMetadata(context.Background(), 424242, dto.ActivityMetadataPatchRequest{
		Metadata: map[string]interface{}{"flagged": true},
	})
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestActivityServiceBulkOperation(t *testing.T) {
	svc, _, _ := newTestActivityService(t)

	products := []models.Entity{
		models.Product{ID: 1, Name: "A"},
		models.Product{ID: 2, Name: "B"},
	}
	response, err := svc.LogBulkOperation(context.Background(), RequestContext{UserID: ptrUint(1), UserEmail: "john@example.com"}, BulkOperation{
		Action:       models.ActionDeactivate,
		Entities:     products,
		Name:         "Seasonal clean-up",
		SuccessCount: 2,
		ErrorCount:   1,
	})
	require.NoError(t, err)
	require.Equal(t, "Bulk product operation", response.Entity.DisplayName)
	require.Nil(t, response.Entity.ID)
	require.Equal(t, true, response.ExtraMetadata["bulk_operation"])
	require.Equal(t, 66.67, response.ExtraMetadata["success_rate"])
	require.Equal(t, BulkOperationSchema, response.ExtraMetadata[MetadataSchemaKey])
	require.Equal(t, "Bulk deactivate operation: Seasonal clean-up (2 successful, 1 failed)", response.Description)
}

package service

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

type loggedChange struct {
	action models.ActionType
	entity models.Entity
	opts   EntityChangeOptions
}

type fakeActivityLogger struct {
	mu      sync.Mutex
	changes []loggedChange
	guests  []GuestActivity
	bulks   []BulkOperation
}

func (f *fakeActivityLogger) EntityChange(ctx context.Context, req RequestContext, action models.ActionType, entity models.Entity, opts EntityChangeOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, loggedChange{action: action, entity: entity, opts: opts})
}

func (f *fakeActivityLogger) GuestActivity(ctx context.Context, req RequestContext, activity GuestActivity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guests = append(f.guests, activity)
}

func (f *fakeActivityLogger) BulkOperation(ctx context.Context, req RequestContext, op BulkOperation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulks = append(f.bulks, op)
}

func newTestProductService(t *testing.T) (ProductService, *fakeActivityLogger) {
	t.Helper()
	db := setupServiceDB(t)
	activity := &fakeActivityLogger{}
	svc := NewProductService(repository.NewProductRepository(db), validator.New(), activity, testLogger())
	return svc, activity
}

func TestProductServiceLogsLifecycle(t *testing.T) {
	svc, activity := newTestProductService(t)
	ctx := context.Background()
	staff := RequestContext{UserID: ptrUint(1), UserEmail: "john@example.com"}

	created, err := svc.Create(ctx, staff, dto.ProductCreateRequest{SKU: "LAP-01", Name: "Laptop", Price: 15000000, Stock: 4})
	require.NoError(t, err)
	require.True(t, created.IsActive)

	price := int64(14500000)
	updated, err := svc.Update(ctx, staff, created.ID, dto.ProductUpdateRequest{Price: &price})
	require.NoError(t, err)
	require.Equal(t, price, updated.Price)

	require.NoError(t, svc.Delete(ctx, staff, created.ID))

	require.Len(t, activity.changes, 3)
	require.Equal(t, models.ActionCreate, activity.changes[0].action)
	require.Equal(t, models.ActionUpdate, activity.changes[1].action)
	require.NotNil(t, activity.changes[1].opts.Previous)
	previous, ok := activity.changes[1].opts.Previous.(models.Product)
	require.True(t, ok)
	require.Equal(t, int64(15000000), previous.Price)
	require.Equal(t, models.ActionDelete, activity.changes[2].action)

	_, err = svc.Get(ctx, staff, created.ID)
	require.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestProductServiceViewsSplitByActor(t *testing.T) {
	svc, activity := newTestProductService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, RequestContext{UserID: ptrUint(1)}, dto.ProductCreateRequest{SKU: "MUG-1", Name: "Mug", Price: 50000, Stock: 10})
	require.NoError(t, err)

	_, err = svc.Get(ctx, RequestContext{UserID: ptrUint(2)}, created.ID)
	require.NoError(t, err)
	require.Len(t, activity.changes, 2)
	require.Equal(t, models.ActionView, activity.changes[1].action)

	_, err = svc.Get(ctx, RequestContext{SessionID: "sess-1", IPAddress: "203.0.113.5"}, created.ID)
	require.NoError(t, err)
	require.Len(t, activity.guests, 1)
	guest := activity.guests[0]
	require.Equal(t, models.ActionView, guest.Action)
	require.Equal(t, "Mug", guest.EntityName)
	require.NotNil(t, guest.EntityID)
	require.Equal(t, created.ID, *guest.EntityID)
}

func TestProductServiceSetStatusLogsOneBulkRecord(t *testing.T) {
	svc, activity := newTestProductService(t)
	ctx := context.Background()
	staff := RequestContext{UserID: ptrUint(1)}

	first, err := svc.Create(ctx, staff, dto.ProductCreateRequest{SKU: "A", Name: "Alpha", Price: 1, Stock: 1})
	require.NoError(t, err)
	second, err := svc.Create(ctx, staff, dto.ProductCreateRequest{SKU: "B", Name: "Beta", Price: 1, Stock: 1})
	require.NoError(t, err)

	resp, err := svc.SetStatus(ctx, staff, dto.ProductBulkStatusRequest{IDs: []uint{first.ID, second.ID, 999}, IsActive: false})
	require.NoError(t, err)
	require.Equal(t, []uint{first.ID, second.ID}, resp.Updated)
	require.Equal(t, []uint{999}, resp.Failed)

	require.Len(t, activity.bulks, 1)
	bulk := activity.bulks[0]
	require.Equal(t, models.ActionDeactivate, bulk.Action)
	require.Equal(t, 2, bulk.SuccessCount)
	require.Equal(t, 1, bulk.ErrorCount)
	require.Len(t, bulk.Entities, 2)

	page, err := svc.List(ctx, ProductListParams{Active: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, int64(2), page.Pagination.TotalItems)
}

func TestProductServiceSetStatusWithoutMatchesLogsNothing(t *testing.T) {
	svc, activity := newTestProductService(t)

	resp, err := svc.SetStatus(context.Background(), RequestContext{UserID: ptrUint(1)}, dto.ProductBulkStatusRequest{IDs: []uint{41, 42}, IsActive: true})
	require.NoError(t, err)
	require.Empty(t, resp.Updated)
	require.Len(t, resp.Failed, 2)
	require.Empty(t, activity.bulks)

	_, err = svc.SetStatus(context.Background(), RequestContext{}, dto.ProductBulkStatusRequest{})
	require.Error(t, err)
}

func boolPtr(v bool) *bool {
	return &v
}

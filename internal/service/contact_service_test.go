package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
)

type contactRepoStub struct {
	created []models.ContactMessage
	err     error
}

func (c *contactRepoStub) Create(ctx context.Context, message *models.ContactMessage) error {
	if c.err != nil {
		return c.err
	}
	message.ID = uint(len(c.created) + 1)
	c.created = append(c.created, *message)
	return nil
}

func newTestContactService(t *testing.T, repo *contactRepoStub) (ContactService, *fakeActivityLogger, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	activity := &fakeActivityLogger{}
	return NewContactService(repo, client, validator.New(), activity, testLogger()), activity, server
}

func TestContactServiceStoresAndLogsGuestSubmission(t *testing.T) {
	repo := &contactRepoStub{}
	svc, activity, _ := newTestContactService(t, repo)

	req := RequestContext{IPAddress: "203.0.113.10", UserAgent: "Mozilla/5.0"}
	resp, err := svc.Submit(context.Background(), req, dto.ContactMessageRequest{
		Name:     "Jane Doe",
		Email:    "Jane@Example.com ",
		Phone:    "+62 812 0000",
		Message:  "Do you ship to Bandung?",
		Campaign: "spring-sale",
	})
	require.NoError(t, err)
	require.Equal(t, uint(1), resp.ID)
	require.Equal(t, "new", resp.Status)

	require.Len(t, repo.created, 1)
	require.Equal(t, "jane@example.com", repo.created[0].Email)

	require.Len(t, activity.guests, 1)
	logged := activity.guests[0]
	require.Equal(t, models.ActionSubmit, logged.Action)
	require.Equal(t, "Customer inquiry form submission", logged.Description)
	require.Equal(t, "contact_form", logged.Guest.Source)
	require.Equal(t, "spring-sale", logged.Guest.Campaign)
	require.Equal(t, "jane@example.com", logged.Guest.Email)
	require.Equal(t, ContactSubmissionSchema, logged.MetadataSchema)
	require.Equal(t, len("Do you ship to Bandung?"), logged.Extra["message_length"])
	require.Equal(t, false, logged.Extra["has_subject"])
	require.NotNil(t, logged.EntityID)
	require.Equal(t, uint(1), *logged.EntityID)
}

func TestContactServiceRejectsDuplicatesWithinWindow(t *testing.T) {
	repo := &contactRepoStub{}
	svc, activity, server := newTestContactService(t, repo)

	payload := dto.ContactMessageRequest{Name: "Jane", Email: "jane@example.com", Message: "Hello there"}
	_, err := svc.Submit(context.Background(), RequestContext{}, payload)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), RequestContext{}, payload)
	require.ErrorIs(t, err, ErrContactDuplicate)
	require.Len(t, repo.created, 1)
	require.Len(t, activity.guests, 1)

	server.FastForward(6 * time.Minute)
	_, err = svc.Submit(context.Background(), RequestContext{}, payload)
	require.NoError(t, err)
	require.Len(t, repo.created, 2)
}

func TestContactServiceRejectsSpamAndInvalidPayloads(t *testing.T) {
	repo := &contactRepoStub{}
	svc, activity, _ := newTestContactService(t, repo)

	_, err := svc.Submit(context.Background(), RequestContext{}, dto.ContactMessageRequest{Name: "Bot", Message: "buy now", Honeypot: "http://spam"})
	require.ErrorIs(t, err, ErrContactSpam)

	_, err = svc.Submit(context.Background(), RequestContext{}, dto.ContactMessageRequest{Name: "", Message: ""})
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))

	require.Empty(t, repo.created)
	require.Empty(t, activity.guests)
}

func TestContactServiceSkipsActivityWhenStoreFails(t *testing.T) {
	repo := &contactRepoStub{err: errors.New("database unavailable")}
	svc, activity, _ := newTestContactService(t, repo)

	_, err := svc.Submit(context.Background(), RequestContext{}, dto.ContactMessageRequest{Name: "Jane", Message: "Hi"})
	require.Error(t, err)
	require.Empty(t, activity.guests)
}

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "j***e@example.com", maskEmail("jane@example.com"))
	require.Equal(t, "j***@example.com", maskEmail("jo@example.com"))
	require.Equal(t, "***", maskEmail("invalid"))
	require.Equal(t, "", maskEmail(""))
}

func TestContactServiceStripsMarkupBeforeStoring(t *testing.T) {
	repo := &contactRepoStub{}
	svc, activity, _ := newTestContactService(t, repo)

	_, err := svc.Submit(context.Background(), RequestContext{IPAddress: "203.0.113.10"}, dto.ContactMessageRequest{
		Name:    "<b>Jane</b> & Co",
		Subject: `<a href="javascript:alert(1)">Bulk order</a>`,
		Message: "Need <i>50</i> units<script>alert('x')</script>",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	stored := repo.created[0]
	require.Equal(t, "Jane & Co", stored.Name)
	require.Equal(t, "Bulk order", stored.Subject)
	require.Equal(t, "Need 50 units", stored.Message)
	require.Equal(t, "Jane & Co", activity.guests[0].Guest.Name)

	_, err = svc.Submit(context.Background(), RequestContext{IPAddress: "203.0.113.10"}, dto.ContactMessageRequest{
		Name:    "Mallory",
		Message: "<script>alert(1)</script>",
	})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	require.Len(t, repo.created, 1)
}

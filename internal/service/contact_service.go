package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/observability"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

// ContactDuplicateWindow is how long an identical submission is rejected.
const ContactDuplicateWindow = 5 * time.Minute

var (
	// ErrContactSpam indicates the honeypot field was filled.
	ErrContactSpam = errors.New("contact submission flagged as spam")
	// ErrContactDuplicate indicates a submission with the same checksum exists recently.
	ErrContactDuplicate = errors.New("duplicate contact submission")
)

// ContactService exposes the public contact form workflow.
type ContactService interface {
	Submit(ctx context.Context, req RequestContext, payload dto.ContactMessageRequest) (dto.ContactMessageResponse, error)
}

type contactService struct {
	repo      repository.ContactMessageRepository
	cache     *redis.Client
	validator *validator.Validate
	activity  ActivityLogger
	logger    zerolog.Logger
	dedupeTTL time.Duration
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
}

// NewContactService constructs a contact submission service. cache may be nil,
// in which case duplicate detection is skipped.
func NewContactService(repo repository.ContactMessageRepository, cache *redis.Client, validator *validator.Validate, activity ActivityLogger, logger zerolog.Logger) ContactService {
	return &contactService{
		repo:      repo,
		cache:     cache,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "contact_service").Logger(),
		dedupeTTL: ContactDuplicateWindow,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-activity-log/internal/service/contact"),
	}
}

func (s *contactService) Submit(ctx context.Context, req RequestContext, payload dto.ContactMessageRequest) (dto.ContactMessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "contact.submit")
	defer span.End()

	if payload.Honeypot != "" {
		span.SetStatus(codes.Error, "honeypot tripped")
		observability.ContactSubmissions().WithLabelValues("spam").Inc()
		return dto.ContactMessageResponse{}, ErrContactSpam
	}

	// Markup is stripped before validation so a tag-only message counts as empty.
	payload.Name = plainText(s.sanitizer, payload.Name)
	payload.Subject = plainText(s.sanitizer, payload.Subject)
	payload.Message = plainText(s.sanitizer, payload.Message)

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.ContactMessageResponse{}, err
	}

	checksum := computeChecksum(payload.Name, payload.Email, payload.Message)
	span.SetAttributes(attribute.String("contact.checksum", checksum))

	if s.cache != nil {
		key := fmt.Sprintf("contact:dedupe:%s", checksum)
		ok, err := s.cache.SetNX(ctx, key, 1, s.dedupeTTL).Result()
		if err != nil {
			span.RecordError(err)
			return dto.ContactMessageResponse{}, err
		}
		if !ok {
			span.SetStatus(codes.Error, "duplicate submission")
			observability.ContactSubmissions().WithLabelValues("duplicate").Inc()
			return dto.ContactMessageResponse{}, ErrContactDuplicate
		}
	}

	message := models.ContactMessage{
		Name:    strings.TrimSpace(payload.Name),
		Email:   strings.ToLower(strings.TrimSpace(payload.Email)),
		Phone:   strings.TrimSpace(payload.Phone),
		Subject: strings.TrimSpace(payload.Subject),
		Message: strings.TrimSpace(payload.Message),
		Status:  "new",
	}

	if err := s.repo.Create(ctx, &message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		observability.ContactSubmissions().WithLabelValues("error").Inc()
		return dto.ContactMessageResponse{}, err
	}

	s.activity.GuestActivity(ctx, req, GuestActivity{
		Action:      models.ActionSubmit,
		EntityKind:  models.EntityKindOf(message),
		EntityPath:  models.EntityPathOf(message),
		EntityID:    entityIDPtr(message.ID),
		EntityName:  message.DisplayName(),
		Description: "Customer inquiry form submission",
		Guest: GuestDetails{
			Name:     message.Name,
			Email:    message.Email,
			Phone:    message.Phone,
			Source:   firstNonEmpty(strings.TrimSpace(payload.Source), "contact_form"),
			Campaign: strings.TrimSpace(payload.Campaign),
		},
		Extra: map[string]interface{}{
			"message_length": len(message.Message),
			"has_subject":    message.Subject != "",
		},
		MetadataSchema: ContactSubmissionSchema,
	})

	observability.ContactSubmissions().WithLabelValues("stored").Inc()
	s.logger.Info().Uint("message_id", message.ID).Str("email", maskEmail(message.Email)).Msg("contact submission stored")
	span.SetStatus(codes.Ok, "stored")

	return dto.ContactMessageResponse{ID: message.ID, Status: message.Status, CreatedAt: message.CreatedAt}, nil
}

func computeChecksum(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(strings.TrimSpace(strings.ToLower(part))))
		hasher.Write([]byte("|"))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "***"
	}
	local := parts[0]
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + parts[1]
}

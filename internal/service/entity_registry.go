package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

// ErrEntityNotFound is returned by resolvers when the instance no longer exists.
var ErrEntityNotFound = errors.New("entity not found")

var entityPathPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[A-Z][A-Za-z0-9_]*$`)

// EntityResolver loads a live entity by primary key.
type EntityResolver func(ctx context.Context, id uint) (interface{}, error)

// EntityRegistry maps entity paths such as "core.Product" to typed resolvers.
// It is populated at startup and read concurrently afterwards.
type EntityRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]EntityResolver
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewEntityRegistry creates an empty registry.
func NewEntityRegistry(logger zerolog.Logger) *EntityRegistry {
	return &EntityRegistry{
		resolvers: make(map[string]EntityResolver),
		tracer:    otel.Tracer("github.com/noah-isme/gema-activity-log/internal/service/entity"),
		logger:    logger.With().Str("component", "entity_registry").Logger(),
	}
}

// ValidEntityPath reports whether path has the "<namespace>.<Type>" shape.
func ValidEntityPath(path string) bool {
	return entityPathPattern.MatchString(path)
}

// Register binds a resolver to an entity path.
func (r *EntityRegistry) Register(path string, resolver EntityResolver) error {
	if !ValidEntityPath(path) {
		return fmt.Errorf("invalid entity path %q", path)
	}
	if resolver == nil {
		return fmt.Errorf("resolver for %s is nil", path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[path]; exists {
		return fmt.Errorf("entity path %s already registered", path)
	}
	r.resolvers[path] = resolver
	return nil
}

// RegisterModel registers a gorm-backed resolver for T under the path derived
// from T's declared type and returns that path.
func RegisterModel[T models.Entity](registry *EntityRegistry, db *gorm.DB) (string, error) {
	var zero T
	path := models.EntityPathOf(zero)

	err := registry.Register(path, func(ctx context.Context, id uint) (interface{}, error) {
		var item T
		if err := db.WithContext(ctx).First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrEntityNotFound
			}
			return nil, err
		}
		return item, nil
	})
	return path, err
}

// Known reports whether a resolver exists for path.
func (r *EntityRegistry) Known(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resolvers[path]
	return ok
}

// Paths lists the registered entity paths in sorted order.
func (r *EntityRegistry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.resolvers))
	for path := range r.resolvers {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Resolve loads the entity a record points at. Malformed or unknown paths, a
// zero id, a missing instance and lookup errors all yield (nil, false); a
// dangling reference is an expected condition.
func (r *EntityRegistry) Resolve(ctx context.Context, path string, id uint) (interface{}, bool) {
	if id == 0 || !ValidEntityPath(path) {
		return nil, false
	}

	r.mu.RLock()
	resolver, ok := r.resolvers[path]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	spanCtx, span := r.tracer.Start(ctx, "activity.resolve", trace.WithAttributes(
		attribute.String("entity.path", path),
		attribute.Int64("entity.id", int64(id)),
	))
	defer span.End()

	entity, err := resolver(spanCtx, id)
	if err != nil {
		if !errors.Is(err, ErrEntityNotFound) {
			span.RecordError(err)
			r.logger.Warn().Err(err).Str("entity_path", path).Uint("entity_id", id).Msg("entity lookup failed")
		}
		return nil, false
	}
	if entity == nil {
		return nil, false
	}
	return entity, true
}

package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

const maskedValue = "********"

var sensitiveKeyFragments = []string{"password", "token", "secret", "api_key", "apikey"}

// ActivityEntry captures everything needed to persist one activity record.
type ActivityEntry struct {
	Request        RequestContext
	Guest          GuestDetails
	Action         models.ActionType
	EntityKind     string
	EntityPath     string
	EntityID       *uint
	EntityName     string
	Before         map[string]interface{}
	After          map[string]interface{}
	ChangedFields  []string
	Description    string
	Extra          map[string]interface{}
	MetadataSchema string
}

// EntityChangeOptions tunes NewEntityChangeEntry.
type EntityChangeOptions struct {
	// Previous is the entity state before an update; required for updates.
	Previous      models.Entity
	ExcludeFields []string
	Description   string
	Extra         map[string]interface{}
	Guest         GuestDetails
	// KeepSensitive disables masking of credential-like snapshot keys.
	KeepSensitive bool
}

// NewEntityChangeEntry derives an entry from a typed entity. The entity kind
// and path come from the entity's declared type.
func NewEntityChangeEntry(req RequestContext, action models.ActionType, entity models.Entity, opts EntityChangeOptions) (ActivityEntry, error) {
	if !action.Valid() {
		return ActivityEntry{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if entity == nil {
		return ActivityEntry{}, ErrMissingEntity
	}
	if action == models.ActionUpdate && opts.Previous == nil {
		return ActivityEntry{}, ErrMissingPreviousState
	}

	kind := models.EntityKindOf(entity)
	entry := ActivityEntry{
		Request:    req,
		Guest:      opts.Guest,
		Action:     action,
		EntityKind: kind,
		EntityPath: models.EntityPathOf(entity),
		EntityID:   entityIDPtr(entity.EntityID()),
		EntityName: entity.DisplayName(),
		Extra:      cloneMap(opts.Extra),
	}

	mask := !opts.KeepSensitive
	switch action {
	case models.ActionCreate:
		entry.After = prepareSnapshot(entity.Snapshot(), opts.ExcludeFields, mask)
		entry.Description = describe(action, kind, entry.EntityName, opts.Description)
	case models.ActionUpdate:
		previous := excludeKeys(opts.Previous.Snapshot(), opts.ExcludeFields)
		current := excludeKeys(entity.Snapshot(), opts.ExcludeFields)
		before, after, changed := DiffSnapshots(previous, current)
		if len(changed) == 0 {
			entry.Action = models.ActionView
			entry.Description = fmt.Sprintf("No changes detected for %s: %s", kind, opts.Previous.DisplayName())
			return entry, nil
		}
		// changed is taken from raw values: a rotated secret stays listed though both sides mask.
		entry.Before = prepareSnapshot(before, nil, mask)
		entry.After = prepareSnapshot(after, nil, mask)
		entry.ChangedFields = changed
		entry.Description = opts.Description
		if strings.TrimSpace(entry.Description) == "" {
			entry.Description = fmt.Sprintf("Updated %s: %s (%d fields changed)", kind, opts.Previous.DisplayName(), len(changed))
		}
	case models.ActionDelete:
		entry.Before = prepareSnapshot(entity.Snapshot(), opts.ExcludeFields, mask)
		entry.Description = describe(action, kind, entry.EntityName, opts.Description)
	default:
		entry.Description = describe(action, kind, entry.EntityName, opts.Description)
	}

	return entry, nil
}

// GuestActivity describes an interaction that has no typed entity at hand,
// such as a form submission or an anonymous download.
type GuestActivity struct {
	Action      models.ActionType
	EntityKind  string
	EntityPath  string
	EntityID    *uint
	EntityName  string
	Description string
	Guest       GuestDetails
	Extra       map[string]interface{}
	// MetadataSchema optionally names the producer schema Extra follows.
	MetadataSchema string
}

// NewGuestActivityEntry builds an entry for an interaction without a typed entity.
func NewGuestActivityEntry(req RequestContext, activity GuestActivity) (ActivityEntry, error) {
	if !activity.Action.Valid() {
		return ActivityEntry{}, fmt.Errorf("%w: %q", ErrInvalidAction, activity.Action)
	}

	return ActivityEntry{
		Request:        req,
		Guest:          activity.Guest,
		Action:         activity.Action,
		EntityKind:     activity.EntityKind,
		EntityPath:     activity.EntityPath,
		EntityID:       activity.EntityID,
		EntityName:     activity.EntityName,
		Description:    guestDescription(activity),
		Extra:          cloneMap(activity.Extra),
		MetadataSchema: activity.MetadataSchema,
	}, nil
}

func guestDescription(activity GuestActivity) string {
	if activity.EntityName != "" {
		return describe(activity.Action, firstNonEmpty(activity.EntityKind, models.NoEntity), activity.EntityName, activity.Description)
	}
	if trimmed := strings.TrimSpace(activity.Description); trimmed != "" {
		return trimmed
	}
	text := string(activity.Action)
	return "Guest " + text
}

// BulkOperationSchema names the extra metadata layout written by bulk entries.
const BulkOperationSchema = "bulk_operation.v1"

// BulkOperation summarises a batch action over entities of one type.
type BulkOperation struct {
	Action       models.ActionType
	Entities     []models.Entity
	Name         string
	SuccessCount int
	ErrorCount   int
	Extra        map[string]interface{}
}

// NewBulkOperationEntry builds a single summary entry for a batch operation.
// Entity information is taken from the first entity.
func NewBulkOperationEntry(req RequestContext, op BulkOperation) (ActivityEntry, error) {
	if !op.Action.Valid() {
		return ActivityEntry{}, fmt.Errorf("%w: %q", ErrInvalidAction, op.Action)
	}
	if len(op.Entities) == 0 || op.Entities[0] == nil {
		return ActivityEntry{}, ErrEmptyBulk
	}

	first := op.Entities[0]
	kind := models.EntityKindOf(first)
	total := op.SuccessCount + op.ErrorCount

	successRate := 0.0
	if total > 0 {
		successRate = math.Round(float64(op.SuccessCount)/float64(total)*10000) / 100
	}

	ids := make([]uint, 0, len(op.Entities))
	for _, entity := range op.Entities {
		if entity == nil {
			continue
		}
		if id := entity.EntityID(); id != 0 {
			ids = append(ids, id)
		}
	}

	extra := map[string]interface{}{
		"bulk_operation":  true,
		"operation_name":  op.Name,
		"total_processed": total,
		"success_count":   op.SuccessCount,
		"error_count":     op.ErrorCount,
		"success_rate":    successRate,
		"entity_ids":      ids,
	}
	for key, value := range op.Extra {
		extra[key] = value
	}

	return ActivityEntry{
		Request:        req,
		Action:         op.Action,
		EntityKind:     kind,
		EntityPath:     models.EntityPathOf(first),
		EntityName:     fmt.Sprintf("Bulk %s operation", kind),
		Description:    fmt.Sprintf("Bulk %s operation: %s (%d successful, %d failed)", op.Action, op.Name, op.SuccessCount, op.ErrorCount),
		Extra:          extra,
		MetadataSchema: BulkOperationSchema,
	}, nil
}

// DiffSnapshots compares two snapshots and returns, for every key present in
// both whose value differs, the old value, the new value and the sorted key list.
func DiffSnapshots(previous, current map[string]interface{}) (map[string]interface{}, map[string]interface{}, []string) {
	before := map[string]interface{}{}
	after := map[string]interface{}{}
	changed := make([]string, 0)

	for key, oldValue := range previous {
		newValue, ok := current[key]
		if !ok || valuesEqual(oldValue, newValue) {
			continue
		}
		before[key] = oldValue
		after[key] = newValue
		changed = append(changed, key)
	}

	sort.Strings(changed)
	return before, after, changed
}

// valuesEqual compares values by their JSON encoding so that numerically equal
// values of different Go types compare equal.
func valuesEqual(a, b interface{}) bool {
	left, errLeft := json.Marshal(a)
	right, errRight := json.Marshal(b)
	if errLeft != nil || errRight != nil {
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
	return string(left) == string(right)
}

func describe(action models.ActionType, kind, name, custom string) string {
	if trimmed := strings.TrimSpace(custom); trimmed != "" {
		return trimmed
	}

	var verb string
	switch action {
	case models.ActionCreate:
		verb = "Created"
	case models.ActionUpdate:
		verb = "Updated"
	case models.ActionDelete:
		verb = "Deleted"
	case models.ActionView:
		verb = "Viewed"
	default:
		text := string(action)
		verb = strings.ToUpper(text[:1]) + text[1:]
	}
	return fmt.Sprintf("%s %s: %s", verb, kind, name)
}

func prepareSnapshot(snapshot map[string]interface{}, exclude []string, mask bool) map[string]interface{} {
	result := excludeKeys(snapshot, exclude)
	if mask {
		for key := range result {
			if isSensitiveKey(key) {
				result[key] = maskedValue
			}
		}
	}
	return result
}

func excludeKeys(snapshot map[string]interface{}, exclude []string) map[string]interface{} {
	result := cloneMap(snapshot)
	for _, key := range exclude {
		delete(result, key)
	}
	return result
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}

func entityIDPtr(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

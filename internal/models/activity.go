package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ActorType distinguishes authenticated users from anonymous guests.
type ActorType string

const (
	ActorTypeUser  ActorType = "user"
	ActorTypeGuest ActorType = "guest"
)

// Valid reports whether the actor type is one of the known variants.
func (t ActorType) Valid() bool {
	return t == ActorTypeUser || t == ActorTypeGuest
}

// ActionType enumerates the actions recorded in the activity log.
type ActionType string

const (
	ActionCreate     ActionType = "create"
	ActionUpdate     ActionType = "update"
	ActionDelete     ActionType = "delete"
	ActionView       ActionType = "view"
	ActionLogin      ActionType = "login"
	ActionLogout     ActionType = "logout"
	ActionUpload     ActionType = "upload"
	ActionDownload   ActionType = "download"
	ActionActivate   ActionType = "activate"
	ActionDeactivate ActionType = "deactivate"
	ActionPublish    ActionType = "publish"
	ActionUnpublish  ActionType = "unpublish"
	ActionSubmit     ActionType = "submit"
	ActionExport     ActionType = "export"
	ActionImport     ActionType = "import"
	ActionApprove    ActionType = "approve"
	ActionReject     ActionType = "reject"
)

var knownActions = map[ActionType]struct{}{
	ActionCreate: {}, ActionUpdate: {}, ActionDelete: {}, ActionView: {},
	ActionLogin: {}, ActionLogout: {}, ActionUpload: {}, ActionDownload: {},
	ActionActivate: {}, ActionDeactivate: {}, ActionPublish: {}, ActionUnpublish: {},
	ActionSubmit: {}, ActionExport: {}, ActionImport: {}, ActionApprove: {}, ActionReject: {},
}

// Valid reports whether the action belongs to the closed action set.
func (a ActionType) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// ParseAction normalises free-form input into an ActionType.
func ParseAction(value string) (ActionType, bool) {
	action := ActionType(strings.ToLower(strings.TrimSpace(value)))
	return action, action.Valid()
}

// ActionTypes lists every known action in declaration order.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionCreate, ActionUpdate, ActionDelete, ActionView, ActionLogin, ActionLogout,
		ActionUpload, ActionDownload, ActionActivate, ActionDeactivate, ActionPublish,
		ActionUnpublish, ActionSubmit, ActionExport, ActionImport, ActionApprove, ActionReject,
	}
}

// NoEntity marks records that do not target a specific entity type.
const NoEntity = "-"

// ActivityLog is one immutable row in the activity trail. Only ExtraMetadata may
// be amended after insertion.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorType ActorType `gorm:"size:16;not null;index:idx_activity_actor_type_created,priority:1" json:"actor_type"`
	// UserID is cleared when the referenced user is deleted; the record survives.
	UserID            *uint                       `gorm:"index" json:"user_id"`
	User              *User                       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	ActorIdentifier   string                      `gorm:"size:255;not null;index:idx_activity_actor_identifier" json:"actor_identifier"`
	ActorName         string                      `gorm:"size:255" json:"actor_name"`
	ActorMetadata     datatypes.JSONMap           `gorm:"type:json" json:"actor_metadata"`
	Action            ActionType                  `gorm:"size:32;not null;index:idx_activity_action_created,priority:1" json:"action"`
	EntityKind        string                      `gorm:"size:64;not null;default:'-';index:idx_activity_kind_id,priority:1;index:idx_activity_kind_created,priority:1" json:"entity_kind"`
	EntityPath        string                      `gorm:"size:128;not null;default:'-';index:idx_activity_path_id,priority:1" json:"entity_path"`
	EntityID          *uint                       `gorm:"index:idx_activity_kind_id,priority:2;index:idx_activity_path_id,priority:2" json:"entity_id"`
	EntityDisplayName string                      `gorm:"size:255" json:"entity_display_name"`
	BeforeSnapshot    datatypes.JSONMap           `gorm:"type:json" json:"before_snapshot"`
	AfterSnapshot     datatypes.JSONMap           `gorm:"type:json" json:"after_snapshot"`
	ChangedFields     datatypes.JSONSlice[string] `gorm:"type:json" json:"changed_fields"`
	Description       string                      `gorm:"type:text" json:"description"`
	IPAddress         string                      `gorm:"size:45" json:"ip_address"`
	UserAgent         string                      `gorm:"type:text" json:"user_agent"`
	ExtraMetadata     datatypes.JSONMap           `gorm:"type:json" json:"extra_metadata"`
	CreatedAt         time.Time                   `gorm:"not null;index:idx_activity_created;index:idx_activity_actor_type_created,priority:2;index:idx_activity_action_created,priority:2;index:idx_activity_kind_created,priority:2" json:"created_at"`
}

// TableName pins the table name used across drivers.
func (ActivityLog) TableName() string {
	return "activity_logs"
}

// IsGuest reports whether the record was produced by an anonymous actor.
func (a ActivityLog) IsGuest() bool {
	return a.ActorType == ActorTypeGuest
}

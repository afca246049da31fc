package service

import "errors"

var (
	// ErrInvalidAction is returned for actions outside the known action set.
	ErrInvalidAction = errors.New("invalid action type")
	// ErrMissingEntity is returned when an entity-based entry has no entity.
	ErrMissingEntity = errors.New("entity is required")
	// ErrMissingPreviousState is returned for updates without the previous entity state.
	ErrMissingPreviousState = errors.New("previous state is required for update actions")
	// ErrEmptyBulk is returned for bulk operations without entities.
	ErrEmptyBulk = errors.New("at least one entity is required for bulk operations")
	// ErrInvalidCursor is returned for cursors that cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrRecordNotFound is returned when an activity record does not exist.
	ErrRecordNotFound = errors.New("activity record not found")
)

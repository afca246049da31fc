package models

import (
	"reflect"
	"strings"
)

// DefaultEntityNamespace prefixes entity paths for types that do not declare one.
const DefaultEntityNamespace = "core"

// Entity is a domain object that activity records can reference weakly.
type Entity interface {
	EntityID() uint
	DisplayName() string
	Snapshot() map[string]any
}

// namespacedEntity lets a type place itself outside the default namespace.
type namespacedEntity interface {
	EntityNamespace() string
}

// EntityKindOf returns the lower-cased simple type name of an entity, e.g. "product".
// It depends only on the declared type, never on instance data.
func EntityKindOf(entity any) string {
	name := typeName(entity)
	if name == "" {
		return NoEntity
	}
	return strings.ToLower(name)
}

// EntityPathOf returns the fully qualified type reference of an entity, e.g. "core.Product".
func EntityPathOf(entity any) string {
	name := typeName(entity)
	if name == "" {
		return NoEntity
	}
	namespace := DefaultEntityNamespace
	if ns, ok := entity.(namespacedEntity); ok && strings.TrimSpace(ns.EntityNamespace()) != "" {
		namespace = strings.TrimSpace(ns.EntityNamespace())
	}
	return namespace + "." + name
}

func typeName(entity any) string {
	if entity == nil {
		return ""
	}
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

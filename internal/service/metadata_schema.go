package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MetadataSchemaKey is the extra_metadata key naming the producer schema.
const MetadataSchemaKey = "schema"

// ContactSubmissionSchema names the metadata written for contact form submissions.
const ContactSubmissionSchema = "contact_submission.v1"

// ErrUnknownMetadataSchema is returned when validating against an unregistered schema.
var ErrUnknownMetadataSchema = errors.New("unknown metadata schema")

const bulkOperationSchemaDocument = `{
  "type": "object",
  "required": ["bulk_operation", "operation_name", "total_processed", "success_count", "error_count", "success_rate", "entity_ids"],
  "properties": {
    "schema": {"type": "string"},
    "bulk_operation": {"const": true},
    "operation_name": {"type": "string", "minLength": 1},
    "total_processed": {"type": "integer", "minimum": 0},
    "success_count": {"type": "integer", "minimum": 0},
    "error_count": {"type": "integer", "minimum": 0},
    "success_rate": {"type": "number", "minimum": 0, "maximum": 100},
    "entity_ids": {"type": "array", "items": {"type": "integer", "minimum": 1}}
  }
}`

const contactSubmissionSchemaDocument = `{
  "type": "object",
  "required": ["message_length"],
  "properties": {
    "schema": {"type": "string"},
    "message_length": {"type": "integer", "minimum": 0},
    "has_subject": {"type": "boolean"}
  }
}`

// MetadataSchemas holds the versioned JSON schemas producers declare for
// their extra metadata.
type MetadataSchemas struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewMetadataSchemas returns a registry preloaded with the built-in schemas.
func NewMetadataSchemas() *MetadataSchemas {
	registry := &MetadataSchemas{schemas: make(map[string]*jsonschema.Schema)}
	for name, document := range map[string]string{
		BulkOperationSchema:     bulkOperationSchemaDocument,
		ContactSubmissionSchema: contactSubmissionSchemaDocument,
	} {
		if err := registry.Register(name, document); err != nil {
			panic(fmt.Sprintf("invalid built-in metadata schema %s: %v", name, err))
		}
	}
	return registry
}

// Register compiles and stores a schema document under name, e.g. "export.v2".
func (m *MetadataSchemas) Register(name, document string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("schema name is required")
	}

	url := "mem://activity-metadata/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(document)); err != nil {
		return fmt.Errorf("load schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}

	m.mu.Lock()
	m.schemas[name] = schema
	m.mu.Unlock()
	return nil
}

// Validate checks metadata against the named schema.
func (m *MetadataSchemas) Validate(name string, metadata map[string]interface{}) error {
	m.mu.RLock()
	schema, ok := m.schemas[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMetadataSchema, name)
	}

	// Round-trip through JSON so typed Go values validate as their JSON forms.
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	return schema.Validate(document)
}

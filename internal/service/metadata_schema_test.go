package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataSchemasBuiltIns(t *testing.T) {
	schemas := NewMetadataSchemas()

	valid := map[string]interface{}{
		"bulk_operation":  true,
		"operation_name":  "Product status change",
		"total_processed": 3,
		"success_count":   2,
		"error_count":     1,
		"success_rate":    66.67,
		"entity_ids":      []uint{1, 2},
	}
	require.NoError(t, schemas.Validate(BulkOperationSchema, valid))

	broken := map[string]interface{}{
		"bulk_operation": true,
		"operation_name": "Product status change",
		"success_rate":   140.0,
	}
	require.Error(t, schemas.Validate(BulkOperationSchema, broken))

	require.NoError(t, schemas.Validate(ContactSubmissionSchema, map[string]interface{}{"message_length": 42, "has_subject": false}))
	require.Error(t, schemas.Validate(ContactSubmissionSchema, map[string]interface{}{"has_subject": "yes"}))
}

func TestMetadataSchemasRegister(t *testing.T) {
	schemas := NewMetadataSchemas()

	require.ErrorIs(t, schemas.Validate("export.v2", map[string]interface{}{}), ErrUnknownMetadataSchema)

	require.NoError(t, schemas.Register("export.v2", `{"type":"object","required":["format"],"properties":{"format":{"enum":["csv","xlsx"]}}}`))
	require.NoError(t, schemas.Validate("export.v2", map[string]interface{}{"format": "csv"}))
	require.Error(t, schemas.Validate("export.v2", map[string]interface{}{"format": "pdf"}))

	require.Error(t, schemas.Register(" ", `{}`))
	require.Error(t, schemas.Register("broken.v1", `{"type": 12}`))
}

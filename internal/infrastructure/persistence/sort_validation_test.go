package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns DESC", "", "DESC"},
		{"ASC uppercase returns ASC", "ASC", "ASC"},
		{"asc lowercase returns ASC", "asc", "ASC"},
		{"DESC uppercase returns DESC", "DESC", "DESC"},
		{"desc lowercase returns DESC", "DESC", "DESC"},
		{"invalid value returns DESC", "INVALID", "DESC"},
		{"sql injection attempt returns DESC", "ASC; DROP TABLE deliveries;--", "DESC"},
		{"whitespace only returns DESC", "   ", "DESC"},
		{"whitespace around ASC returns ASC", "  asc  ", "ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSortOrder(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidateSortField(t *testing.T) {
	allowedFields := map[string]bool{
		"id":         true,
		"created_at": true,
		"updated_at": true,
		"status":     true,
	}

	tests := []struct {
		name         string
		input        string
		allowedMap   map[string]bool
		defaultField string
		expected     string
	}{
		{"empty string returns default", "", allowedFields, "created_at", "created_at"},
		{"valid field returns field", "status", allowedFields, "created_at", "status"},
		{"valid field id returns field", "id", allowedFields, "created_at", "id"},
		{"invalid field returns default", "invalid_field", allowedFields, "created_at", "created_at"},
		{"sql injection attempt returns default", "id; DROP TABLE deliveries;--", allowedFields, "created_at", "created_at"},
		{"case sensitive - uppercase invalid", "STATUS", allowedFields, "created_at", "created_at"},
		{"whitespace only returns default", "   ", allowedFields, "created_at", "created_at"},
		{"whitespace around valid field returns field", "  status  ", allowedFields, "created_at", "status"},
		{"field with spaces injection returns default", "status deliveries", allowedFields, "created_at", "created_at"},
		{"field with quotes injection returns default", "status'--", allowedFields, "created_at", "created_at"},
		{"empty default with valid field", "status", allowedFields, "", "status"},
		{"empty default with invalid field", "invalid", allowedFields, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSortField(tt.input, tt.allowedMap, tt.defaultField)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSortFieldsWhitelists(t *testing.T) {
	t.Run("SyncJobSortFields contains common fields", func(t *testing.T) {
		for _, field := range []string{"id", "created_at", "updated_at"} {
			assert.True(t, SyncJobSortFields[field], "SyncJobSortFields should contain %q", field)
		}
	})

	t.Run("WebhookEventSortFields contains log ordering fields", func(t *testing.T) {
		for _, field := range []string{"id", "received_at", "occurred_at"} {
			assert.True(t, WebhookEventSortFields[field], "WebhookEventSortFields should contain %q", field)
		}
	})

	t.Run("whitelists are not empty", func(t *testing.T) {
		assert.Greater(t, len(WebhookEventSortFields), 3)
		assert.Greater(t, len(SyncJobSortFields), 3)
	})
}

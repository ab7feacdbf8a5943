package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// WebhookEventSortFields contains allowed sort fields for webhook event log entries
var WebhookEventSortFields = map[string]bool{
	"id":          true,
	"received_at": true,
	"occurred_at": true,
	"carrier":     true,
	"awb":         true,
	"outcome":     true,
}

// SyncJobSortFields contains allowed sort fields for marketplace sync jobs
var SyncJobSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"job_type":    true,
	"status":      true,
	"started_at":  true,
	"finished_at": true,
}

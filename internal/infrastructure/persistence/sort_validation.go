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

// withCommon returns the whitelist extended by the base entity columns
func withCommon(fields ...string) map[string]bool {
	m := map[string]bool{
		"id":         true,
		"created_at": true,
		"updated_at": true,
	}
	for _, f := range fields {
		m[f] = true
	}
	return m
}

// CommonSortFields contains fields common to every entity
var CommonSortFields = withCommon()

// CustomerSortFields contains allowed sort fields for customers
var CustomerSortFields = withCommon("name", "company", "email", "industry", "country", "status", "type", "source", "annual_revenue")

// ContactSortFields contains allowed sort fields for contacts
var ContactSortFields = withCommon("first_name", "last_name", "email", "job_title", "status", "is_primary")

// OpportunitySortFields contains allowed sort fields for opportunities
var OpportunitySortFields = withCommon("name", "stage", "amount", "probability", "expected_close_date", "actual_close_date")

// QuoteSortFields contains allowed sort fields for quotes
var QuoteSortFields = withCommon("quote_number", "title", "status", "valid_until", "total", "sent_at")

// TaskSortFields contains allowed sort fields for tasks
var TaskSortFields = withCommon("title", "status", "priority", "due_date", "completed_at")

// NoteSortFields contains allowed sort fields for notes
var NoteSortFields = withCommon("title", "entity_type")

// ActivitySortFields contains allowed sort fields for activities
var ActivitySortFields = withCommon("type", "subject", "occurred_at", "duration_minutes", "outcome")

// CampaignSortFields contains allowed sort fields for campaigns
var CampaignSortFields = withCommon("name", "type", "status", "start_date", "end_date", "budget", "sent_count", "conversion_count")

// RecipientSortFields contains allowed sort fields for campaign recipients
var RecipientSortFields = withCommon("email", "status", "sent_at", "opened_at", "clicked_at", "converted_at")

// InteractionSortFields contains allowed sort fields for campaign interactions
var InteractionSortFields = map[string]bool{"id": true, "type": true, "occurred_at": true, "value": true}

// WorkflowSortFields contains allowed sort fields for workflows
var WorkflowSortFields = withCommon("name", "entity_type", "trigger_type", "priority", "is_active", "last_run_at", "run_count")

// ExecutionSortFields contains allowed sort fields for workflow executions
var ExecutionSortFields = map[string]bool{"id": true, "status": true, "started_at": true, "duration_ms": true}

// DeploymentSortFields contains allowed sort fields for deployments
var DeploymentSortFields = withCommon("name", "provider", "region", "environment", "status", "last_deployed_at")

// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models and JSON column helpers
// - crm.go: Customers, contacts, opportunities, quotes, tasks, notes, activities
// - marketing.go: Campaigns, recipients and interactions
// - automation.go: Workflows and their executions
// - platform.go: Deployments and system settings
package models

// All returns every persistence model, in dependency order.
// The SQL migrations are authoritative; this list drives AutoMigrate for
// SQLite development databases and integration tests.
func All() []any {
	return []any{
		&CustomerModel{},
		&ContactModel{},
		&OpportunityModel{},
		&QuoteModel{},
		&QuoteItemModel{},
		&TaskModel{},
		&NoteModel{},
		&ActivityModel{},
		&CampaignModel{},
		&CampaignRecipientModel{},
		&CampaignInteractionModel{},
		&WorkflowModel{},
		&WorkflowExecutionModel{},
		&DeploymentModel{},
		&SystemSettingModel{},
	}
}

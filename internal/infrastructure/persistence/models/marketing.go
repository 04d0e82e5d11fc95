package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/shopspring/decimal"
)

// CampaignModel is the persistence model for the Campaign aggregate.
// Target criteria are stored as a JSON document.
type CampaignModel struct {
	TenantAggregateModel
	Name               string                   `gorm:"type:varchar(200);not null"`
	Description        string                   `gorm:"type:text"`
	Type               marketing.CampaignType   `gorm:"type:varchar(20);not null"`
	Status             marketing.CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	StartDate          *time.Time               `gorm:"index"`
	EndDate            *time.Time               `gorm:"index"`
	Budget             decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	ActualCost         decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	ExpectedRevenue    decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	TargetCriteriaJSON string                   `gorm:"column:target_criteria;type:jsonb;default:'{}'"`
	SentCount          int                      `gorm:"not null;default:0"`
	OpenCount          int                      `gorm:"not null;default:0"`
	ClickCount         int                      `gorm:"not null;default:0"`
	ConversionCount    int                      `gorm:"not null;default:0"`
	ConversionValue    decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	LaunchedAt         *time.Time
	CompletedAt        *time.Time
}

// TableName returns the table name for GORM
func (CampaignModel) TableName() string {
	return "campaigns"
}

// ToDomain converts the persistence model to a domain Campaign.
func (m *CampaignModel) ToDomain() *marketing.Campaign {
	c := &marketing.Campaign{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Description:         m.Description,
		Type:                m.Type,
		Status:              m.Status,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		Budget:              m.Budget,
		ActualCost:          m.ActualCost,
		ExpectedRevenue:     m.ExpectedRevenue,
		SentCount:           m.SentCount,
		OpenCount:           m.OpenCount,
		ClickCount:          m.ClickCount,
		ConversionCount:     m.ConversionCount,
		ConversionValue:     m.ConversionValue,
		LaunchedAt:          m.LaunchedAt,
		CompletedAt:         m.CompletedAt,
	}
	decodeJSON(m.TargetCriteriaJSON, "target_criteria", m.ID, &c.TargetCriteria)
	return c
}

// FromDomain populates the persistence model from a domain Campaign.
func (m *CampaignModel) FromDomain(c *marketing.Campaign) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.Name = c.Name
	m.Description = c.Description
	m.Type = c.Type
	m.Status = c.Status
	m.StartDate = c.StartDate
	m.EndDate = c.EndDate
	m.Budget = c.Budget
	m.ActualCost = c.ActualCost
	m.ExpectedRevenue = c.ExpectedRevenue
	m.TargetCriteriaJSON = encodeJSON(c.TargetCriteria, "{}")
	m.SentCount = c.SentCount
	m.OpenCount = c.OpenCount
	m.ClickCount = c.ClickCount
	m.ConversionCount = c.ConversionCount
	m.ConversionValue = c.ConversionValue
	m.LaunchedAt = c.LaunchedAt
	m.CompletedAt = c.CompletedAt
}

// CampaignModelFromDomain creates a new persistence model from a domain Campaign.
func CampaignModelFromDomain(c *marketing.Campaign) *CampaignModel {
	m := &CampaignModel{}
	m.FromDomain(c)
	return m
}

// CampaignRecipientModel is the persistence model for a campaign recipient.
// A customer appears at most once per campaign.
type CampaignRecipientModel struct {
	ID          uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID                 `gorm:"type:uuid;not null;index"`
	CampaignID  uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_recipient_campaign_customer,priority:1"`
	CustomerID  uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_recipient_campaign_customer,priority:2"`
	Email       string                    `gorm:"type:varchar(200)"`
	Status      marketing.RecipientStatus `gorm:"type:varchar(20);not null;default:'sent'"`
	SentAt      time.Time                 `gorm:"not null"`
	OpenedAt    *time.Time
	ClickedAt   *time.Time
	ConvertedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CampaignRecipientModel) TableName() string {
	return "campaign_recipients"
}

// ToDomain converts the persistence model to a domain Recipient.
func (m *CampaignRecipientModel) ToDomain() *marketing.Recipient {
	return &marketing.Recipient{
		ID:          m.ID,
		TenantID:    m.TenantID,
		CampaignID:  m.CampaignID,
		CustomerID:  m.CustomerID,
		Email:       m.Email,
		Status:      m.Status,
		SentAt:      m.SentAt,
		OpenedAt:    m.OpenedAt,
		ClickedAt:   m.ClickedAt,
		ConvertedAt: m.ConvertedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// CampaignRecipientModelFromDomain creates a new persistence model from a domain Recipient.
func CampaignRecipientModelFromDomain(r *marketing.Recipient) *CampaignRecipientModel {
	return &CampaignRecipientModel{
		ID:          r.ID,
		TenantID:    r.TenantID,
		CampaignID:  r.CampaignID,
		CustomerID:  r.CustomerID,
		Email:       r.Email,
		Status:      r.Status,
		SentAt:      r.SentAt,
		OpenedAt:    r.OpenedAt,
		ClickedAt:   r.ClickedAt,
		ConvertedAt: r.ConvertedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// CampaignInteractionModel is the persistence model for a tracked interaction.
// Interactions are append-only.
type CampaignInteractionModel struct {
	ID          uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID                 `gorm:"type:uuid;not null;index"`
	CampaignID  uuid.UUID                 `gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID                 `gorm:"type:uuid;not null;index"`
	CustomerID  uuid.UUID                 `gorm:"type:uuid;not null"`
	Type        marketing.InteractionType `gorm:"type:varchar(20);not null"`
	URL         string                    `gorm:"type:text"`
	Value       decimal.Decimal           `gorm:"type:decimal(18,2);not null;default:0"`
	UserAgent   string                    `gorm:"type:varchar(500)"`
	IPAddress   string                    `gorm:"type:varchar(64)"`
	OccurredAt  time.Time                 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CampaignInteractionModel) TableName() string {
	return "campaign_interactions"
}

// ToDomain converts the persistence model to a domain Interaction.
func (m *CampaignInteractionModel) ToDomain() *marketing.Interaction {
	return &marketing.Interaction{
		ID:          m.ID,
		TenantID:    m.TenantID,
		CampaignID:  m.CampaignID,
		RecipientID: m.RecipientID,
		CustomerID:  m.CustomerID,
		Type:        m.Type,
		URL:         m.URL,
		Value:       m.Value,
		UserAgent:   m.UserAgent,
		IPAddress:   m.IPAddress,
		OccurredAt:  m.OccurredAt,
	}
}

// CampaignInteractionModelFromDomain creates a new persistence model from a domain Interaction.
func CampaignInteractionModelFromDomain(i *marketing.Interaction) *CampaignInteractionModel {
	return &CampaignInteractionModel{
		ID:          i.ID,
		TenantID:    i.TenantID,
		CampaignID:  i.CampaignID,
		RecipientID: i.RecipientID,
		CustomerID:  i.CustomerID,
		Type:        i.Type,
		URL:         i.URL,
		Value:       i.Value,
		UserAgent:   i.UserAgent,
		IPAddress:   i.IPAddress,
		OccurredAt:  i.OccurredAt,
	}
}

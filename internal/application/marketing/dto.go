package marketing

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Campaign DTOs
// ============================================================================

// TargetCriteriaInput selects the audience of a campaign
type TargetCriteriaInput struct {
	Statuses    []string    `json:"statuses" binding:"omitempty,dive,oneof=lead prospect active inactive churned"`
	Types       []string    `json:"types" binding:"omitempty,dive,oneof=individual organization"`
	Industries  []string    `json:"industries" binding:"omitempty,dive,max=100"`
	Countries   []string    `json:"countries" binding:"omitempty,dive,max=100"`
	CustomerIDs []uuid.UUID `json:"customer_ids"`
}

func (in *TargetCriteriaInput) criteria() *marketing.TargetCriteria {
	if in == nil {
		return nil
	}
	return &marketing.TargetCriteria{
		Statuses:    in.Statuses,
		Types:       in.Types,
		Industries:  in.Industries,
		Countries:   in.Countries,
		CustomerIDs: in.CustomerIDs,
	}
}

// CreateCampaignRequest represents a request to create a draft campaign
type CreateCampaignRequest struct {
	Name            string               `json:"name" binding:"required,min=1,max=200"`
	Description     string               `json:"description" binding:"max=5000"`
	Type            string               `json:"type" binding:"required,oneof=email sms social event webinar advertisement"`
	StartDate       *time.Time           `json:"start_date"`
	EndDate         *time.Time           `json:"end_date"`
	Budget          *decimal.Decimal     `json:"budget"`
	ActualCost      *decimal.Decimal     `json:"actual_cost"`
	ExpectedRevenue *decimal.Decimal     `json:"expected_revenue"`
	TargetCriteria  *TargetCriteriaInput `json:"target_criteria"`
	CreatedBy       *uuid.UUID           `json:"-"`
}

func (r CreateCampaignRequest) patch() marketing.CampaignPatch {
	p := marketing.CampaignPatch{
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Budget:          r.Budget,
		ActualCost:      r.ActualCost,
		ExpectedRevenue: r.ExpectedRevenue,
		TargetCriteria:  r.TargetCriteria.criteria(),
	}
	if r.Description != "" {
		p.Description = &r.Description
	}
	return p
}

// UpdateCampaignRequest represents a request to update a campaign.
// Nil fields are left unchanged.
type UpdateCampaignRequest struct {
	Name            *string              `json:"name" binding:"omitempty,min=1,max=200"`
	Description     *string              `json:"description" binding:"omitempty,max=5000"`
	Type            *string              `json:"type" binding:"omitempty,oneof=email sms social event webinar advertisement"`
	StartDate       *time.Time           `json:"start_date"`
	EndDate         *time.Time           `json:"end_date"`
	Budget          *decimal.Decimal     `json:"budget"`
	ActualCost      *decimal.Decimal     `json:"actual_cost"`
	ExpectedRevenue *decimal.Decimal     `json:"expected_revenue"`
	TargetCriteria  *TargetCriteriaInput `json:"target_criteria"`
}

func (r UpdateCampaignRequest) patch() marketing.CampaignPatch {
	p := marketing.CampaignPatch{
		Name:            r.Name,
		Description:     r.Description,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Budget:          r.Budget,
		ActualCost:      r.ActualCost,
		ExpectedRevenue: r.ExpectedRevenue,
		TargetCriteria:  r.TargetCriteria.criteria(),
	}
	if r.Type != nil {
		t := marketing.CampaignType(*r.Type)
		p.Type = &t
	}
	return p
}

// CampaignListFilter represents filter options for campaign list
type CampaignListFilter struct {
	common.ListQuery
	Status string `form:"status" binding:"omitempty,oneof=draft scheduled running paused completed cancelled"`
	Type   string `form:"type" binding:"omitempty,oneof=email sms social event webinar advertisement"`
}

// TargetCriteriaResponse mirrors the stored audience selection
type TargetCriteriaResponse struct {
	Statuses    []string    `json:"statuses,omitempty"`
	Types       []string    `json:"types,omitempty"`
	Industries  []string    `json:"industries,omitempty"`
	Countries   []string    `json:"countries,omitempty"`
	CustomerIDs []uuid.UUID `json:"customer_ids,omitempty"`
}

// CampaignResponse represents a campaign in API responses
type CampaignResponse struct {
	ID              uuid.UUID              `json:"id"`
	TenantID        uuid.UUID              `json:"tenant_id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	StartDate       *time.Time             `json:"start_date,omitempty"`
	EndDate         *time.Time             `json:"end_date,omitempty"`
	Budget          decimal.Decimal        `json:"budget"`
	ActualCost      decimal.Decimal        `json:"actual_cost"`
	ExpectedRevenue decimal.Decimal        `json:"expected_revenue"`
	TargetCriteria  TargetCriteriaResponse `json:"target_criteria"`
	SentCount       int                    `json:"sent_count"`
	OpenCount       int                    `json:"open_count"`
	ClickCount      int                    `json:"click_count"`
	ConversionCount int                    `json:"conversion_count"`
	ConversionValue decimal.Decimal        `json:"conversion_value"`
	LaunchedAt      *time.Time             `json:"launched_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	CreatedBy       *uuid.UUID             `json:"created_by,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Version         int                    `json:"version"`
}

// ToCampaignResponse converts a domain Campaign to CampaignResponse
func ToCampaignResponse(c *marketing.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:              c.ID,
		TenantID:        c.TenantID,
		Name:            c.Name,
		Description:     c.Description,
		Type:            string(c.Type),
		Status:          string(c.Status),
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		Budget:          c.Budget,
		ActualCost:      c.ActualCost,
		ExpectedRevenue: c.ExpectedRevenue,
		TargetCriteria:  TargetCriteriaResponse(c.TargetCriteria),
		SentCount:       c.SentCount,
		OpenCount:       c.OpenCount,
		ClickCount:      c.ClickCount,
		ConversionCount: c.ConversionCount,
		ConversionValue: c.ConversionValue,
		LaunchedAt:      c.LaunchedAt,
		CompletedAt:     c.CompletedAt,
		CreatedBy:       c.CreatedBy,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Version:         c.Version,
	}
}

// ToCampaignResponses converts a slice of campaigns
func ToCampaignResponses(campaigns []marketing.Campaign) []CampaignResponse {
	responses := make([]CampaignResponse, len(campaigns))
	for i := range campaigns {
		responses[i] = ToCampaignResponse(&campaigns[i])
	}
	return responses
}

// ============================================================================
// Recipient and interaction DTOs
// ============================================================================

// RecipientListFilter represents filter options for a campaign's recipients
type RecipientListFilter struct {
	common.ListQuery
	Status string `form:"status" binding:"omitempty,oneof=sent opened clicked converted"`
}

// RecipientResponse represents a campaign recipient
type RecipientResponse struct {
	ID          uuid.UUID  `json:"id"`
	CampaignID  uuid.UUID  `json:"campaign_id"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	Email       string     `json:"email,omitempty"`
	Status      string     `json:"status"`
	SentAt      time.Time  `json:"sent_at"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
}

// ToRecipientResponse converts a domain Recipient
func ToRecipientResponse(r *marketing.Recipient) RecipientResponse {
	return RecipientResponse{
		ID:          r.ID,
		CampaignID:  r.CampaignID,
		CustomerID:  r.CustomerID,
		Email:       r.Email,
		Status:      string(r.Status),
		SentAt:      r.SentAt,
		OpenedAt:    r.OpenedAt,
		ClickedAt:   r.ClickedAt,
		ConvertedAt: r.ConvertedAt,
	}
}

// InteractionListFilter represents filter options for a campaign's interactions
type InteractionListFilter struct {
	common.ListQuery
	Type        string `form:"type" binding:"omitempty,oneof=open click conversion"`
	RecipientID string `form:"recipient_id" binding:"omitempty,uuid"`
}

// InteractionResponse represents a tracked interaction
type InteractionResponse struct {
	ID          uuid.UUID       `json:"id"`
	CampaignID  uuid.UUID       `json:"campaign_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Type        string          `json:"type"`
	URL         string          `json:"url,omitempty"`
	Value       decimal.Decimal `json:"value"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// ToInteractionResponse converts a domain Interaction
func ToInteractionResponse(i *marketing.Interaction) InteractionResponse {
	return InteractionResponse{
		ID:          i.ID,
		CampaignID:  i.CampaignID,
		RecipientID: i.RecipientID,
		CustomerID:  i.CustomerID,
		Type:        string(i.Type),
		URL:         i.URL,
		Value:       i.Value,
		OccurredAt:  i.OccurredAt,
	}
}

// TrackInteractionRequest records an interaction for a recipient of a campaign
type TrackInteractionRequest struct {
	RecipientID uuid.UUID        `json:"recipient_id" binding:"required"`
	Type        string           `json:"type" binding:"required,oneof=open click conversion"`
	URL         string           `json:"url" binding:"omitempty,max=2048"`
	Value       *decimal.Decimal `json:"value"`
	UserAgent   string           `json:"-"`
	IPAddress   string           `json:"-"`
}

// TrackResult is the outcome of a recorded interaction
type TrackResult struct {
	Interaction InteractionResponse `json:"interaction"`
	FirstOfKind bool                `json:"first_of_kind"`
}

// ExecuteCampaignResponse reports the launched campaign and its audience size
type ExecuteCampaignResponse struct {
	Campaign       CampaignResponse `json:"campaign"`
	RecipientCount int              `json:"recipient_count"`
}

// AnalyticsResponse holds the derived campaign performance figures
type AnalyticsResponse struct {
	CampaignID        uuid.UUID       `json:"campaign_id"`
	SentCount         int             `json:"sent_count"`
	OpenCount         int             `json:"open_count"`
	ClickCount        int             `json:"click_count"`
	ConversionCount   int             `json:"conversion_count"`
	ConversionValue   decimal.Decimal `json:"conversion_value"`
	OpenRate          decimal.Decimal `json:"open_rate"`
	ClickRate         decimal.Decimal `json:"click_rate"`
	ConversionRate    decimal.Decimal `json:"conversion_rate"`
	ClickToOpenRate   decimal.Decimal `json:"click_to_open_rate"`
	CostPerConversion decimal.Decimal `json:"cost_per_conversion"`
	ROI               decimal.Decimal `json:"roi"`
	BudgetUtilisation decimal.Decimal `json:"budget_utilisation"`
}

// ToAnalyticsResponse converts computed analytics
func ToAnalyticsResponse(campaignID uuid.UUID, a marketing.Analytics) AnalyticsResponse {
	return AnalyticsResponse{
		CampaignID:        campaignID,
		SentCount:         a.SentCount,
		OpenCount:         a.OpenCount,
		ClickCount:        a.ClickCount,
		ConversionCount:   a.ConversionCount,
		ConversionValue:   a.ConversionValue,
		OpenRate:          a.OpenRate,
		ClickRate:         a.ClickRate,
		ConversionRate:    a.ConversionRate,
		ClickToOpenRate:   a.ClickToOpenRate,
		CostPerConversion: a.CostPerConversion,
		ROI:               a.ROI,
		BudgetUtilisation: a.BudgetUtilisation,
	}
}

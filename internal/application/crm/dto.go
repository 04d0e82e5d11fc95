package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Customer DTOs
// ============================================================================

// CreateCustomerRequest represents a request to create a new customer
type CreateCustomerRequest struct {
	Name          string           `json:"name" binding:"required,min=1,max=200"`
	Company       string           `json:"company" binding:"max=200"`
	Email         string           `json:"email" binding:"omitempty,email,max=200"`
	Phone         string           `json:"phone" binding:"omitempty,crm_phone"`
	Website       string           `json:"website" binding:"max=255"`
	Industry      string           `json:"industry" binding:"max=100"`
	Address       string           `json:"address" binding:"max=500"`
	City          string           `json:"city" binding:"max=100"`
	State         string           `json:"state" binding:"max=100"`
	PostalCode    string           `json:"postal_code" binding:"max=20"`
	Country       string           `json:"country" binding:"max=100"`
	Type          string           `json:"type" binding:"omitempty,oneof=individual organization"`
	Source        string           `json:"source" binding:"omitempty,oneof=website referral campaign cold_call event partner other"`
	OwnerID       *uuid.UUID       `json:"owner_id"`
	AnnualRevenue *decimal.Decimal `json:"annual_revenue"`
	Notes         string           `json:"notes" binding:"max=5000"`
	Tags          []string         `json:"tags" binding:"omitempty,max=50,dive,max=50"`
	CreatedBy     *uuid.UUID       `json:"-"`
}

// UpdateCustomerRequest represents a request to update a customer.
// Nil fields are left unchanged; a non-nil Tags replaces the tag list.
type UpdateCustomerRequest struct {
	Name          *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Company       *string          `json:"company" binding:"omitempty,max=200"`
	Email         *string          `json:"email" binding:"omitempty,max=200"`
	Phone         *string          `json:"phone" binding:"omitempty,max=50"`
	Website       *string          `json:"website" binding:"omitempty,max=255"`
	Industry      *string          `json:"industry" binding:"omitempty,max=100"`
	Address       *string          `json:"address" binding:"omitempty,max=500"`
	City          *string          `json:"city" binding:"omitempty,max=100"`
	State         *string          `json:"state" binding:"omitempty,max=100"`
	PostalCode    *string          `json:"postal_code" binding:"omitempty,max=20"`
	Country       *string          `json:"country" binding:"omitempty,max=100"`
	Type          *string          `json:"type" binding:"omitempty,oneof=individual organization"`
	Source        *string          `json:"source" binding:"omitempty,oneof=website referral campaign cold_call event partner other"`
	OwnerID       *uuid.UUID       `json:"owner_id"`
	ClearOwner    bool             `json:"clear_owner"`
	AnnualRevenue *decimal.Decimal `json:"annual_revenue"`
	Notes         *string          `json:"notes" binding:"omitempty,max=5000"`
	Tags          []string         `json:"tags" binding:"omitempty,max=50,dive,max=50"`
}

// ChangeCustomerStatusRequest represents a lifecycle transition
type ChangeCustomerStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=lead prospect active inactive churned"`
}

// CustomerListFilter represents filter options for customer list
type CustomerListFilter struct {
	common.ListQuery
	Status   string `form:"status" binding:"omitempty,oneof=lead prospect active inactive churned"`
	Type     string `form:"type" binding:"omitempty,oneof=individual organization"`
	Source   string `form:"source" binding:"omitempty,oneof=website referral campaign cold_call event partner other"`
	Industry string `form:"industry" binding:"omitempty,max=100"`
	Country  string `form:"country" binding:"omitempty,max=100"`
	OwnerID  string `form:"owner_id" binding:"omitempty,uuid"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	Name          string          `json:"name"`
	Company       string          `json:"company,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Website       string          `json:"website,omitempty"`
	Industry      string          `json:"industry,omitempty"`
	Address       string          `json:"address,omitempty"`
	City          string          `json:"city,omitempty"`
	State         string          `json:"state,omitempty"`
	PostalCode    string          `json:"postal_code,omitempty"`
	Country       string          `json:"country,omitempty"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Source        string          `json:"source"`
	OwnerID       *uuid.UUID      `json:"owner_id,omitempty"`
	AnnualRevenue decimal.Decimal `json:"annual_revenue"`
	Notes         string          `json:"notes,omitempty"`
	Tags          []string        `json:"tags"`
	CreatedBy     *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// CustomerStatsResponse counts customers per lifecycle status
type CustomerStatsResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// ToCustomerResponse converts a domain Customer to CustomerResponse
func ToCustomerResponse(c *crm.Customer) CustomerResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return CustomerResponse{
		ID:            c.ID,
		TenantID:      c.TenantID,
		Name:          c.Name,
		Company:       c.Company,
		Email:         c.Email,
		Phone:         c.Phone,
		Website:       c.Website,
		Industry:      c.Industry,
		Address:       c.Address,
		City:          c.City,
		State:         c.State,
		PostalCode:    c.PostalCode,
		Country:       c.Country,
		Type:          string(c.Type),
		Status:        string(c.Status),
		Source:        string(c.Source),
		OwnerID:       c.OwnerID,
		AnnualRevenue: c.AnnualRevenue,
		Notes:         c.Notes,
		Tags:          tags,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		Version:       c.Version,
	}
}

// ToCustomerResponses converts a slice of domain Customers
func ToCustomerResponses(customers []crm.Customer) []CustomerResponse {
	responses := make([]CustomerResponse, len(customers))
	for i := range customers {
		responses[i] = ToCustomerResponse(&customers[i])
	}
	return responses
}

func (r CreateCustomerRequest) patch() crm.CustomerPatch {
	p := crm.CustomerPatch{
		Company:       optional(r.Company),
		Email:         optional(r.Email),
		Phone:         optional(r.Phone),
		Website:       optional(r.Website),
		Industry:      optional(r.Industry),
		Address:       optional(r.Address),
		City:          optional(r.City),
		State:         optional(r.State),
		PostalCode:    optional(r.PostalCode),
		Country:       optional(r.Country),
		OwnerID:       r.OwnerID,
		AnnualRevenue: r.AnnualRevenue,
		Notes:         optional(r.Notes),
		Tags:          r.Tags,
	}
	if r.Source != "" {
		source := crm.CustomerSource(r.Source)
		p.Source = &source
	}
	return p
}

func (r UpdateCustomerRequest) patch() crm.CustomerPatch {
	p := crm.CustomerPatch{
		Name:          r.Name,
		Company:       r.Company,
		Email:         r.Email,
		Phone:         r.Phone,
		Website:       r.Website,
		Industry:      r.Industry,
		Address:       r.Address,
		City:          r.City,
		State:         r.State,
		PostalCode:    r.PostalCode,
		Country:       r.Country,
		OwnerID:       r.OwnerID,
		ClearOwner:    r.ClearOwner,
		AnnualRevenue: r.AnnualRevenue,
		Notes:         r.Notes,
		Tags:          r.Tags,
	}
	if r.Type != nil {
		t := crm.CustomerType(*r.Type)
		p.Type = &t
	}
	if r.Source != nil {
		s := crm.CustomerSource(*r.Source)
		p.Source = &s
	}
	return p
}

// ============================================================================
// Contact DTOs
// ============================================================================

// CreateContactRequest represents a request to create a contact
type CreateContactRequest struct {
	CustomerID uuid.UUID  `json:"customer_id" binding:"required"`
	FirstName  string     `json:"first_name" binding:"required,min=1,max=100"`
	LastName   string     `json:"last_name" binding:"max=100"`
	Email      string     `json:"email" binding:"omitempty,email,max=200"`
	Phone      string     `json:"phone" binding:"omitempty,crm_phone"`
	Mobile     string     `json:"mobile" binding:"omitempty,crm_phone"`
	JobTitle   string     `json:"job_title" binding:"max=100"`
	Department string     `json:"department" binding:"max=100"`
	IsPrimary  bool       `json:"is_primary"`
	Notes      string     `json:"notes" binding:"max=5000"`
	CreatedBy  *uuid.UUID `json:"-"`
}

// UpdateContactRequest represents a request to update a contact
type UpdateContactRequest struct {
	FirstName  *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name" binding:"omitempty,max=100"`
	Email      *string `json:"email" binding:"omitempty,max=200"`
	Phone      *string `json:"phone" binding:"omitempty,max=50"`
	Mobile     *string `json:"mobile" binding:"omitempty,max=50"`
	JobTitle   *string `json:"job_title" binding:"omitempty,max=100"`
	Department *string `json:"department" binding:"omitempty,max=100"`
	Notes      *string `json:"notes" binding:"omitempty,max=5000"`
}

// ContactListFilter represents filter options for contact list
type ContactListFilter struct {
	common.ListQuery
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=active inactive"`
	IsPrimary  *bool  `form:"is_primary"`
}

// ContactResponse represents a contact in API responses
type ContactResponse struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name,omitempty"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Mobile     string     `json:"mobile,omitempty"`
	JobTitle   string     `json:"job_title,omitempty"`
	Department string     `json:"department,omitempty"`
	IsPrimary  bool       `json:"is_primary"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes,omitempty"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Version    int        `json:"version"`
}

// ToContactResponse converts a domain Contact to ContactResponse
func ToContactResponse(c *crm.Contact) ContactResponse {
	return ContactResponse{
		ID:         c.ID,
		TenantID:   c.TenantID,
		CustomerID: c.CustomerID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		FullName:   c.FullName(),
		Email:      c.Email,
		Phone:      c.Phone,
		Mobile:     c.Mobile,
		JobTitle:   c.JobTitle,
		Department: c.Department,
		IsPrimary:  c.IsPrimary,
		Status:     string(c.Status),
		Notes:      c.Notes,
		CreatedBy:  c.CreatedBy,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		Version:    c.Version,
	}
}

// ToContactResponses converts a slice of domain Contacts
func ToContactResponses(contacts []crm.Contact) []ContactResponse {
	responses := make([]ContactResponse, len(contacts))
	for i := range contacts {
		responses[i] = ToContactResponse(&contacts[i])
	}
	return responses
}

// ============================================================================
// Opportunity DTOs
// ============================================================================

// CreateOpportunityRequest represents a request to create an opportunity
type CreateOpportunityRequest struct {
	CustomerID        uuid.UUID       `json:"customer_id" binding:"required"`
	ContactID         *uuid.UUID      `json:"contact_id"`
	Name              string          `json:"name" binding:"required,min=1,max=200"`
	Description       string          `json:"description" binding:"max=5000"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" binding:"omitempty,crm_currency"`
	Probability       *int            `json:"probability" binding:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date"`
	OwnerID           *uuid.UUID      `json:"owner_id"`
	CreatedBy         *uuid.UUID      `json:"-"`
}

// UpdateOpportunityRequest represents a request to update an opportunity
type UpdateOpportunityRequest struct {
	Name              *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Description       *string          `json:"description" binding:"omitempty,max=5000"`
	ContactID         *uuid.UUID       `json:"contact_id"`
	ClearContact      bool             `json:"clear_contact"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          *string          `json:"currency" binding:"omitempty,crm_currency"`
	Probability       *int             `json:"probability" binding:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	OwnerID           *uuid.UUID       `json:"owner_id"`
	ClearOwner        bool             `json:"clear_owner"`
}

// MoveStageRequest moves an open opportunity to another stage.
// Moving to closed_won wins it; moving to closed_lost needs a reason.
type MoveStageRequest struct {
	Stage       string `json:"stage" binding:"required,oneof=prospecting qualification proposal negotiation closed_won closed_lost"`
	Probability *int   `json:"probability" binding:"omitempty,min=0,max=100"`
	Reason      string `json:"reason" binding:"max=500"`
}

// LoseOpportunityRequest closes an opportunity as lost
type LoseOpportunityRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// OpportunityListFilter represents filter options for opportunity list
type OpportunityListFilter struct {
	common.ListQuery
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	ContactID  string `form:"contact_id" binding:"omitempty,uuid"`
	Stage      string `form:"stage" binding:"omitempty,oneof=prospecting qualification proposal negotiation closed_won closed_lost"`
	OwnerID    string `form:"owner_id" binding:"omitempty,uuid"`
	IsOpen     *bool  `form:"is_open"`
}

// PipelineFilter narrows the pipeline summary
type PipelineFilter struct {
	OwnerID    string `form:"owner_id" binding:"omitempty,uuid"`
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
}

// OpportunityResponse represents an opportunity in API responses
type OpportunityResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	ContactID         *uuid.UUID      `json:"contact_id,omitempty"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Stage             string          `json:"stage"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Probability       int             `json:"probability"`
	WeightedAmount    decimal.Decimal `json:"weighted_amount"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date,omitempty"`
	ActualCloseDate   *time.Time      `json:"actual_close_date,omitempty"`
	OwnerID           *uuid.UUID      `json:"owner_id,omitempty"`
	LossReason        string          `json:"loss_reason,omitempty"`
	CreatedBy         *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// StageSummaryResponse aggregates one pipeline stage
type StageSummaryResponse struct {
	Stage          string          `json:"stage"`
	Count          int64           `json:"count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	WeightedAmount decimal.Decimal `json:"weighted_amount"`
}

// PipelineResponse is the per-stage pipeline summary
type PipelineResponse struct {
	Stages         []StageSummaryResponse `json:"stages"`
	OpenCount      int64                  `json:"open_count"`
	OpenAmount     decimal.Decimal        `json:"open_amount"`
	WeightedAmount decimal.Decimal        `json:"weighted_amount"`
	WonAmount      decimal.Decimal        `json:"won_amount"`
	LostAmount     decimal.Decimal        `json:"lost_amount"`
}

// ToOpportunityResponse converts a domain Opportunity to OpportunityResponse
func ToOpportunityResponse(o *crm.Opportunity) OpportunityResponse {
	return OpportunityResponse{
		ID:                o.ID,
		TenantID:          o.TenantID,
		CustomerID:        o.CustomerID,
		ContactID:         o.ContactID,
		Name:              o.Name,
		Description:       o.Description,
		Stage:             string(o.Stage),
		Amount:            o.Amount,
		Currency:          o.Currency,
		Probability:       o.Probability,
		WeightedAmount:    o.WeightedAmount(),
		ExpectedCloseDate: o.ExpectedCloseDate,
		ActualCloseDate:   o.ActualCloseDate,
		OwnerID:           o.OwnerID,
		LossReason:        o.LossReason,
		CreatedBy:         o.CreatedBy,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		Version:           o.Version,
	}
}

// ToOpportunityResponses converts a slice of domain Opportunities
func ToOpportunityResponses(opps []crm.Opportunity) []OpportunityResponse {
	responses := make([]OpportunityResponse, len(opps))
	for i := range opps {
		responses[i] = ToOpportunityResponse(&opps[i])
	}
	return responses
}

// ToPipelineResponse converts a domain Pipeline
func ToPipelineResponse(p crm.Pipeline) PipelineResponse {
	stages := make([]StageSummaryResponse, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = StageSummaryResponse{
			Stage:          string(s.Stage),
			Count:          s.Count,
			TotalAmount:    s.TotalAmount,
			WeightedAmount: s.WeightedAmount,
		}
	}
	return PipelineResponse{
		Stages:         stages,
		OpenCount:      p.OpenCount,
		OpenAmount:     p.OpenAmount,
		WeightedAmount: p.WeightedAmount,
		WonAmount:      p.WonAmount,
		LostAmount:     p.LostAmount,
	}
}

// ============================================================================
// Quote DTOs
// ============================================================================

// QuoteItemInput represents a quote line in create and update requests
type QuoteItemInput struct {
	ProductName     string          `json:"product_name" binding:"required,min=1,max=200"`
	Description     string          `json:"description" binding:"max=1000"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// CreateQuoteRequest represents a request to create a draft quote
type CreateQuoteRequest struct {
	CustomerID    uuid.UUID        `json:"customer_id" binding:"required"`
	OpportunityID *uuid.UUID       `json:"opportunity_id"`
	Title         string           `json:"title" binding:"max=200"`
	ValidUntil    *time.Time       `json:"valid_until"`
	Currency      string           `json:"currency" binding:"omitempty,crm_currency"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	Terms         string           `json:"terms" binding:"max=10000"`
	Notes         string           `json:"notes" binding:"max=5000"`
	Items         []QuoteItemInput `json:"items" binding:"omitempty,max=200,dive"`
	CreatedBy     *uuid.UUID       `json:"-"`
}

// UpdateQuoteRequest represents a request to update a draft quote.
// A non-nil Items replaces every line.
type UpdateQuoteRequest struct {
	Title            *string          `json:"title" binding:"omitempty,max=200"`
	OpportunityID    *uuid.UUID       `json:"opportunity_id"`
	ClearOpportunity bool             `json:"clear_opportunity"`
	ValidUntil       *time.Time       `json:"valid_until"`
	Currency         *string          `json:"currency" binding:"omitempty,crm_currency"`
	TaxRate          *decimal.Decimal `json:"tax_rate"`
	Terms            *string          `json:"terms" binding:"omitempty,max=10000"`
	Notes            *string          `json:"notes" binding:"omitempty,max=5000"`
	Items            []QuoteItemInput `json:"items" binding:"omitempty,max=200,dive"`
}

// RejectQuoteRequest rejects a sent quote
type RejectQuoteRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// QuoteListFilter represents filter options for quote list
type QuoteListFilter struct {
	common.ListQuery
	CustomerID    string `form:"customer_id" binding:"omitempty,uuid"`
	OpportunityID string `form:"opportunity_id" binding:"omitempty,uuid"`
	Status        string `form:"status" binding:"omitempty,oneof=draft sent accepted rejected expired"`
}

// QuoteItemResponse represents a quote line in API responses
type QuoteItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	ProductName     string          `json:"product_name"`
	Description     string          `json:"description,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineTotal       decimal.Decimal `json:"line_total"`
	SortOrder       int             `json:"sort_order"`
}

// QuoteResponse represents a quote in API responses
type QuoteResponse struct {
	ID              uuid.UUID           `json:"id"`
	TenantID        uuid.UUID           `json:"tenant_id"`
	QuoteNumber     string              `json:"quote_number"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	OpportunityID   *uuid.UUID          `json:"opportunity_id,omitempty"`
	Title           string              `json:"title,omitempty"`
	Status          string              `json:"status"`
	ValidUntil      *time.Time          `json:"valid_until,omitempty"`
	Currency        string              `json:"currency"`
	Items           []QuoteItemResponse `json:"items"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DiscountAmount  decimal.Decimal     `json:"discount_amount"`
	TaxRate         decimal.Decimal     `json:"tax_rate"`
	TaxAmount       decimal.Decimal     `json:"tax_amount"`
	Total           decimal.Decimal     `json:"total"`
	Terms           string              `json:"terms,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	SentAt          *time.Time          `json:"sent_at,omitempty"`
	AcceptedAt      *time.Time          `json:"accepted_at,omitempty"`
	RejectedAt      *time.Time          `json:"rejected_at,omitempty"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	CreatedBy       *uuid.UUID          `json:"created_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Version         int                 `json:"version"`
}

// ToQuoteResponse converts a domain Quote to QuoteResponse
func ToQuoteResponse(q *crm.Quote) QuoteResponse {
	items := make([]QuoteItemResponse, len(q.Items))
	for i, item := range q.Items {
		items[i] = QuoteItemResponse{
			ID:              item.ID,
			ProductName:     item.ProductName,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			LineTotal:       item.LineTotal,
			SortOrder:       item.SortOrder,
		}
	}
	return QuoteResponse{
		ID:              q.ID,
		TenantID:        q.TenantID,
		QuoteNumber:     q.QuoteNumber,
		CustomerID:      q.CustomerID,
		OpportunityID:   q.OpportunityID,
		Title:           q.Title,
		Status:          string(q.Status),
		ValidUntil:      q.ValidUntil,
		Currency:        q.Currency,
		Items:           items,
		Subtotal:        q.Subtotal,
		DiscountAmount:  q.DiscountAmount,
		TaxRate:         q.TaxRate,
		TaxAmount:       q.TaxAmount,
		Total:           q.Total,
		Terms:           q.Terms,
		Notes:           q.Notes,
		SentAt:          q.SentAt,
		AcceptedAt:      q.AcceptedAt,
		RejectedAt:      q.RejectedAt,
		RejectionReason: q.RejectionReason,
		CreatedBy:       q.CreatedBy,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
		Version:         q.Version,
	}
}

// ToQuoteResponses converts a slice of domain Quotes
func ToQuoteResponses(quotes []crm.Quote) []QuoteResponse {
	responses := make([]QuoteResponse, len(quotes))
	for i := range quotes {
		responses[i] = ToQuoteResponse(&quotes[i])
	}
	return responses
}

func buildQuoteItems(inputs []QuoteItemInput) ([]crm.QuoteItem, error) {
	if inputs == nil {
		return nil, nil
	}
	items := make([]crm.QuoteItem, 0, len(inputs))
	for _, in := range inputs {
		item, err := crm.NewQuoteItem(in.ProductName, in.Description, in.Quantity, in.UnitPrice, in.DiscountPercent)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ============================================================================
// Task DTOs
// ============================================================================

// CreateTaskRequest represents a request to create a task
type CreateTaskRequest struct {
	Title         string     `json:"title" binding:"required,min=1,max=200"`
	Description   string     `json:"description" binding:"max=5000"`
	Priority      string     `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	DueDate       *time.Time `json:"due_date"`
	AssignedTo    *uuid.UUID `json:"assigned_to"`
	CustomerID    *uuid.UUID `json:"customer_id"`
	ContactID     *uuid.UUID `json:"contact_id"`
	OpportunityID *uuid.UUID `json:"opportunity_id"`
	CreatedBy     *uuid.UUID `json:"-"`
}

// UpdateTaskRequest represents a request to update a task
type UpdateTaskRequest struct {
	Title         *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description   *string    `json:"description" binding:"omitempty,max=5000"`
	Priority      *string    `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	DueDate       *time.Time `json:"due_date"`
	ClearDueDate  bool       `json:"clear_due_date"`
	AssignedTo    *uuid.UUID `json:"assigned_to"`
	CustomerID    *uuid.UUID `json:"customer_id"`
	ContactID     *uuid.UUID `json:"contact_id"`
	OpportunityID *uuid.UUID `json:"opportunity_id"`
}

// TaskListFilter represents filter options for task list
type TaskListFilter struct {
	common.ListQuery
	Status        string `form:"status" binding:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority      string `form:"priority" binding:"omitempty,oneof=low medium high urgent"`
	AssignedTo    string `form:"assigned_to" binding:"omitempty,uuid"`
	CustomerID    string `form:"customer_id" binding:"omitempty,uuid"`
	OpportunityID string `form:"opportunity_id" binding:"omitempty,uuid"`
	IsOverdue     *bool  `form:"is_overdue"`
}

// TaskResponse represents a task in API responses
type TaskResponse struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	AssignedTo    *uuid.UUID `json:"assigned_to,omitempty"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	ContactID     *uuid.UUID `json:"contact_id,omitempty"`
	OpportunityID *uuid.UUID `json:"opportunity_id,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	IsOverdue     bool       `json:"is_overdue"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int        `json:"version"`
}

// ToTaskResponse converts a domain Task to TaskResponse.
// Overdue is computed against now so reads are accurate between sweeps.
func ToTaskResponse(t *crm.Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		TenantID:      t.TenantID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		DueDate:       t.DueDate,
		AssignedTo:    t.AssignedTo,
		CustomerID:    t.CustomerID,
		ContactID:     t.ContactID,
		OpportunityID: t.OpportunityID,
		CompletedAt:   t.CompletedAt,
		IsOverdue:     t.OverdueAt(now),
		CreatedBy:     t.CreatedBy,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Version:       t.Version,
	}
}

// ToTaskResponses converts a slice of domain Tasks
func ToTaskResponses(tasks []crm.Task, now time.Time) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i := range tasks {
		responses[i] = ToTaskResponse(&tasks[i], now)
	}
	return responses
}

// ============================================================================
// Note DTOs
// ============================================================================

// CreateNoteRequest represents a request to attach a note
type CreateNoteRequest struct {
	EntityType string     `json:"entity_type" binding:"required,oneof=customer contact opportunity quote task campaign deployment"`
	EntityID   uuid.UUID  `json:"entity_id" binding:"required"`
	Title      string     `json:"title" binding:"max=200"`
	Content    string     `json:"content" binding:"required,min=1,max=10000"`
	IsPinned   bool       `json:"is_pinned"`
	AuthorID   *uuid.UUID `json:"-"`
}

// UpdateNoteRequest represents a request to edit a note
type UpdateNoteRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=200"`
	Content *string `json:"content" binding:"omitempty,min=1,max=10000"`
}

// NoteListFilter represents filter options for note list
type NoteListFilter struct {
	common.ListQuery
	EntityType string `form:"entity_type" binding:"omitempty,oneof=customer contact opportunity quote task campaign deployment"`
	EntityID   string `form:"entity_id" binding:"omitempty,uuid"`
	IsPinned   *bool  `form:"is_pinned"`
}

// NoteResponse represents a note in API responses
type NoteResponse struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	EntityType string     `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
	Title      string     `json:"title,omitempty"`
	Content    string     `json:"content"`
	IsPinned   bool       `json:"is_pinned"`
	AuthorID   *uuid.UUID `json:"author_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Version    int        `json:"version"`
}

// ToNoteResponse converts a domain Note to NoteResponse
func ToNoteResponse(n *crm.Note) NoteResponse {
	return NoteResponse{
		ID:         n.ID,
		TenantID:   n.TenantID,
		EntityType: string(n.EntityType),
		EntityID:   n.EntityID,
		Title:      n.Title,
		Content:    n.Content,
		IsPinned:   n.IsPinned,
		AuthorID:   n.AuthorID,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
		Version:    n.Version,
	}
}

// ToNoteResponses converts a slice of domain Notes
func ToNoteResponses(notes []crm.Note) []NoteResponse {
	responses := make([]NoteResponse, len(notes))
	for i := range notes {
		responses[i] = ToNoteResponse(&notes[i])
	}
	return responses
}

// ============================================================================
// Activity DTOs
// ============================================================================

// CreateActivityRequest represents a request to log an activity
type CreateActivityRequest struct {
	Type            string     `json:"type" binding:"required,oneof=call email meeting note task demo other"`
	Subject         string     `json:"subject" binding:"required,min=1,max=200"`
	Description     string     `json:"description" binding:"max=5000"`
	CustomerID      *uuid.UUID `json:"customer_id"`
	ContactID       *uuid.UUID `json:"contact_id"`
	OpportunityID   *uuid.UUID `json:"opportunity_id"`
	OccurredAt      *time.Time `json:"occurred_at"`
	DurationMinutes int        `json:"duration_minutes" binding:"min=0"`
	Outcome         string     `json:"outcome" binding:"omitempty,oneof=successful unsuccessful no_answer follow_up_required"`
	PerformedBy     *uuid.UUID `json:"performed_by"`
	CreatedBy       *uuid.UUID `json:"-"`
}

// UpdateActivityRequest represents a request to update an activity
type UpdateActivityRequest struct {
	Type            *string    `json:"type" binding:"omitempty,oneof=call email meeting note task demo other"`
	Subject         *string    `json:"subject" binding:"omitempty,min=1,max=200"`
	Description     *string    `json:"description" binding:"omitempty,max=5000"`
	CustomerID      *uuid.UUID `json:"customer_id"`
	ContactID       *uuid.UUID `json:"contact_id"`
	OpportunityID   *uuid.UUID `json:"opportunity_id"`
	OccurredAt      *time.Time `json:"occurred_at"`
	DurationMinutes *int       `json:"duration_minutes" binding:"omitempty,min=0"`
	Outcome         *string    `json:"outcome" binding:"omitempty,oneof=successful unsuccessful no_answer follow_up_required"`
	PerformedBy     *uuid.UUID `json:"performed_by"`
}

// ActivityListFilter represents filter options for activity list
type ActivityListFilter struct {
	common.ListQuery
	Type          string     `form:"type" binding:"omitempty,oneof=call email meeting note task demo other"`
	CustomerID    string     `form:"customer_id" binding:"omitempty,uuid"`
	ContactID     string     `form:"contact_id" binding:"omitempty,uuid"`
	OpportunityID string     `form:"opportunity_id" binding:"omitempty,uuid"`
	From          *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To            *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ActivityResponse represents an activity in API responses
type ActivityResponse struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	Type            string     `json:"type"`
	Subject         string     `json:"subject"`
	Description     string     `json:"description,omitempty"`
	CustomerID      *uuid.UUID `json:"customer_id,omitempty"`
	ContactID       *uuid.UUID `json:"contact_id,omitempty"`
	OpportunityID   *uuid.UUID `json:"opportunity_id,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Outcome         string     `json:"outcome,omitempty"`
	PerformedBy     *uuid.UUID `json:"performed_by,omitempty"`
	CreatedBy       *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int        `json:"version"`
}

// ToActivityResponse converts a domain Activity to ActivityResponse
func ToActivityResponse(a *crm.Activity) ActivityResponse {
	return ActivityResponse{
		ID:              a.ID,
		TenantID:        a.TenantID,
		Type:            string(a.Type),
		Subject:         a.Subject,
		Description:     a.Description,
		CustomerID:      a.CustomerID,
		ContactID:       a.ContactID,
		OpportunityID:   a.OpportunityID,
		OccurredAt:      a.OccurredAt,
		DurationMinutes: a.DurationMinutes,
		Outcome:         string(a.Outcome),
		PerformedBy:     a.PerformedBy,
		CreatedBy:       a.CreatedBy,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		Version:         a.Version,
	}
}

// ToActivityResponses converts a slice of domain Activities
func ToActivityResponses(activities []crm.Activity) []ActivityResponse {
	responses := make([]ActivityResponse, len(activities))
	for i := range activities {
		responses[i] = ToActivityResponse(&activities[i])
	}
	return responses
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer aggregate.
type CustomerModel struct {
	TenantAggregateModel
	Name          string             `gorm:"type:varchar(200);not null"`
	Company       string             `gorm:"type:varchar(200)"`
	Email         string             `gorm:"type:varchar(200);index"`
	Phone         string             `gorm:"type:varchar(50)"`
	Website       string             `gorm:"type:varchar(500)"`
	Industry      string             `gorm:"type:varchar(100);index"`
	Address       string             `gorm:"type:text"`
	City          string             `gorm:"type:varchar(100)"`
	State         string             `gorm:"type:varchar(100)"`
	PostalCode    string             `gorm:"type:varchar(20)"`
	Country       string             `gorm:"type:varchar(100);index"`
	Type          crm.CustomerType   `gorm:"type:varchar(20);not null;default:'individual'"`
	Status        crm.CustomerStatus `gorm:"type:varchar(20);not null;default:'lead';index"`
	Source        crm.CustomerSource `gorm:"type:varchar(30)"`
	OwnerID       *uuid.UUID         `gorm:"type:uuid;index"`
	AnnualRevenue decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	Notes         string             `gorm:"type:text"`
	TagsJSON      string             `gorm:"column:tags;type:jsonb;default:'[]'"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer.
func (m *CustomerModel) ToDomain() *crm.Customer {
	c := &crm.Customer{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Company:             m.Company,
		Email:               m.Email,
		Phone:               m.Phone,
		Website:             m.Website,
		Industry:            m.Industry,
		Address:             m.Address,
		City:                m.City,
		State:               m.State,
		PostalCode:          m.PostalCode,
		Country:             m.Country,
		Type:                m.Type,
		Status:              m.Status,
		Source:              m.Source,
		OwnerID:             m.OwnerID,
		AnnualRevenue:       m.AnnualRevenue,
		Notes:               m.Notes,
		Tags:                []string{},
	}
	decodeJSON(m.TagsJSON, "tags", m.ID, &c.Tags)
	return c
}

// FromDomain populates the persistence model from a domain Customer.
func (m *CustomerModel) FromDomain(c *crm.Customer) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.Name = c.Name
	m.Company = c.Company
	m.Email = c.Email
	m.Phone = c.Phone
	m.Website = c.Website
	m.Industry = c.Industry
	m.Address = c.Address
	m.City = c.City
	m.State = c.State
	m.PostalCode = c.PostalCode
	m.Country = c.Country
	m.Type = c.Type
	m.Status = c.Status
	m.Source = c.Source
	m.OwnerID = c.OwnerID
	m.AnnualRevenue = c.AnnualRevenue
	m.Notes = c.Notes
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	m.TagsJSON = encodeJSON(tags, "[]")
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer.
func CustomerModelFromDomain(c *crm.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// ContactModel is the persistence model for the Contact aggregate.
type ContactModel struct {
	TenantAggregateModel
	CustomerID uuid.UUID         `gorm:"type:uuid;not null;index"`
	FirstName  string            `gorm:"type:varchar(100);not null"`
	LastName   string            `gorm:"type:varchar(100);not null"`
	Email      string            `gorm:"type:varchar(200);index"`
	Phone      string            `gorm:"type:varchar(50)"`
	Mobile     string            `gorm:"type:varchar(50)"`
	JobTitle   string            `gorm:"type:varchar(100)"`
	Department string            `gorm:"type:varchar(100)"`
	IsPrimary  bool              `gorm:"not null;default:false"`
	Status     crm.ContactStatus `gorm:"type:varchar(20);not null;default:'active'"`
	Notes      string            `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ContactModel) TableName() string {
	return "contacts"
}

// ToDomain converts the persistence model to a domain Contact.
func (m *ContactModel) ToDomain() *crm.Contact {
	return &crm.Contact{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		FirstName:           m.FirstName,
		LastName:            m.LastName,
		Email:               m.Email,
		Phone:               m.Phone,
		Mobile:              m.Mobile,
		JobTitle:            m.JobTitle,
		Department:          m.Department,
		IsPrimary:           m.IsPrimary,
		Status:              m.Status,
		Notes:               m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Contact.
func (m *ContactModel) FromDomain(c *crm.Contact) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.CustomerID = c.CustomerID
	m.FirstName = c.FirstName
	m.LastName = c.LastName
	m.Email = c.Email
	m.Phone = c.Phone
	m.Mobile = c.Mobile
	m.JobTitle = c.JobTitle
	m.Department = c.Department
	m.IsPrimary = c.IsPrimary
	m.Status = c.Status
	m.Notes = c.Notes
}

// ContactModelFromDomain creates a new persistence model from a domain Contact.
func ContactModelFromDomain(c *crm.Contact) *ContactModel {
	m := &ContactModel{}
	m.FromDomain(c)
	return m
}

// OpportunityModel is the persistence model for the Opportunity aggregate.
type OpportunityModel struct {
	TenantAggregateModel
	CustomerID        uuid.UUID            `gorm:"type:uuid;not null;index"`
	ContactID         *uuid.UUID           `gorm:"type:uuid"`
	Name              string               `gorm:"type:varchar(200);not null"`
	Description       string               `gorm:"type:text"`
	Stage             crm.OpportunityStage `gorm:"type:varchar(30);not null;default:'prospecting';index"`
	Amount            decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Currency          string               `gorm:"type:varchar(3);not null;default:'USD'"`
	Probability       int                  `gorm:"not null"`
	ExpectedCloseDate *time.Time           `gorm:"index"`
	ActualCloseDate   *time.Time
	OwnerID           *uuid.UUID `gorm:"type:uuid;index"`
	LossReason        string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (OpportunityModel) TableName() string {
	return "opportunities"
}

// ToDomain converts the persistence model to a domain Opportunity.
func (m *OpportunityModel) ToDomain() *crm.Opportunity {
	return &crm.Opportunity{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		ContactID:           m.ContactID,
		Name:                m.Name,
		Description:         m.Description,
		Stage:               m.Stage,
		Amount:              m.Amount,
		Currency:            m.Currency,
		Probability:         m.Probability,
		ExpectedCloseDate:   m.ExpectedCloseDate,
		ActualCloseDate:     m.ActualCloseDate,
		OwnerID:             m.OwnerID,
		LossReason:          m.LossReason,
	}
}

// FromDomain populates the persistence model from a domain Opportunity.
func (m *OpportunityModel) FromDomain(o *crm.Opportunity) {
	m.FromDomainTenantAggregateRoot(o.TenantAggregateRoot)
	m.CustomerID = o.CustomerID
	m.ContactID = o.ContactID
	m.Name = o.Name
	m.Description = o.Description
	m.Stage = o.Stage
	m.Amount = o.Amount
	m.Currency = o.Currency
	m.Probability = o.Probability
	m.ExpectedCloseDate = o.ExpectedCloseDate
	m.ActualCloseDate = o.ActualCloseDate
	m.OwnerID = o.OwnerID
	m.LossReason = o.LossReason
}

// OpportunityModelFromDomain creates a new persistence model from a domain Opportunity.
func OpportunityModelFromDomain(o *crm.Opportunity) *OpportunityModel {
	m := &OpportunityModel{}
	m.FromDomain(o)
	return m
}

// QuoteModel is the persistence model for the Quote aggregate.
type QuoteModel struct {
	TenantAggregateModel
	QuoteNumber     string          `gorm:"type:varchar(30);not null;index:idx_quote_number"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	OpportunityID   *uuid.UUID      `gorm:"type:uuid;index"`
	Title           string          `gorm:"type:varchar(200);not null"`
	Status          crm.QuoteStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	ValidUntil      *time.Time      `gorm:"index"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'USD'"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Total           decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Terms           string          `gorm:"type:text"`
	Notes           string          `gorm:"type:text"`
	SentAt          *time.Time
	AcceptedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string           `gorm:"type:text"`
	Items           []QuoteItemModel `gorm:"foreignKey:QuoteID;references:ID"`
}

// TableName returns the table name for GORM
func (QuoteModel) TableName() string {
	return "quotes"
}

// ToDomain converts the persistence model to a domain Quote including its items.
func (m *QuoteModel) ToDomain() *crm.Quote {
	q := &crm.Quote{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		QuoteNumber:         m.QuoteNumber,
		CustomerID:          m.CustomerID,
		OpportunityID:       m.OpportunityID,
		Title:               m.Title,
		Status:              m.Status,
		ValidUntil:          m.ValidUntil,
		Currency:            m.Currency,
		Subtotal:            m.Subtotal,
		DiscountAmount:      m.DiscountAmount,
		TaxRate:             m.TaxRate,
		TaxAmount:           m.TaxAmount,
		Total:               m.Total,
		Terms:               m.Terms,
		Notes:               m.Notes,
		SentAt:              m.SentAt,
		AcceptedAt:          m.AcceptedAt,
		RejectedAt:          m.RejectedAt,
		RejectionReason:     m.RejectionReason,
		Items:               make([]crm.QuoteItem, len(m.Items)),
	}
	for i := range m.Items {
		q.Items[i] = m.Items[i].ToDomain()
	}
	return q
}

// FromDomain populates the persistence model from a domain Quote.
func (m *QuoteModel) FromDomain(q *crm.Quote) {
	m.FromDomainTenantAggregateRoot(q.TenantAggregateRoot)
	m.QuoteNumber = q.QuoteNumber
	m.CustomerID = q.CustomerID
	m.OpportunityID = q.OpportunityID
	m.Title = q.Title
	m.Status = q.Status
	m.ValidUntil = q.ValidUntil
	m.Currency = q.Currency
	m.Subtotal = q.Subtotal
	m.DiscountAmount = q.DiscountAmount
	m.TaxRate = q.TaxRate
	m.TaxAmount = q.TaxAmount
	m.Total = q.Total
	m.Terms = q.Terms
	m.Notes = q.Notes
	m.SentAt = q.SentAt
	m.AcceptedAt = q.AcceptedAt
	m.RejectedAt = q.RejectedAt
	m.RejectionReason = q.RejectionReason
	m.Items = make([]QuoteItemModel, len(q.Items))
	for i := range q.Items {
		m.Items[i].FromDomain(&q.Items[i])
		m.Items[i].TenantID = q.TenantID
		m.Items[i].QuoteID = q.ID
	}
}

// QuoteModelFromDomain creates a new persistence model from a domain Quote.
func QuoteModelFromDomain(q *crm.Quote) *QuoteModel {
	m := &QuoteModel{}
	m.FromDomain(q)
	return m
}

// QuoteItemModel is the persistence model for a quote line item.
type QuoteItemModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	QuoteID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName     string          `gorm:"type:varchar(200);not null"`
	Description     string          `gorm:"type:text"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	SortOrder       int             `gorm:"not null;default:0"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (QuoteItemModel) TableName() string {
	return "quote_items"
}

// ToDomain converts the persistence model to a domain QuoteItem.
func (m *QuoteItemModel) ToDomain() crm.QuoteItem {
	return crm.QuoteItem{
		ID:              m.ID,
		QuoteID:         m.QuoteID,
		ProductName:     m.ProductName,
		Description:     m.Description,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		DiscountPercent: m.DiscountPercent,
		LineTotal:       m.LineTotal,
		SortOrder:       m.SortOrder,
	}
}

// FromDomain populates the persistence model from a domain QuoteItem.
func (m *QuoteItemModel) FromDomain(item *crm.QuoteItem) {
	m.ID = item.ID
	m.QuoteID = item.QuoteID
	m.ProductName = item.ProductName
	m.Description = item.Description
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
	m.DiscountPercent = item.DiscountPercent
	m.LineTotal = item.LineTotal
	m.SortOrder = item.SortOrder
}

// TaskModel is the persistence model for the Task aggregate.
type TaskModel struct {
	TenantAggregateModel
	Title         string           `gorm:"type:varchar(200);not null"`
	Description   string           `gorm:"type:text"`
	Status        crm.TaskStatus   `gorm:"type:varchar(20);not null;default:'pending';index"`
	Priority      crm.TaskPriority `gorm:"type:varchar(20);not null;default:'medium'"`
	DueDate       *time.Time       `gorm:"index"`
	AssignedTo    *uuid.UUID       `gorm:"type:uuid;index"`
	CustomerID    *uuid.UUID       `gorm:"type:uuid;index"`
	ContactID     *uuid.UUID       `gorm:"type:uuid"`
	OpportunityID *uuid.UUID       `gorm:"type:uuid;index"`
	CompletedAt   *time.Time
	IsOverdue     bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (TaskModel) TableName() string {
	return "tasks"
}

// ToDomain converts the persistence model to a domain Task.
func (m *TaskModel) ToDomain() *crm.Task {
	return &crm.Task{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Title:               m.Title,
		Description:         m.Description,
		Status:              m.Status,
		Priority:            m.Priority,
		DueDate:             m.DueDate,
		AssignedTo:          m.AssignedTo,
		CustomerID:          m.CustomerID,
		ContactID:           m.ContactID,
		OpportunityID:       m.OpportunityID,
		CompletedAt:         m.CompletedAt,
		IsOverdue:           m.IsOverdue,
	}
}

// FromDomain populates the persistence model from a domain Task.
func (m *TaskModel) FromDomain(t *crm.Task) {
	m.FromDomainTenantAggregateRoot(t.TenantAggregateRoot)
	m.Title = t.Title
	m.Description = t.Description
	m.Status = t.Status
	m.Priority = t.Priority
	m.DueDate = t.DueDate
	m.AssignedTo = t.AssignedTo
	m.CustomerID = t.CustomerID
	m.ContactID = t.ContactID
	m.OpportunityID = t.OpportunityID
	m.CompletedAt = t.CompletedAt
	m.IsOverdue = t.IsOverdue
}

// TaskModelFromDomain creates a new persistence model from a domain Task.
func TaskModelFromDomain(t *crm.Task) *TaskModel {
	m := &TaskModel{}
	m.FromDomain(t)
	return m
}

// NoteModel is the persistence model for the Note aggregate.
type NoteModel struct {
	TenantAggregateModel
	EntityType crm.NoteEntityType `gorm:"type:varchar(30);not null;index:idx_note_entity,priority:1"`
	EntityID   uuid.UUID          `gorm:"type:uuid;not null;index:idx_note_entity,priority:2"`
	Title      string             `gorm:"type:varchar(200)"`
	Content    string             `gorm:"type:text;not null"`
	IsPinned   bool               `gorm:"not null;default:false"`
	AuthorID   *uuid.UUID         `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (NoteModel) TableName() string {
	return "notes"
}

// ToDomain converts the persistence model to a domain Note.
func (m *NoteModel) ToDomain() *crm.Note {
	return &crm.Note{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		EntityType:          m.EntityType,
		EntityID:            m.EntityID,
		Title:               m.Title,
		Content:             m.Content,
		IsPinned:            m.IsPinned,
		AuthorID:            m.AuthorID,
	}
}

// FromDomain populates the persistence model from a domain Note.
func (m *NoteModel) FromDomain(n *crm.Note) {
	m.FromDomainTenantAggregateRoot(n.TenantAggregateRoot)
	m.EntityType = n.EntityType
	m.EntityID = n.EntityID
	m.Title = n.Title
	m.Content = n.Content
	m.IsPinned = n.IsPinned
	m.AuthorID = n.AuthorID
}

// NoteModelFromDomain creates a new persistence model from a domain Note.
func NoteModelFromDomain(n *crm.Note) *NoteModel {
	m := &NoteModel{}
	m.FromDomain(n)
	return m
}

// ActivityModel is the persistence model for the Activity aggregate.
type ActivityModel struct {
	TenantAggregateModel
	Type            crm.ActivityType    `gorm:"type:varchar(20);not null;index"`
	Subject         string              `gorm:"type:varchar(200);not null"`
	Description     string              `gorm:"type:text"`
	CustomerID      *uuid.UUID          `gorm:"type:uuid;index"`
	ContactID       *uuid.UUID          `gorm:"type:uuid"`
	OpportunityID   *uuid.UUID          `gorm:"type:uuid;index"`
	OccurredAt      time.Time           `gorm:"not null;index"`
	DurationMinutes int                 `gorm:"not null;default:0"`
	Outcome         crm.ActivityOutcome `gorm:"type:varchar(20)"`
	PerformedBy     *uuid.UUID          `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ActivityModel) TableName() string {
	return "activities"
}

// ToDomain converts the persistence model to a domain Activity.
func (m *ActivityModel) ToDomain() *crm.Activity {
	return &crm.Activity{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Type:                m.Type,
		Subject:             m.Subject,
		Description:         m.Description,
		CustomerID:          m.CustomerID,
		ContactID:           m.ContactID,
		OpportunityID:       m.OpportunityID,
		OccurredAt:          m.OccurredAt,
		DurationMinutes:     m.DurationMinutes,
		Outcome:             m.Outcome,
		PerformedBy:         m.PerformedBy,
	}
}

// FromDomain populates the persistence model from a domain Activity.
func (m *ActivityModel) FromDomain(a *crm.Activity) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.Type = a.Type
	m.Subject = a.Subject
	m.Description = a.Description
	m.CustomerID = a.CustomerID
	m.ContactID = a.ContactID
	m.OpportunityID = a.OpportunityID
	m.OccurredAt = a.OccurredAt
	m.DurationMinutes = a.DurationMinutes
	m.Outcome = a.Outcome
	m.PerformedBy = a.PerformedBy
}

// ActivityModelFromDomain creates a new persistence model from a domain Activity.
func ActivityModelFromDomain(a *crm.Activity) *ActivityModel {
	m := &ActivityModel{}
	m.FromDomain(a)
	return m
}

package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CustomerStatus represents where a customer sits in the sales lifecycle
type CustomerStatus string

const (
	CustomerStatusLead     CustomerStatus = "lead"
	CustomerStatusProspect CustomerStatus = "prospect"
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
	CustomerStatusChurned  CustomerStatus = "churned"
)

// CustomerType represents the type of customer
type CustomerType string

const (
	CustomerTypeIndividual   CustomerType = "individual"
	CustomerTypeOrganization CustomerType = "organization"
)

// CustomerSource records how the customer was acquired
type CustomerSource string

const (
	CustomerSourceWebsite  CustomerSource = "website"
	CustomerSourceReferral CustomerSource = "referral"
	CustomerSourceCampaign CustomerSource = "campaign"
	CustomerSourceColdCall CustomerSource = "cold_call"
	CustomerSourceEvent    CustomerSource = "event"
	CustomerSourcePartner  CustomerSource = "partner"
	CustomerSourceOther    CustomerSource = "other"
)

// customerTransitions lists the statuses reachable from each status
var customerTransitions = map[CustomerStatus][]CustomerStatus{
	CustomerStatusLead:     {CustomerStatusProspect, CustomerStatusActive, CustomerStatusChurned},
	CustomerStatusProspect: {CustomerStatusLead, CustomerStatusActive, CustomerStatusChurned},
	CustomerStatusActive:   {CustomerStatusInactive, CustomerStatusChurned},
	CustomerStatusInactive: {CustomerStatusActive, CustomerStatusChurned},
	CustomerStatusChurned:  {CustomerStatusLead},
}

// AllCustomerStatuses returns every customer status in lifecycle order
func AllCustomerStatuses() []CustomerStatus {
	return []CustomerStatus{
		CustomerStatusLead,
		CustomerStatusProspect,
		CustomerStatusActive,
		CustomerStatusInactive,
		CustomerStatusChurned,
	}
}

// IsValid reports whether the status is known
func (s CustomerStatus) IsValid() bool {
	_, ok := customerTransitions[s]
	return ok
}

// CanTransitionTo reports whether the status may move to next
func (s CustomerStatus) CanTransitionTo(next CustomerStatus) bool {
	for _, allowed := range customerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Customer is the aggregate root for an account the tenant sells to
type Customer struct {
	shared.TenantAggregateRoot
	Name          string
	Company       string
	Email         string
	Phone         string
	Website       string
	Industry      string
	Address       string
	City          string
	State         string
	PostalCode    string
	Country       string
	Type          CustomerType
	Status        CustomerStatus
	Source        CustomerSource
	OwnerID       *uuid.UUID
	AnnualRevenue decimal.Decimal
	Notes         string
	Tags          []string
}

// CustomerPatch carries the optional fields of a customer update
type CustomerPatch struct {
	Name          *string
	Company       *string
	Email         *string
	Phone         *string
	Website       *string
	Industry      *string
	Address       *string
	City          *string
	State         *string
	PostalCode    *string
	Country       *string
	Type          *CustomerType
	Source        *CustomerSource
	OwnerID       *uuid.UUID
	ClearOwner    bool
	AnnualRevenue *decimal.Decimal
	Notes         *string
	Tags          []string
}

// NewCustomer creates a new customer in lead status
func NewCustomer(tenantID uuid.UUID, name string, customerType CustomerType) (*Customer, error) {
	if err := validateRequired("name", "Customer name", name, 200); err != nil {
		return nil, err
	}
	if err := validateCustomerType(customerType); err != nil {
		return nil, err
	}

	customer := &Customer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		Type:                customerType,
		Status:              CustomerStatusLead,
		Source:              CustomerSourceOther,
		AnnualRevenue:       decimal.Zero,
		Tags:                []string{},
	}

	customer.AddDomainEvent(NewCustomerCreatedEvent(customer))

	return customer, nil
}

// Apply sets the patched fields without bumping the version.
// It is used while building a new customer before the first save.
func (c *Customer) Apply(p CustomerPatch) error {
	_, err := c.apply(p)
	return err
}

// Update applies a patch, bumps the version and records what changed
func (c *Customer) Update(p CustomerPatch) error {
	changes, err := c.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(NewCustomerUpdatedEvent(c, changes))

	return nil
}

func (c *Customer) apply(p CustomerPatch) (shared.Changes, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	changes := shared.Changes{}
	setString := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		value := strings.TrimSpace(*src)
		changes.Track(field, *dst, value)
		*dst = value
	}

	setString("name", &c.Name, p.Name)
	setString("company", &c.Company, p.Company)
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		setString("email", &c.Email, &email)
	}
	setString("phone", &c.Phone, p.Phone)
	setString("website", &c.Website, p.Website)
	setString("industry", &c.Industry, p.Industry)
	setString("address", &c.Address, p.Address)
	setString("city", &c.City, p.City)
	setString("state", &c.State, p.State)
	setString("postal_code", &c.PostalCode, p.PostalCode)
	setString("country", &c.Country, p.Country)
	setString("notes", &c.Notes, p.Notes)

	if p.Type != nil {
		changes.Track("type", string(c.Type), string(*p.Type))
		c.Type = *p.Type
	}
	if p.Source != nil {
		changes.Track("source", string(c.Source), string(*p.Source))
		c.Source = *p.Source
	}
	if p.ClearOwner {
		changes.Track("owner_id", formatID(c.OwnerID), "")
		c.OwnerID = nil
	} else if p.OwnerID != nil {
		owner := *p.OwnerID
		changes.Track("owner_id", formatID(c.OwnerID), owner.String())
		c.OwnerID = &owner
	}
	if p.AnnualRevenue != nil {
		changes.Track("annual_revenue", c.AnnualRevenue.String(), p.AnnualRevenue.String())
		c.AnnualRevenue = *p.AnnualRevenue
	}
	if p.Tags != nil {
		tags := NormalizeTags(p.Tags)
		changes.Track("tags", strings.Join(c.Tags, ","), strings.Join(tags, ","))
		c.Tags = tags
	}

	return changes, nil
}

func (p CustomerPatch) validate() error {
	if p.Name != nil {
		if err := validateRequired("name", "Customer name", *p.Name, 200); err != nil {
			return err
		}
	}
	if p.Company != nil {
		if err := validateMaxLength("company", "Company", *p.Company, 200); err != nil {
			return err
		}
	}
	if p.Email != nil {
		if err := validateEmail(strings.TrimSpace(*p.Email)); err != nil {
			return err
		}
	}
	if p.Phone != nil {
		if err := validatePhone("phone", strings.TrimSpace(*p.Phone)); err != nil {
			return err
		}
	}
	if p.Website != nil {
		if err := validateMaxLength("website", "Website", *p.Website, 255); err != nil {
			return err
		}
	}
	if p.Address != nil {
		if err := validateMaxLength("address", "Address", *p.Address, 500); err != nil {
			return err
		}
	}
	for field, value := range map[string]*string{"industry": p.Industry, "city": p.City, "state": p.State, "country": p.Country} {
		if value != nil {
			if err := validateMaxLength(field, strings.ToUpper(field[:1])+field[1:], *value, 100); err != nil {
				return err
			}
		}
	}
	if p.PostalCode != nil {
		if err := validateMaxLength("postal_code", "Postal code", *p.PostalCode, 20); err != nil {
			return err
		}
	}
	if p.Type != nil {
		if err := validateCustomerType(*p.Type); err != nil {
			return err
		}
	}
	if p.Source != nil {
		if err := validateCustomerSource(*p.Source); err != nil {
			return err
		}
	}
	if p.AnnualRevenue != nil {
		if err := validateNonNegative("annual_revenue", "Annual revenue", *p.AnnualRevenue); err != nil {
			return err
		}
	}
	return nil
}

// TransitionTo moves the customer to a new lifecycle status
func (c *Customer) TransitionTo(next CustomerStatus) error {
	if !next.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown customer status")
	}
	if c.Status == next {
		return shared.NewInvalidStateError("Customer is already " + string(next))
	}
	if !c.Status.CanTransitionTo(next) {
		return shared.NewInvalidStateError("Cannot change customer status from " + string(c.Status) + " to " + string(next))
	}

	oldStatus := c.Status
	c.Status = next
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(NewCustomerStatusChangedEvent(c, oldStatus, next))

	return nil
}

// MarkDeleted records the deletion event before the row is soft-deleted
func (c *Customer) MarkDeleted() {
	c.AddDomainEvent(NewCustomerDeletedEvent(c))
}

// IsActive returns true if the customer is active
func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}

// IsEngageable returns true if marketing may target the customer by default
func (c *Customer) IsEngageable() bool {
	return c.Status != CustomerStatusInactive && c.Status != CustomerStatusChurned
}

// DisplayName returns the company name for organizations and the person name otherwise
func (c *Customer) DisplayName() string {
	if c.Type == CustomerTypeOrganization && c.Company != "" {
		return c.Company
	}
	return c.Name
}

func validateCustomerType(t CustomerType) error {
	switch t {
	case CustomerTypeIndividual, CustomerTypeOrganization:
		return nil
	default:
		return shared.NewDomainError("INVALID_TYPE", "Customer type must be 'individual' or 'organization'")
	}
}

func validateCustomerSource(s CustomerSource) error {
	switch s {
	case CustomerSourceWebsite, CustomerSourceReferral, CustomerSourceCampaign, CustomerSourceColdCall,
		CustomerSourceEvent, CustomerSourcePartner, CustomerSourceOther:
		return nil
	default:
		return shared.NewDomainError("INVALID_SOURCE", "Invalid customer source")
	}
}

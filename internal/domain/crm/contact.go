package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// ContactStatus represents whether a contact is still reachable
type ContactStatus string

const (
	ContactStatusActive   ContactStatus = "active"
	ContactStatusInactive ContactStatus = "inactive"
)

// Contact is a person working at a customer
type Contact struct {
	shared.TenantAggregateRoot
	CustomerID uuid.UUID
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Mobile     string
	JobTitle   string
	Department string
	IsPrimary  bool
	Status     ContactStatus
	Notes      string
}

// ContactPatch carries the optional fields of a contact update
type ContactPatch struct {
	FirstName  *string
	LastName   *string
	Email      *string
	Phone      *string
	Mobile     *string
	JobTitle   *string
	Department *string
	Notes      *string
}

// NewContact creates a new active contact for a customer
func NewContact(tenantID, customerID uuid.UUID, firstName, lastName string) (*Contact, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Contact must belong to a customer")
	}
	if err := validateRequired("first_name", "First name", firstName, 100); err != nil {
		return nil, err
	}
	if err := validateMaxLength("last_name", "Last name", lastName, 100); err != nil {
		return nil, err
	}

	contact := &Contact{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		FirstName:           strings.TrimSpace(firstName),
		LastName:            strings.TrimSpace(lastName),
		Status:              ContactStatusActive,
	}

	contact.AddDomainEvent(newContactEvent(EventTypeContactCreated, contact, nil))

	return contact, nil
}

// Apply sets the patched fields without bumping the version
func (c *Contact) Apply(p ContactPatch) error {
	_, err := c.apply(p)
	return err
}

// Update applies a patch and bumps the version
func (c *Contact) Update(p ContactPatch) error {
	changes, err := c.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(newContactEvent(EventTypeContactUpdated, c, changes))

	return nil
}

func (c *Contact) apply(p ContactPatch) (shared.Changes, error) {
	if p.FirstName != nil {
		if err := validateRequired("first_name", "First name", *p.FirstName, 100); err != nil {
			return nil, err
		}
	}
	if p.LastName != nil {
		if err := validateMaxLength("last_name", "Last name", *p.LastName, 100); err != nil {
			return nil, err
		}
	}
	if p.Email != nil {
		if err := validateEmail(strings.TrimSpace(*p.Email)); err != nil {
			return nil, err
		}
	}
	if p.Phone != nil {
		if err := validatePhone("phone", strings.TrimSpace(*p.Phone)); err != nil {
			return nil, err
		}
	}
	if p.Mobile != nil {
		if err := validatePhone("mobile", strings.TrimSpace(*p.Mobile)); err != nil {
			return nil, err
		}
	}
	if p.JobTitle != nil {
		if err := validateMaxLength("job_title", "Job title", *p.JobTitle, 100); err != nil {
			return nil, err
		}
	}
	if p.Department != nil {
		if err := validateMaxLength("department", "Department", *p.Department, 100); err != nil {
			return nil, err
		}
	}

	changes := shared.Changes{}
	set := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		value := strings.TrimSpace(*src)
		changes.Track(field, *dst, value)
		*dst = value
	}
	set("first_name", &c.FirstName, p.FirstName)
	set("last_name", &c.LastName, p.LastName)
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		set("email", &c.Email, &email)
	}
	set("phone", &c.Phone, p.Phone)
	set("mobile", &c.Mobile, p.Mobile)
	set("job_title", &c.JobTitle, p.JobTitle)
	set("department", &c.Department, p.Department)
	set("notes", &c.Notes, p.Notes)

	return changes, nil
}

// MakePrimary flags the contact as the customer's primary contact
func (c *Contact) MakePrimary() error {
	if c.Status != ContactStatusActive {
		return shared.NewInvalidStateError("Only active contacts can be primary")
	}
	if c.IsPrimary {
		return shared.NewInvalidStateError("Contact is already the primary contact")
	}

	c.IsPrimary = true
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(newContactEvent(EventTypeContactUpdated, c, shared.Changes{"is_primary": false}))

	return nil
}

// Activate marks the contact active
func (c *Contact) Activate() error {
	if c.Status == ContactStatusActive {
		return shared.NewInvalidStateError("Contact is already active")
	}
	return c.setStatus(ContactStatusActive)
}

// Deactivate marks the contact inactive; an inactive contact cannot stay primary
func (c *Contact) Deactivate() error {
	if c.Status == ContactStatusInactive {
		return shared.NewInvalidStateError("Contact is already inactive")
	}
	c.IsPrimary = false
	return c.setStatus(ContactStatusInactive)
}

func (c *Contact) setStatus(status ContactStatus) error {
	old := c.Status
	c.Status = status
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(newContactEvent(EventTypeContactStatusChanged, c, shared.Changes{"status": string(old)}))

	return nil
}

// MarkDeleted records the deletion event
func (c *Contact) MarkDeleted() {
	c.AddDomainEvent(newContactEvent(EventTypeContactDeleted, c, nil))
}

// FullName returns first and last name joined
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

package crm

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
)

// ContactService handles contact-related business operations
type ContactService struct {
	publisher
	contactRepo  crm.ContactRepository
	customerRepo crm.CustomerRepository
	txManager    shared.TransactionManager
}

// NewContactService creates a new ContactService
func NewContactService(
	contactRepo crm.ContactRepository,
	customerRepo crm.CustomerRepository,
	txManager shared.TransactionManager,
) *ContactService {
	return &ContactService{
		contactRepo:  contactRepo,
		customerRepo: customerRepo,
		txManager:    txManager,
	}
}

// Create creates a contact for an existing customer.
// A contact created as primary takes the flag from its siblings in the same transaction.
func (s *ContactService) Create(ctx context.Context, tenantID uuid.UUID, req CreateContactRequest) (*ContactResponse, error) {
	if _, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, req.CustomerID); err != nil {
		return nil, err
	}

	contact, err := crm.NewContact(tenantID, req.CustomerID, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	if err := contact.Apply(crm.ContactPatch{
		Email:      optional(req.Email),
		Phone:      optional(req.Phone),
		Mobile:     optional(req.Mobile),
		JobTitle:   optional(req.JobTitle),
		Department: optional(req.Department),
		Notes:      optional(req.Notes),
	}); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		contact.SetCreatedBy(*req.CreatedBy)
	}
	contact.IsPrimary = req.IsPrimary

	err = s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.contactRepo.Save(txCtx, contact); err != nil {
			return err
		}
		if contact.IsPrimary {
			return s.contactRepo.ClearPrimary(txCtx, tenantID, contact.CustomerID, contact.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, contact)

	response := ToContactResponse(contact)
	return &response, nil
}

// GetByID retrieves a contact by ID
func (s *ContactService) GetByID(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	contact, err := s.contactRepo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}

	response := ToContactResponse(contact)
	return &response, nil
}

// List retrieves a list of contacts with filtering and pagination
func (s *ContactService) List(ctx context.Context, tenantID uuid.UUID, filter ContactListFilter) ([]ContactResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "customer_id", filter.CustomerID)
	common.PutString(domainFilter, "status", filter.Status)
	common.PutBool(domainFilter, "is_primary", filter.IsPrimary)

	contacts, err := s.contactRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.contactRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToContactResponses(contacts), total, nil
}

// Update updates a contact
func (s *ContactService) Update(ctx context.Context, tenantID, contactID uuid.UUID, req UpdateContactRequest) (*ContactResponse, error) {
	return s.mutate(ctx, tenantID, contactID, func(c *crm.Contact) error {
		return c.Update(crm.ContactPatch{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			Phone:      req.Phone,
			Mobile:     req.Mobile,
			JobTitle:   req.JobTitle,
			Department: req.Department,
			Notes:      req.Notes,
		})
	})
}

// SetPrimary makes the contact its customer's only primary contact
func (s *ContactService) SetPrimary(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	contact, err := s.contactRepo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}

	if err := contact.MakePrimary(); err != nil {
		return nil, err
	}

	err = s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.contactRepo.ClearPrimary(txCtx, tenantID, contact.CustomerID, contact.ID); err != nil {
			return err
		}
		return s.contactRepo.SaveWithLock(txCtx, contact)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, contact)

	response := ToContactResponse(contact)
	return &response, nil
}

// Activate marks a contact active
func (s *ContactService) Activate(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	return s.mutate(ctx, tenantID, contactID, (*crm.Contact).Activate)
}

// Deactivate marks a contact inactive, dropping its primary flag
func (s *ContactService) Deactivate(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	return s.mutate(ctx, tenantID, contactID, (*crm.Contact).Deactivate)
}

// Delete soft-deletes a contact
func (s *ContactService) Delete(ctx context.Context, tenantID, contactID uuid.UUID) error {
	contact, err := s.contactRepo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return err
	}

	contact.MarkDeleted()
	if err := s.contactRepo.DeleteForTenant(ctx, tenantID, contactID); err != nil {
		return err
	}
	s.publish(ctx, contact)
	return nil
}

func (s *ContactService) mutate(ctx context.Context, tenantID, contactID uuid.UUID, fn func(*crm.Contact) error) (*ContactResponse, error) {
	contact, err := s.contactRepo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	if err := fn(contact); err != nil {
		return nil, err
	}
	if !unchanged(contact) {
		if err := s.contactRepo.SaveWithLock(ctx, contact); err != nil {
			return nil, err
		}
		s.publish(ctx, contact)
	}

	response := ToContactResponse(contact)
	return &response, nil
}

package crm

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
)

// CustomerService handles customer-related business operations
type CustomerService struct {
	publisher
	customerRepo    crm.CustomerRepository
	contactRepo     crm.ContactRepository
	opportunityRepo crm.OpportunityRepository
	activityRepo    crm.ActivityRepository
	businessMetrics *telemetry.BusinessMetrics
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(
	customerRepo crm.CustomerRepository,
	contactRepo crm.ContactRepository,
	opportunityRepo crm.OpportunityRepository,
	activityRepo crm.ActivityRepository,
) *CustomerService {
	return &CustomerService{
		customerRepo:    customerRepo,
		contactRepo:     contactRepo,
		opportunityRepo: opportunityRepo,
		activityRepo:    activityRepo,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *CustomerService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates a new customer in lead status
func (s *CustomerService) Create(ctx context.Context, tenantID uuid.UUID, req CreateCustomerRequest) (*CustomerResponse, error) {
	if err := s.ensureEmailAvailable(ctx, tenantID, req.Email, uuid.Nil); err != nil {
		return nil, err
	}

	customerType := crm.CustomerTypeOrganization
	if req.Type != "" {
		customerType = crm.CustomerType(req.Type)
	}
	customer, err := crm.NewCustomer(tenantID, req.Name, customerType)
	if err != nil {
		return nil, err
	}
	if err := customer.Apply(req.patch()); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		customer.SetCreatedBy(*req.CreatedBy)
	}

	if err := s.customerRepo.Save(ctx, customer); err != nil {
		return nil, err
	}
	s.publish(ctx, customer)

	if s.businessMetrics != nil {
		s.businessMetrics.RecordCustomerCreated(ctx, tenantID, string(customer.Source))
	}

	response := ToCustomerResponse(customer)
	return &response, nil
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}

	response := ToCustomerResponse(customer)
	return &response, nil
}

// List retrieves a list of customers with filtering and pagination
func (s *CustomerService) List(ctx context.Context, tenantID uuid.UUID, filter CustomerListFilter) ([]CustomerResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "status", filter.Status)
	common.PutString(domainFilter, "type", filter.Type)
	common.PutString(domainFilter, "source", filter.Source)
	common.PutString(domainFilter, "industry", filter.Industry)
	common.PutString(domainFilter, "country", filter.Country)
	common.PutString(domainFilter, "owner_id", filter.OwnerID)

	customers, err := s.customerRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.customerRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToCustomerResponses(customers), total, nil
}

// Update updates a customer, checking email uniqueness and the version
func (s *CustomerService) Update(ctx context.Context, tenantID, customerID uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && !strings.EqualFold(strings.TrimSpace(*req.Email), customer.Email) {
		if err := s.ensureEmailAvailable(ctx, tenantID, *req.Email, customer.ID); err != nil {
			return nil, err
		}
	}

	if err := customer.Update(req.patch()); err != nil {
		return nil, err
	}
	if unchanged(customer) {
		response := ToCustomerResponse(customer)
		return &response, nil
	}

	if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
		return nil, err
	}
	s.publish(ctx, customer)

	response := ToCustomerResponse(customer)
	return &response, nil
}

// ChangeStatus moves a customer along the lifecycle
func (s *CustomerService) ChangeStatus(ctx context.Context, tenantID, customerID uuid.UUID, req ChangeCustomerStatusRequest) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}

	if err := customer.TransitionTo(crm.CustomerStatus(req.Status)); err != nil {
		return nil, err
	}

	if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
		return nil, err
	}
	s.publish(ctx, customer)

	response := ToCustomerResponse(customer)
	return &response, nil
}

// Delete soft-deletes a customer
func (s *CustomerService) Delete(ctx context.Context, tenantID, customerID uuid.UUID) error {
	customer, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID)
	if err != nil {
		return err
	}

	customer.MarkDeleted()
	if err := s.customerRepo.DeleteForTenant(ctx, tenantID, customerID); err != nil {
		return err
	}
	s.publish(ctx, customer)

	return nil
}

// Stats counts customers per status; every status is present in the result
func (s *CustomerService) Stats(ctx context.Context, tenantID uuid.UUID) (*CustomerStatsResponse, error) {
	counts, err := s.customerRepo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	stats := &CustomerStatsResponse{ByStatus: make(map[string]int64, len(counts))}
	for _, status := range crm.AllCustomerStatuses() {
		n := counts[status]
		stats.ByStatus[string(status)] = n
		stats.Total += n
	}
	return stats, nil
}

// Contacts lists the contacts of a customer
func (s *CustomerService) Contacts(ctx context.Context, tenantID, customerID uuid.UUID, query common.ListQuery) ([]ContactResponse, int64, error) {
	if _, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID); err != nil {
		return nil, 0, err
	}

	filter := query.Filter("created_at").With("customer_id", customerID)
	contacts, err := s.contactRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.contactRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return ToContactResponses(contacts), total, nil
}

// Opportunities lists the opportunities of a customer
func (s *CustomerService) Opportunities(ctx context.Context, tenantID, customerID uuid.UUID, query common.ListQuery) ([]OpportunityResponse, int64, error) {
	if _, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID); err != nil {
		return nil, 0, err
	}

	filter := query.Filter("created_at").With("customer_id", customerID)
	opps, err := s.opportunityRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.opportunityRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return ToOpportunityResponses(opps), total, nil
}

// Timeline lists the activities of a customer, most recent first
func (s *CustomerService) Timeline(ctx context.Context, tenantID, customerID uuid.UUID, query common.ListQuery) ([]ActivityResponse, int64, error) {
	if _, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID); err != nil {
		return nil, 0, err
	}

	query.OrderBy, query.OrderDir = "occurred_at", "desc"
	filter := query.Filter("occurred_at").With("customer_id", customerID)
	activities, err := s.activityRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.activityRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return ToActivityResponses(activities), total, nil
}

func (s *CustomerService) ensureEmailAvailable(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	exists, err := s.customerRepo.ExistsByEmail(ctx, tenantID, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError("ALREADY_EXISTS", "Customer with this email already exists")
	}
	return nil
}

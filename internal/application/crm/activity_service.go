package crm

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
)

// ActivityService handles activity-related business operations
type ActivityService struct {
	publisher
	activityRepo crm.ActivityRepository
}

// NewActivityService creates a new ActivityService
func NewActivityService(activityRepo crm.ActivityRepository) *ActivityService {
	return &ActivityService{activityRepo: activityRepo}
}

// Create logs an activity; occurred_at defaults to now
func (s *ActivityService) Create(ctx context.Context, tenantID uuid.UUID, req CreateActivityRequest) (*ActivityResponse, error) {
	activity, err := crm.NewActivity(tenantID, crm.ActivityType(req.Type), req.Subject)
	if err != nil {
		return nil, err
	}

	patch := crm.ActivityPatch{
		Description:   optional(req.Description),
		CustomerID:    req.CustomerID,
		ContactID:     req.ContactID,
		OpportunityID: req.OpportunityID,
		OccurredAt:    req.OccurredAt,
		PerformedBy:   req.PerformedBy,
	}
	if req.DurationMinutes != 0 {
		patch.DurationMinutes = &req.DurationMinutes
	}
	if req.Outcome != "" {
		outcome := crm.ActivityOutcome(req.Outcome)
		patch.Outcome = &outcome
	}
	if err := activity.Apply(patch); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		activity.SetCreatedBy(*req.CreatedBy)
		if activity.PerformedBy == nil {
			performer := *req.CreatedBy
			activity.PerformedBy = &performer
		}
	}

	if err := s.activityRepo.Save(ctx, activity); err != nil {
		return nil, err
	}
	s.publish(ctx, activity)

	response := ToActivityResponse(activity)
	return &response, nil
}

// GetByID retrieves an activity by ID
func (s *ActivityService) GetByID(ctx context.Context, tenantID, activityID uuid.UUID) (*ActivityResponse, error) {
	activity, err := s.activityRepo.FindByIDForTenant(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}

	response := ToActivityResponse(activity)
	return &response, nil
}

// List retrieves activities, most recent first unless another order is asked for
func (s *ActivityService) List(ctx context.Context, tenantID uuid.UUID, filter ActivityListFilter) ([]ActivityResponse, int64, error) {
	domainFilter := filter.Filter("occurred_at")
	common.PutString(domainFilter, "type", filter.Type)
	common.PutString(domainFilter, "customer_id", filter.CustomerID)
	common.PutString(domainFilter, "contact_id", filter.ContactID)
	common.PutString(domainFilter, "opportunity_id", filter.OpportunityID)
	if filter.From != nil {
		domainFilter.Filters["from"] = *filter.From
	}
	if filter.To != nil {
		domainFilter.Filters["to"] = *filter.To
	}

	activities, err := s.activityRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.activityRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToActivityResponses(activities), total, nil
}

// Update updates an activity
func (s *ActivityService) Update(ctx context.Context, tenantID, activityID uuid.UUID, req UpdateActivityRequest) (*ActivityResponse, error) {
	activity, err := s.activityRepo.FindByIDForTenant(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}

	patch := crm.ActivityPatch{
		Subject:         req.Subject,
		Description:     req.Description,
		CustomerID:      req.CustomerID,
		ContactID:       req.ContactID,
		OpportunityID:   req.OpportunityID,
		OccurredAt:      req.OccurredAt,
		DurationMinutes: req.DurationMinutes,
		PerformedBy:     req.PerformedBy,
	}
	if req.Type != nil {
		t := crm.ActivityType(*req.Type)
		patch.Type = &t
	}
	if req.Outcome != nil {
		o := crm.ActivityOutcome(*req.Outcome)
		patch.Outcome = &o
	}
	if err := activity.Update(patch); err != nil {
		return nil, err
	}

	if !unchanged(activity) {
		if err := s.activityRepo.SaveWithLock(ctx, activity); err != nil {
			return nil, err
		}
		s.publish(ctx, activity)
	}

	response := ToActivityResponse(activity)
	return &response, nil
}

// Delete soft-deletes an activity
func (s *ActivityService) Delete(ctx context.Context, tenantID, activityID uuid.UUID) error {
	activity, err := s.activityRepo.FindByIDForTenant(ctx, tenantID, activityID)
	if err != nil {
		return err
	}

	activity.MarkDeleted()
	if err := s.activityRepo.DeleteForTenant(ctx, tenantID, activityID); err != nil {
		return err
	}
	s.publish(ctx, activity)
	return nil
}

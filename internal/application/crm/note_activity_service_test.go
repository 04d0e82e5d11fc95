package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNoteService_Create_SetsAuthor(t *testing.T) {
	notes := new(MockNoteRepository)
	events := &recordingPublisher{}
	service := NewNoteService(notes)
	service.SetEventPublisher(events)

	ctx := context.Background()
	tenantID := newTestTenantID()
	author := uuid.New()
	entityID := uuid.New()

	notes.On("Save", ctx, mock.AnythingOfType("*crm.Note")).Return(nil)

	result, err := service.Create(ctx, tenantID, CreateNoteRequest{
		EntityType: "customer",
		EntityID:   entityID,
		Content:    "Prefers email over phone",
		IsPinned:   true,
		AuthorID:   &author,
	})

	require.NoError(t, err)
	assert.Equal(t, "customer", result.EntityType)
	assert.Equal(t, entityID, result.EntityID)
	assert.True(t, result.IsPinned)
	require.NotNil(t, result.AuthorID)
	assert.Equal(t, author, *result.AuthorID)
	assert.Equal(t, []string{crm.EventTypeNoteCreated}, events.types())
}

func TestNoteService_PinAndUnpin(t *testing.T) {
	notes := new(MockNoteRepository)
	service := NewNoteService(notes)

	ctx := context.Background()
	tenantID := newTestTenantID()
	note, err := crm.NewNote(tenantID, crm.NoteEntityType("opportunity"), uuid.New(), "", "Budget approved")
	require.NoError(t, err)
	note = loaded(note)

	notes.On("FindByIDForTenant", ctx, tenantID, note.ID).Return(note, nil)
	notes.On("SaveWithLock", ctx, note).Return(nil)

	pinned, err := service.Pin(ctx, tenantID, note.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)

	_, err = service.Pin(ctx, tenantID, note.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	unpinned, err := service.Unpin(ctx, tenantID, note.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)

	notes.AssertNumberOfCalls(t, "SaveWithLock", 2)
}

func TestNoteService_List_FiltersByEntity(t *testing.T) {
	notes := new(MockNoteRepository)
	service := NewNoteService(notes)

	ctx := context.Background()
	tenantID := newTestTenantID()
	entityID := uuid.New().String()

	matches := mock.MatchedBy(func(filter shared.Filter) bool {
		return filter.Filters["entity_type"] == "customer" && filter.Filters["entity_id"] == entityID
	})
	notes.On("FindAllForTenant", ctx, tenantID, matches).Return([]crm.Note{}, nil)
	notes.On("CountForTenant", ctx, tenantID, matches).Return(int64(0), nil)

	result, total, err := service.List(ctx, tenantID, NoteListFilter{EntityType: "customer", EntityID: entityID})

	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Zero(t, total)
	notes.AssertExpectations(t)
}

func TestActivityService_Create_DefaultsPerformerToCreator(t *testing.T) {
	activities := new(MockActivityRepository)
	service := NewActivityService(activities)

	ctx := context.Background()
	tenantID := newTestTenantID()
	creator := uuid.New()

	activities.On("Save", ctx, mock.AnythingOfType("*crm.Activity")).Return(nil)

	result, err := service.Create(ctx, tenantID, CreateActivityRequest{
		Type:            "call",
		Subject:         "Discovery call",
		DurationMinutes: 30,
		Outcome:         "successful",
		CreatedBy:       &creator,
	})

	require.NoError(t, err)
	assert.Equal(t, "call", result.Type)
	assert.Equal(t, 30, result.DurationMinutes)
	assert.Equal(t, "successful", result.Outcome)
	require.NotNil(t, result.PerformedBy)
	assert.Equal(t, creator, *result.PerformedBy)
	assert.False(t, result.OccurredAt.IsZero())
}

func TestActivityService_List_DateRange(t *testing.T) {
	activities := new(MockActivityRepository)
	service := NewActivityService(activities)

	ctx := context.Background()
	tenantID := newTestTenantID()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	matches := mock.MatchedBy(func(filter shared.Filter) bool {
		return filter.OrderBy == "occurred_at" &&
			filter.Filters["from"] == from &&
			filter.Filters["to"] == to
	})
	activities.On("FindAllForTenant", ctx, tenantID, matches).Return([]crm.Activity{}, nil)
	activities.On("CountForTenant", ctx, tenantID, matches).Return(int64(0), nil)

	_, _, err := service.List(ctx, tenantID, ActivityListFilter{From: &from, To: &to})

	require.NoError(t, err)
	activities.AssertExpectations(t)
}

func TestActivityService_Update_UnchangedSkipsSave(t *testing.T) {
	activities := new(MockActivityRepository)
	service := NewActivityService(activities)

	ctx := context.Background()
	tenantID := newTestTenantID()
	activity, err := crm.NewActivity(tenantID, crm.ActivityType("email"), "Pricing sent")
	require.NoError(t, err)
	activity = loaded(activity)
	subject := "Pricing sent"

	activities.On("FindByIDForTenant", ctx, tenantID, activity.ID).Return(activity, nil)

	result, err := service.Update(ctx, tenantID, activity.ID, UpdateActivityRequest{Subject: &subject})

	require.NoError(t, err)
	assert.Equal(t, "Pricing sent", result.Subject)
	activities.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

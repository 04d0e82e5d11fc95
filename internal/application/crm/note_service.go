package crm

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/crm"
)

// NoteService handles note-related business operations
type NoteService struct {
	publisher
	noteRepo crm.NoteRepository
}

// NewNoteService creates a new NoteService
func NewNoteService(noteRepo crm.NoteRepository) *NoteService {
	return &NoteService{noteRepo: noteRepo}
}

// Create attaches a note to an entity
func (s *NoteService) Create(ctx context.Context, tenantID uuid.UUID, req CreateNoteRequest) (*NoteResponse, error) {
	note, err := crm.NewNote(tenantID, crm.NoteEntityType(req.EntityType), req.EntityID, req.Title, req.Content)
	if err != nil {
		return nil, err
	}
	note.IsPinned = req.IsPinned
	if req.AuthorID != nil {
		author := *req.AuthorID
		note.AuthorID = &author
		note.SetCreatedBy(author)
	}

	if err := s.noteRepo.Save(ctx, note); err != nil {
		return nil, err
	}
	s.publish(ctx, note)

	response := ToNoteResponse(note)
	return &response, nil
}

// GetByID retrieves a note by ID
func (s *NoteService) GetByID(ctx context.Context, tenantID, noteID uuid.UUID) (*NoteResponse, error) {
	note, err := s.noteRepo.FindByIDForTenant(ctx, tenantID, noteID)
	if err != nil {
		return nil, err
	}

	response := ToNoteResponse(note)
	return &response, nil
}

// List retrieves notes, pinned first
func (s *NoteService) List(ctx context.Context, tenantID uuid.UUID, filter NoteListFilter) ([]NoteResponse, int64, error) {
	domainFilter := filter.Filter("created_at")
	common.PutString(domainFilter, "entity_type", filter.EntityType)
	common.PutString(domainFilter, "entity_id", filter.EntityID)
	common.PutBool(domainFilter, "is_pinned", filter.IsPinned)

	notes, err := s.noteRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.noteRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToNoteResponses(notes), total, nil
}

// Update edits the title or content of a note
func (s *NoteService) Update(ctx context.Context, tenantID, noteID uuid.UUID, req UpdateNoteRequest) (*NoteResponse, error) {
	return s.mutate(ctx, tenantID, noteID, func(n *crm.Note) error {
		return n.Update(req.Title, req.Content)
	})
}

// Pin pins a note
func (s *NoteService) Pin(ctx context.Context, tenantID, noteID uuid.UUID) (*NoteResponse, error) {
	return s.mutate(ctx, tenantID, noteID, (*crm.Note).Pin)
}

// Unpin unpins a note
func (s *NoteService) Unpin(ctx context.Context, tenantID, noteID uuid.UUID) (*NoteResponse, error) {
	return s.mutate(ctx, tenantID, noteID, (*crm.Note).Unpin)
}

// Delete soft-deletes a note
func (s *NoteService) Delete(ctx context.Context, tenantID, noteID uuid.UUID) error {
	note, err := s.noteRepo.FindByIDForTenant(ctx, tenantID, noteID)
	if err != nil {
		return err
	}

	note.MarkDeleted()
	if err := s.noteRepo.DeleteForTenant(ctx, tenantID, noteID); err != nil {
		return err
	}
	s.publish(ctx, note)
	return nil
}

func (s *NoteService) mutate(ctx context.Context, tenantID, noteID uuid.UUID, fn func(*crm.Note) error) (*NoteResponse, error) {
	note, err := s.noteRepo.FindByIDForTenant(ctx, tenantID, noteID)
	if err != nil {
		return nil, err
	}
	if err := fn(note); err != nil {
		return nil, err
	}
	if !unchanged(note) {
		if err := s.noteRepo.SaveWithLock(ctx, note); err != nil {
			return nil, err
		}
		s.publish(ctx, note)
	}

	response := ToNoteResponse(note)
	return &response, nil
}

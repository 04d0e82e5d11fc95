package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// NoteEntityType names the kind of record a note is attached to
type NoteEntityType string

const (
	NoteEntityCustomer    NoteEntityType = "customer"
	NoteEntityContact     NoteEntityType = "contact"
	NoteEntityOpportunity NoteEntityType = "opportunity"
	NoteEntityQuote       NoteEntityType = "quote"
	NoteEntityTask        NoteEntityType = "task"
	NoteEntityCampaign    NoteEntityType = "campaign"
	NoteEntityDeployment  NoteEntityType = "deployment"
)

// IsValid reports whether the entity type accepts notes
func (t NoteEntityType) IsValid() bool {
	switch t {
	case NoteEntityCustomer, NoteEntityContact, NoteEntityOpportunity, NoteEntityQuote,
		NoteEntityTask, NoteEntityCampaign, NoteEntityDeployment:
		return true
	}
	return false
}

// Note is free text attached to another record
type Note struct {
	shared.TenantAggregateRoot
	EntityType NoteEntityType
	EntityID   uuid.UUID
	Title      string
	Content    string
	IsPinned   bool
	AuthorID   *uuid.UUID
}

// NewNote creates a note on the given entity
func NewNote(tenantID uuid.UUID, entityType NoteEntityType, entityID uuid.UUID, title, content string) (*Note, error) {
	if !entityType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_TYPE", "Notes cannot be attached to "+string(entityType))
	}
	if entityID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTITY_ID", "Entity ID is required")
	}
	if err := validateMaxLength("title", "Title", title, 200); err != nil {
		return nil, err
	}
	if err := validateRequired("content", "Content", content, 10000); err != nil {
		return nil, err
	}

	note := &Note{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EntityType:          entityType,
		EntityID:            entityID,
		Title:               strings.TrimSpace(title),
		Content:             content,
	}

	note.AddDomainEvent(newEntityEvent(EventTypeNoteCreated, AggregateTypeNote, &note.TenantAggregateRoot, nil))

	return note, nil
}

// Update edits the title and content
func (n *Note) Update(title, content *string) error {
	if title != nil {
		if err := validateMaxLength("title", "Title", *title, 200); err != nil {
			return err
		}
	}
	if content != nil {
		if err := validateRequired("content", "Content", *content, 10000); err != nil {
			return err
		}
	}

	changes := shared.Changes{}
	if title != nil {
		t := strings.TrimSpace(*title)
		changes.Track("title", n.Title, t)
		n.Title = t
	}
	if content != nil {
		changes.Track("content", n.Content, *content)
		n.Content = *content
	}
	if changes.Empty() {
		return nil
	}

	n.touch(changes)
	return nil
}

// Pin keeps the note at the top of its entity's list
func (n *Note) Pin() error {
	if n.IsPinned {
		return shared.NewInvalidStateError("Note is already pinned")
	}
	n.IsPinned = true
	n.touch(shared.Changes{"is_pinned": false})
	return nil
}

// Unpin removes the pin
func (n *Note) Unpin() error {
	if !n.IsPinned {
		return shared.NewInvalidStateError("Note is not pinned")
	}
	n.IsPinned = false
	n.touch(shared.Changes{"is_pinned": true})
	return nil
}

func (n *Note) touch(changes shared.Changes) {
	n.UpdatedAt = time.Now()
	n.IncrementVersion()
	n.AddDomainEvent(newEntityEvent(EventTypeNoteUpdated, AggregateTypeNote, &n.TenantAggregateRoot, changes))
}

// MarkDeleted records the deletion event
func (n *Note) MarkDeleted() {
	n.AddDomainEvent(newEntityEvent(EventTypeNoteDeleted, AggregateTypeNote, &n.TenantAggregateRoot, nil))
}

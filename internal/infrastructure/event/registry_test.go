package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register_SpecificTypes(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, "OpportunityCreated", "OpportunityUpdated")

	assert.Equal(t, handler, registry.GetHandlers("OpportunityCreated")[0])
	assert.Equal(t, handler, registry.GetHandlers("OpportunityUpdated")[0])
	assert.Empty(t, registry.GetHandlers("OpportunityDeleted"))
}

func TestHandlerRegistry_WildcardsFollowTypedHandlers(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(wildcard)
	registry.Register(typed, "QuoteCreated")

	handlers := registry.GetHandlers("QuoteCreated")
	assert.Len(t, handlers, 2)
	assert.Equal(t, typed, handlers[0])
	assert.Equal(t, wildcard, handlers[1])

	other := registry.GetHandlers("NoteCreated")
	assert.Len(t, other, 1)
	assert.Equal(t, wildcard, other[0])
}

func TestHandlerRegistry_RegisterTwiceIsNoop(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(handler, "TaskCreated")
	registry.Register(handler, "TaskCreated")
	registry.Register(wildcard)
	registry.Register(wildcard)

	assert.Len(t, registry.GetHandlers("TaskCreated"), 2)
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	first := newTestHandler()
	second := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(first, "CampaignExecuted")
	registry.Register(second, "CampaignExecuted")
	registry.Register(wildcard)

	registry.Unregister(first)
	registry.Unregister(wildcard)

	handlers := registry.GetHandlers("CampaignExecuted")
	assert.Len(t, handlers, 1)
	assert.Equal(t, second, handlers[0])
}

func TestHandlerRegistry_GetAllHandlers_NoDuplicates(t *testing.T) {
	registry := NewHandlerRegistry()
	multi := newTestHandler()
	other := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(multi, "WorkflowCreated", "WorkflowUpdated")
	registry.Register(other, "SettingChanged")
	registry.Register(wildcard)

	assert.Len(t, registry.GetAllHandlers(), 3)
}

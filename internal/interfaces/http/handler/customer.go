package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	crmapp "github.com/opencrm/backend/internal/application/crm"
)

// CustomerHandler serves /crm/customers
type CustomerHandler struct {
	BaseHandler
	customers *crmapp.CustomerService
}

// NewCustomerHandler creates a CustomerHandler
func NewCustomerHandler(customers *crmapp.CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// Create handles POST /crm/customers
func (h *CustomerHandler) Create(c *gin.Context) {
	var req crmapp.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	customer, err := h.customers.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// GetByID handles GET /crm/customers/:id
func (h *CustomerHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.customers.GetByID)
}

// List handles GET /crm/customers
func (h *CustomerHandler) List(c *gin.Context) {
	var filter crmapp.CustomerListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	customers, total, err := h.customers.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, customers, total, filter.ListQuery)
}

// Update handles PUT /crm/customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.UpdateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	customer, err := h.customers.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// ChangeStatus handles POST /crm/customers/:id/status
func (h *CustomerHandler) ChangeStatus(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.ChangeCustomerStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	customer, err := h.customers.ChangeStatus(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Delete handles DELETE /crm/customers/:id
func (h *CustomerHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.customers.Delete)
}

// Stats handles GET /crm/customers/stats
func (h *CustomerHandler) Stats(c *gin.Context) {
	stats, err := h.customers.Stats(c.Request.Context(), tenantID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// Contacts handles GET /crm/customers/:id/contacts
func (h *CustomerHandler) Contacts(c *gin.Context) {
	id, query, ok := h.subListArgs(c)
	if !ok {
		return
	}
	contacts, total, err := h.customers.Contacts(c.Request.Context(), tenantID(c), id, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, contacts, total, query)
}

// Opportunities handles GET /crm/customers/:id/opportunities
func (h *CustomerHandler) Opportunities(c *gin.Context) {
	id, query, ok := h.subListArgs(c)
	if !ok {
		return
	}
	opps, total, err := h.customers.Opportunities(c.Request.Context(), tenantID(c), id, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, opps, total, query)
}

// Timeline handles GET /crm/customers/:id/timeline, newest activity first
func (h *CustomerHandler) Timeline(c *gin.Context) {
	id, query, ok := h.subListArgs(c)
	if !ok {
		return
	}
	activities, total, err := h.customers.Timeline(c.Request.Context(), tenantID(c), id, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, activities, total, query)
}

func (h *CustomerHandler) subListArgs(c *gin.Context) (id uuid.UUID, query common.ListQuery, ok bool) {
	if id, ok = h.ParseID(c, "id"); !ok {
		return id, query, false
	}
	ok = h.BindQuery(c, &query)
	return id, query, ok
}

package crm

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// QuoteStatus represents the lifecycle state of a quote
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

var (
	hundred = decimal.NewFromInt(100)
)

// IsValid reports whether the status is known
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired:
		return true
	}
	return false
}

// IsFinal returns true when the quote can no longer change
func (s QuoteStatus) IsFinal() bool {
	return s == QuoteStatusAccepted || s == QuoteStatusRejected || s == QuoteStatusExpired
}

// QuoteItem is a single priced line on a quote
type QuoteItem struct {
	ID              uuid.UUID
	QuoteID         uuid.UUID
	ProductName     string
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	LineTotal       decimal.Decimal
	SortOrder       int
}

// NewQuoteItem validates and prices a quote line
func NewQuoteItem(productName, description string, quantity, unitPrice, discountPercent decimal.Decimal) (QuoteItem, error) {
	if err := validateRequired("product_name", "Product name", productName, 200); err != nil {
		return QuoteItem{}, err
	}
	if !quantity.IsPositive() {
		return QuoteItem{}, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be greater than zero")
	}
	if unitPrice.IsNegative() {
		return QuoteItem{}, shared.NewDomainError("INVALID_UNIT_PRICE", "Unit price cannot be negative")
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return QuoteItem{}, shared.NewDomainError("INVALID_DISCOUNT", "Discount must be between 0 and 100 percent")
	}

	item := QuoteItem{
		ID:              uuid.New(),
		ProductName:     strings.TrimSpace(productName),
		Description:     description,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		DiscountPercent: discountPercent,
	}
	item.LineTotal = item.Gross().Sub(item.Discount()).Round(2)
	return item, nil
}

// Gross returns quantity x unit price
func (i QuoteItem) Gross() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Discount returns the discount taken on the line
func (i QuoteItem) Discount() decimal.Decimal {
	return i.Gross().Mul(i.DiscountPercent).Div(hundred)
}

// Quote is a priced offer sent to a customer
type Quote struct {
	shared.TenantAggregateRoot
	QuoteNumber     string
	CustomerID      uuid.UUID
	OpportunityID   *uuid.UUID
	Title           string
	Status          QuoteStatus
	ValidUntil      *time.Time
	Currency        string
	Items           []QuoteItem
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
	Terms           string
	Notes           string
	SentAt          *time.Time
	AcceptedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string
}

// QuotePatch carries the optional fields of a quote update.
// A non-nil Items replaces every line.
type QuotePatch struct {
	Title            *string
	OpportunityID    *uuid.UUID
	ClearOpportunity bool
	ValidUntil       *time.Time
	Currency         *string
	TaxRate          *decimal.Decimal
	Terms            *string
	Notes            *string
	Items            []QuoteItem
}

// GenerateQuoteNumber returns a number in the form Q-YYYYMMDD-XXXXXX
func GenerateQuoteNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("Q-%s-%s", at.Format("20060102"), suffix)
}

// NewQuote creates a draft quote for a customer
func NewQuote(tenantID, customerID uuid.UUID, title string) (*Quote, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Quote must belong to a customer")
	}
	if err := validateMaxLength("title", "Title", title, 200); err != nil {
		return nil, err
	}

	now := time.Now()
	quote := &Quote{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		QuoteNumber:         GenerateQuoteNumber(now),
		CustomerID:          customerID,
		Title:               strings.TrimSpace(title),
		Status:              QuoteStatusDraft,
		Currency:            DefaultCurrency,
		Items:               []QuoteItem{},
		TaxRate:             decimal.Zero,
	}
	quote.Recalculate()

	quote.AddDomainEvent(newEntityEvent(EventTypeQuoteCreated, AggregateTypeQuote, &quote.TenantAggregateRoot, nil))

	return quote, nil
}

// Recalculate derives subtotal, discount, tax and total from the items
func (q *Quote) Recalculate() {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for i := range q.Items {
		q.Items[i].QuoteID = q.ID
		q.Items[i].SortOrder = i
		subtotal = subtotal.Add(q.Items[i].Gross())
		discount = discount.Add(q.Items[i].Discount())
	}
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(q.TaxRate).Div(hundred)

	q.Subtotal = subtotal.Round(2)
	q.DiscountAmount = discount.Round(2)
	q.TaxAmount = tax.Round(2)
	q.Total = taxable.Add(tax).Round(2)
}

// Apply sets the patched fields without bumping the version
func (q *Quote) Apply(p QuotePatch) error {
	_, err := q.apply(p)
	return err
}

// Update applies a patch to a draft quote and bumps the version
func (q *Quote) Update(p QuotePatch) error {
	changes, err := q.apply(p)
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}

	q.UpdatedAt = time.Now()
	q.IncrementVersion()

	q.AddDomainEvent(newEntityEvent(EventTypeQuoteUpdated, AggregateTypeQuote, &q.TenantAggregateRoot, changes))

	return nil
}

func (q *Quote) apply(p QuotePatch) (shared.Changes, error) {
	if q.Status != QuoteStatusDraft {
		return nil, shared.NewInvalidStateError("Only draft quotes can be edited")
	}
	if p.Title != nil {
		if err := validateMaxLength("title", "Title", *p.Title, 200); err != nil {
			return nil, err
		}
	}
	if p.Currency != nil {
		if err := validateCurrency(*p.Currency); err != nil {
			return nil, err
		}
	}
	if p.TaxRate != nil {
		if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(hundred) {
			return nil, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate must be between 0 and 100 percent")
		}
	}

	changes := shared.Changes{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		changes.Track("title", q.Title, title)
		q.Title = title
	}
	if p.ClearOpportunity {
		changes.Track("opportunity_id", formatID(q.OpportunityID), "")
		q.OpportunityID = nil
	} else if p.OpportunityID != nil {
		id := *p.OpportunityID
		changes.Track("opportunity_id", formatID(q.OpportunityID), id.String())
		q.OpportunityID = &id
	}
	if p.ValidUntil != nil {
		v := *p.ValidUntil
		changes.Track("valid_until", formatTime(q.ValidUntil), formatTime(&v))
		q.ValidUntil = &v
	}
	if p.Currency != nil {
		changes.Track("currency", q.Currency, *p.Currency)
		q.Currency = *p.Currency
	}
	if p.Terms != nil {
		changes.Track("terms", q.Terms, *p.Terms)
		q.Terms = *p.Terms
	}
	if p.Notes != nil {
		changes.Track("notes", q.Notes, *p.Notes)
		q.Notes = *p.Notes
	}

	oldTotal := q.Total.String()
	if p.TaxRate != nil {
		changes.Track("tax_rate", q.TaxRate.String(), p.TaxRate.String())
		q.TaxRate = *p.TaxRate
	}
	if p.Items != nil {
		changes.Track("items", len(q.Items), -1)
		q.Items = append([]QuoteItem(nil), p.Items...)
	}
	q.Recalculate()
	changes.Track("total", oldTotal, q.Total.String())

	return changes, nil
}

// Send moves a draft quote with at least one item to sent
func (q *Quote) Send() error {
	if q.Status != QuoteStatusDraft {
		return shared.NewInvalidStateError("Only draft quotes can be sent")
	}
	if len(q.Items) == 0 {
		return shared.NewDomainError("EMPTY_QUOTE", "Quote must have at least one item before sending")
	}

	now := time.Now()
	q.SentAt = &now
	q.transition(QuoteStatusSent)
	return nil
}

// Accept marks a sent quote as accepted
func (q *Quote) Accept() error {
	if q.Status != QuoteStatusSent {
		return shared.NewInvalidStateError("Only sent quotes can be accepted")
	}

	now := time.Now()
	q.AcceptedAt = &now
	q.transition(QuoteStatusAccepted)
	return nil
}

// Reject marks a sent quote as rejected
func (q *Quote) Reject(reason string) error {
	if q.Status != QuoteStatusSent {
		return shared.NewInvalidStateError("Only sent quotes can be rejected")
	}

	now := time.Now()
	q.RejectedAt = &now
	q.RejectionReason = strings.TrimSpace(reason)
	q.transition(QuoteStatusRejected)
	return nil
}

// Expire marks a draft or sent quote as expired
func (q *Quote) Expire() error {
	if q.Status != QuoteStatusDraft && q.Status != QuoteStatusSent {
		return shared.NewInvalidStateError("Only draft or sent quotes can expire")
	}
	q.transition(QuoteStatusExpired)
	return nil
}

// IsPastValidity reports whether valid_until lies before now
func (q *Quote) IsPastValidity(now time.Time) bool {
	return q.ValidUntil != nil && q.ValidUntil.Before(now)
}

func (q *Quote) transition(next QuoteStatus) {
	old := q.Status
	q.Status = next
	q.UpdatedAt = time.Now()
	q.IncrementVersion()

	q.AddDomainEvent(&QuoteStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteStatusChanged, AggregateTypeQuote, q.ID, q.TenantID),
		QuoteID:         q.ID,
		QuoteNumber:     q.QuoteNumber,
		OpportunityID:   q.OpportunityID,
		OldStatus:       old,
		NewStatus:       next,
		Total:           q.Total.String(),
	})
}

// MarkDeleted records the deletion event
func (q *Quote) MarkDeleted() {
	q.AddDomainEvent(newEntityEvent(EventTypeQuoteDeleted, AggregateTypeQuote, &q.TenantAggregateRoot, nil))
}

package crm

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern    = regexp.MustCompile(`^[\d\s\-\(\)\+]+$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

func invalid(field, message string) *shared.DomainError {
	return shared.NewDomainError("INVALID_"+strings.ToUpper(field), message)
}

func validateRequired(field, label, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, label+" cannot be empty")
	}
	return validateMaxLength(field, label, value, max)
}

func validateMaxLength(field, label, value string, max int) error {
	if len(value) > max {
		return invalid(field, label+" is too long")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > 200 || !emailPattern.MatchString(email) {
		return invalid("email", "Invalid email format")
	}
	return nil
}

func validatePhone(field, phone string) error {
	if phone == "" {
		return nil
	}
	if len(phone) > 50 || !phonePattern.MatchString(phone) {
		return invalid(field, "Invalid phone number format")
	}
	return nil
}

func validateCurrency(currency string) error {
	if !currencyPattern.MatchString(currency) {
		return invalid("currency", "Currency must be a 3-letter ISO code")
	}
	return nil
}

func validateNonNegative(field, label string, value decimal.Decimal) error {
	if value.IsNegative() {
		return invalid(field, label+" cannot be negative")
	}
	return nil
}

// NormalizeTags lower-cases, trims, deduplicates and sorts tags
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

package automation

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// MatchType decides how a rule combines its conditions
type MatchType string

const (
	MatchAll MatchType = "all"
	MatchAny MatchType = "any"
)

// ActionType names what a matched rule does
type ActionType string

const (
	ActionUpdateField ActionType = "update_field"
	ActionSetStatus   ActionType = "set_status"
	ActionCreateTask  ActionType = "create_task"
	ActionAddNote     ActionType = "add_note"
	ActionLogActivity ActionType = "log_activity"
	ActionWebhook     ActionType = "webhook"
)

// requiredParams lists the params each action cannot run without
var requiredParams = map[ActionType][]string{
	ActionUpdateField: {"field", "value"},
	ActionSetStatus:   {"status"},
	ActionCreateTask:  {"title"},
	ActionAddNote:     {"content"},
	ActionLogActivity: {"subject"},
	ActionWebhook:     {"url"},
}

// Action is a side effect run when a rule matches
type Action struct {
	Type   ActionType     `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Validate checks the action type and its required params
func (a Action) Validate() error {
	required, ok := requiredParams[a.Type]
	if !ok {
		return shared.NewDomainError("INVALID_ACTION", "Unknown action type '"+string(a.Type)+"'")
	}
	for _, key := range required {
		v, present := a.Params[key]
		if !present || v == nil || stringify(v) == "" {
			return shared.NewDomainError("INVALID_ACTION", "Action '"+string(a.Type)+"' requires param '"+key+"'")
		}
	}
	if a.Type == ActionWebhook {
		u, err := url.Parse(a.StringParam("url"))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return shared.NewDomainError("INVALID_ACTION", "Webhook URL must be an absolute http or https URL")
		}
	}
	return nil
}

// StringParam returns a param as a string, or "" when absent
func (a Action) StringParam(key string) string {
	return stringify(a.Params[key])
}

// IntParam returns a numeric param, or def when absent or not numeric
func (a Action) IntParam(key string, def int) int {
	d, ok := toDecimal(a.Params[key])
	if !ok {
		return def
	}
	return int(d.IntPart())
}

// Rule is an ordered condition set with the actions it triggers
type Rule struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Order       int         `json:"order"`
	MatchType   MatchType   `json:"match_type"`
	Conditions  []Condition `json:"conditions"`
	Expression  string      `json:"expression,omitempty"`
	Actions     []Action    `json:"actions"`
	StopOnMatch bool        `json:"stop_on_match"`
}

// NewRule builds and validates a rule
func NewRule(name string, order int, matchType MatchType, conditions []Condition, expression string, actions []Action, stopOnMatch bool) (Rule, error) {
	if matchType == "" {
		matchType = MatchAll
	}
	rule := Rule{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Order:       order,
		MatchType:   matchType,
		Conditions:  conditions,
		Expression:  strings.TrimSpace(expression),
		Actions:     actions,
		StopOnMatch: stopOnMatch,
	}
	if rule.Conditions == nil {
		rule.Conditions = []Condition{}
	}
	if rule.Actions == nil {
		rule.Actions = []Action{}
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Validate checks the rule and every condition and action in it
func (r Rule) Validate() error {
	if len(r.Name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Rule name is too long")
	}
	if r.MatchType != MatchAll && r.MatchType != MatchAny {
		return shared.NewDomainError("INVALID_MATCH_TYPE", "Match type must be 'all' or 'any'")
	}
	if r.Order < 0 {
		return shared.NewDomainError("INVALID_ORDER", "Rule order cannot be negative")
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, a := range r.Actions {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MatchConditions evaluates the conditions with the rule's match type.
// A rule without conditions matches.
func (r Rule) MatchConditions(entityType string, current, previous Snapshot) bool {
	if len(r.Conditions) == 0 {
		return true
	}
	for _, c := range r.Conditions {
		ok := c.Evaluate(entityType, current, previous)
		if r.MatchType == MatchAny && ok {
			return true
		}
		if r.MatchType == MatchAll && !ok {
			return false
		}
	}
	return r.MatchType == MatchAll
}

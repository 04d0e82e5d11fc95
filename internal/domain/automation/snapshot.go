package automation

import (
	"strings"
)

// Snapshot is a JSON-shaped view of an entity used for rule evaluation
type Snapshot map[string]any

// Lookup resolves a dot path such as "status", "customer.status" or "config.region".
// A leading segment equal to entityType is ignored.
func (s Snapshot) Lookup(entityType, path string) (any, bool) {
	if s == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	if len(parts) > 1 && parts[0] == entityType {
		if _, shadowed := s[parts[0]]; !shadowed {
			parts = parts[1:]
		}
	}

	var current any = map[string]any(s)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Clone returns a shallow copy
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ID returns the "id" field as a string
func (s Snapshot) ID() string {
	if v, ok := s["id"].(string); ok {
		return v
	}
	return ""
}

package settings

import "strings"

// Scope names a storage bucket for option records. Higher priority values
// represent stronger layers when records are resolved together.
type Scope struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

const (
	ScopeNameDefaults = "defaults"
	ScopeNameSite     = "site"
	ScopeNameTenant   = "tenant"
	ScopeNameItem     = "item"

	// Priorities used when stored values are layered over defaults.
	ScopePriorityDefaults = 0
	ScopePrioritySite     = 100
	ScopePriorityTenant   = 200
	ScopePriorityItem     = 300
)

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	label    string
	metadata map[string]any
}

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.label = label
	}
}

// WithScopeMetadata attaches metadata to the scope. The map is copied.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(cfg *scopeConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope. Validation is deferred to Stack construction.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Scope{
		Name:     name,
		Label:    cfg.label,
		Priority: priority,
		Metadata: copyMetadata(cfg.metadata),
	}
}

// SiteScope is the network wide bucket shared by every tenant.
func SiteScope() Scope {
	return NewScope(ScopeNameSite, ScopePrioritySite, WithScopeLabel("Site"))
}

// TenantScope is the bucket local to one tenant.
func TenantScope(tenantID string) Scope {
	return NewScope(ScopeNameTenant, ScopePriorityTenant,
		WithScopeLabel("Tenant"),
		WithScopeMetadata(map[string]any{"tenant_id": strings.TrimSpace(tenantID)}),
	)
}

// DefaultsScope labels the layer built from field defaults.
func DefaultsScope() Scope {
	return NewScope(ScopeNameDefaults, ScopePriorityDefaults, WithScopeLabel("Defaults"))
}

// ItemScope labels the layer read from one content item's meta.
func ItemScope(itemID string) Scope {
	return NewScope(ScopeNameItem, ScopePriorityItem,
		WithScopeLabel("Item"),
		WithScopeMetadata(map[string]any{"item_id": itemID}),
	)
}

// TenantID returns the tenant identifier carried in metadata.
func (s Scope) TenantID() string {
	id, _ := s.Metadata["tenant_id"].(string)
	return id
}

func (s Scope) clone() Scope {
	return Scope{
		Name:     s.Name,
		Label:    s.Label,
		Priority: s.Priority,
		Metadata: copyMetadata(s.Metadata),
	}
}

func (s Scope) isZero() bool {
	return s.Name == "" && s.Label == "" && s.Priority == 0 && len(s.Metadata) == 0
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}

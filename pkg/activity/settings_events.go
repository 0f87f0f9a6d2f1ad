package activity

import (
	"sort"
	"strings"
	"time"
)

// Verbs and object types emitted for settings changes.
const (
	VerbSettingsUpdated     = "settings.updated"
	VerbSettingsReset       = "settings.reset"
	VerbItemSettingsUpdated = "settings.item.updated"
	VerbItemSettingsReset   = "settings.item.reset"

	ObjectTypeSettings     = "settings"
	ObjectTypeItemSettings = "settings.item"
)

// ScopeContext captures the storage scope a change was written to.
type ScopeContext struct {
	Name       string
	Priority   int
	Metadata   map[string]any
	SnapshotID string
}

// SettingsEventInput describes one completed save or reset.
type SettingsEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	OptionName string
	Location   string
	// ItemID and MetaKey are set for metabox locations.
	ItemID      string
	MetaKey     string
	ChangedKeys []string
	DeleteAll   bool
	Scope       ScopeContext
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildSettingsUpdatedEvent describes a settings page save.
func BuildSettingsUpdatedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsUpdated, ObjectTypeSettings, input)
}

// BuildSettingsResetEvent describes a reset to defaults.
func BuildSettingsResetEvent(input SettingsEventInput) Event {
	event := buildSettingsEvent(VerbSettingsReset, ObjectTypeSettings, input)
	event.Metadata["delete_all"] = input.DeleteAll
	return event
}

// BuildItemSettingsUpdatedEvent describes a metabox save on one item.
func BuildItemSettingsUpdatedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbItemSettingsUpdated, ObjectTypeItemSettings, input)
}

// BuildItemSettingsResetEvent describes a metabox record being cleared.
func BuildItemSettingsResetEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbItemSettingsReset, ObjectTypeItemSettings, input)
}

func buildSettingsEvent(verb, objectType string, input SettingsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["option_name"] = input.OptionName
	metadata["location"] = input.Location
	if input.ItemID != "" {
		metadata["item_id"] = input.ItemID
		metadata["meta_key"] = input.MetaKey
	}
	if len(input.ChangedKeys) > 0 {
		keys := append([]string(nil), input.ChangedKeys...)
		sort.Strings(keys)
		metadata["changed_keys"] = keys
	}
	if input.Scope.Name != "" {
		metadata["scope_name"] = input.Scope.Name
		metadata["scope_priority"] = input.Scope.Priority
		if len(input.Scope.Metadata) > 0 {
			metadata["scope_metadata"] = cloneMap(input.Scope.Metadata)
		}
	}
	if input.Scope.SnapshotID != "" {
		metadata["snapshot_id"] = input.Scope.SnapshotID
	}

	tenantID := strings.TrimSpace(input.TenantID)
	if tenantID == "" {
		if id, ok := input.Scope.Metadata["tenant_id"].(string); ok {
			tenantID = id
		}
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   tenantID,
		ObjectType: objectType,
		ObjectID:   objectID(input),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// objectID is "<option>/<location>" for pages and "<item>/<meta key>" for
// metaboxes.
func objectID(input SettingsEventInput) string {
	if input.ItemID != "" {
		key := input.MetaKey
		if key == "" {
			key = input.Location
		}
		return strings.TrimSpace(input.ItemID) + "/" + key
	}
	id := strings.TrimSpace(input.OptionName)
	if id == "" {
		id = ObjectTypeSettings
	}
	if input.Location != "" {
		id += "/" + input.Location
	}
	return id
}

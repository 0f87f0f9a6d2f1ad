// Package usersink records settings activity in a go-users activity sink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-settings/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps event onto an ActivityRecord. Identifiers that are not UUIDs
// are stored as uuid.Nil and kept verbatim in the record data.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := map[string]any{}
	for key, value := range normalized.Metadata {
		data[key] = value
	}
	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID, "actor_ref", data),
		UserID:     parseUUID(normalized.UserID, "user_ref", data),
		TenantID:   parseUUID(normalized.TenantID, "tenant_ref", data),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		OccurredAt: normalized.OccurredAt,
	}
	if len(data) > 0 {
		record.Data = data
	}
	return h.Sink.Log(ctx, record)
}

func parseUUID(input, refKey string, data map[string]any) uuid.UUID {
	value := strings.TrimSpace(input)
	if value == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		data[refKey] = value
		return uuid.Nil
	}
	return id
}

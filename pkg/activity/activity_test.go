package activity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeEventTrimsAndClones(t *testing.T) {
	meta := map[string]any{"changed_keys": []string{"a"}}
	evt := Event{
		Verb:       " settings.updated ",
		TenantID:   " acme ",
		ObjectType: " settings ",
		ObjectID:   " opt/page ",
		Metadata:   meta,
	}
	got := NormalizeEvent(evt)
	if got.Verb != "settings.updated" || got.TenantID != "acme" || got.ObjectID != "opt/page" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["changed_keys"].([]string)[0] = "changed"
	if meta["changed_keys"].([]string)[0] != "a" {
		t.Fatalf("original metadata mutated: %+v", meta)
	}
}

func TestHooksSkipInvalidAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom := errors.New("boom")
	hooks := Hooks{
		capture,
		nil,
		HookFunc(func(context.Context, Event) error { return boom }),
	}
	if err := hooks.Notify(context.Background(), Event{Verb: "x"}); err != nil {
		t.Fatalf("invalid event should be dropped, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("invalid event reached hook")
	}
	err := hooks.Notify(nil, Event{Verb: "v", ObjectType: "t", ObjectID: "1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(capture.Events()) != 1 {
		t.Fatalf("expected capture to run before failing hook")
	}
}

func TestEmitterDefaultsChannelAndReportsErrors(t *testing.T) {
	capture := &CaptureHook{Err: errors.New("sink down")}
	var reported error
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, OnError: func(_ Event, err error) {
		reported = err
	}})
	err := emitter.Emit(context.Background(), Event{Verb: "v", ObjectType: "t", ObjectID: "1"})
	if err == nil || reported == nil {
		t.Fatalf("expected error returned and reported, got %v / %v", err, reported)
	}
	if got := capture.Events()[0].Channel; got != DefaultChannel {
		t.Fatalf("expected default channel, got %q", got)
	}
}

func TestEmitterDisabled(t *testing.T) {
	capture := &CaptureHook{}
	if NewEmitter(Hooks{capture}, Config{}).Enabled() {
		t.Fatalf("emitter should be disabled without Enabled")
	}
	if NewEmitter(nil, Config{Enabled: true}).Enabled() {
		t.Fatalf("emitter should be disabled without hooks")
	}
	var nilEmitter *Emitter
	if err := nilEmitter.Emit(context.Background(), Event{}); err != nil {
		t.Fatalf("nil emitter should no-op, got %v", err)
	}
}

func TestBuildSettingsEvents(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := BuildSettingsUpdatedEvent(SettingsEventInput{
		OptionName:  "sfwd_options",
		Location:    "course_settings",
		ChangedKeys: []string{"b", "a"},
		Scope: ScopeContext{
			Name:       "tenant",
			Priority:   200,
			Metadata:   map[string]any{"tenant_id": "acme"},
			SnapshotID: "snap-1",
		},
		OccurredAt: at,
	})
	if updated.Verb != VerbSettingsUpdated || updated.ObjectID != "sfwd_options/course_settings" {
		t.Fatalf("unexpected event %+v", updated)
	}
	if updated.TenantID != "acme" {
		t.Fatalf("expected tenant from scope, got %q", updated.TenantID)
	}
	if !reflect.DeepEqual(updated.Metadata["changed_keys"], []string{"a", "b"}) {
		t.Fatalf("expected sorted changed keys, got %v", updated.Metadata["changed_keys"])
	}
	if updated.Metadata["snapshot_id"] != "snap-1" {
		t.Fatalf("missing snapshot id: %v", updated.Metadata)
	}

	reset := BuildSettingsResetEvent(SettingsEventInput{OptionName: "sfwd_options", DeleteAll: true})
	if reset.ObjectID != "sfwd_options" || reset.Metadata["delete_all"] != true {
		t.Fatalf("unexpected reset event %+v", reset)
	}

	item := BuildItemSettingsUpdatedEvent(SettingsEventInput{ItemID: "42", MetaKey: "_sfwd-lessons", Location: "sfwd-lessons"})
	if item.ObjectType != ObjectTypeItemSettings || item.ObjectID != "42/_sfwd-lessons" {
		t.Fatalf("unexpected item event %+v", item)
	}
}

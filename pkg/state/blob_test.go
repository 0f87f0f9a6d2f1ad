package state_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/state"
)

func TestModulesRoundTrip(t *testing.T) {
	blob := settings.Values{"top": "1"}
	blob = state.WithModule(blob, "b_options", settings.Values{"k": "b"})
	blob = state.WithModule(blob, "a_options", settings.Values{"k": "a"})

	modules := state.ModulesOf(blob)
	if diff := cmp.Diff([]string{"a_options", "b_options"}, modules.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if blob["top"] != "1" {
		t.Fatalf("top level keys must be kept")
	}

	blob = state.WithoutModule(blob, "a_options")
	blob = state.WithoutModule(blob, "b_options")
	if diff := cmp.Diff(settings.Values{"top": "1"}, blob); diff != "" {
		t.Fatalf("empty modules key should be dropped (-want +got):\n%s", diff)
	}
}

func TestRecordTopLevel(t *testing.T) {
	record := state.Record{Name: "p_options"}
	if record.Key() != "p_options" || record.Nested() {
		t.Fatalf("unexpected record %+v", record)
	}
	blob := settings.Values{
		"p_title":        "x",
		state.ModulesKey: map[string]any{"q_options": map[string]any{"k": "q"}},
	}
	if diff := cmp.Diff(settings.Values{"p_title": "x"}, record.Extract(blob)); diff != "" {
		t.Fatalf("extract mismatch (-want +got):\n%s", diff)
	}

	next := record.Inject(blob, settings.Values{"p_title": "y"})
	if next["p_title"] != "y" || state.ModulesOf(next)["q_options"]["k"] != "q" {
		t.Fatalf("inject must keep nested modules, got %v", next)
	}

	rest, empty := record.Remove(next)
	if empty || len(state.ModulesOf(rest)) != 1 || rest["p_title"] != nil {
		t.Fatalf("remove should keep modules only, got %v empty=%v", rest, empty)
	}
	if _, empty := record.Remove(settings.Values{"p_title": "y"}); !empty {
		t.Fatalf("expected empty record after remove")
	}
}

func TestRecordNested(t *testing.T) {
	record := state.Record{Name: "p_options", Parent: "shared"}
	if record.Key() != "shared" || !record.Nested() {
		t.Fatalf("unexpected record %+v", record)
	}
	if (state.Record{Name: "shared", Parent: "shared"}).Nested() {
		t.Fatalf("module named after its parent owns the top level")
	}

	blob := record.Inject(settings.Values{"owner": "x"}, settings.Values{"p_title": "t"})
	if diff := cmp.Diff(settings.Values{"p_title": "t"}, record.Extract(blob)); diff != "" {
		t.Fatalf("extract mismatch (-want +got):\n%s", diff)
	}
	rest, empty := record.Remove(blob)
	if empty || rest["owner"] != "x" {
		t.Fatalf("parent keys must survive, got %v", rest)
	}
	if len(record.Extract(rest)) != 0 {
		t.Fatalf("module should be gone")
	}
}

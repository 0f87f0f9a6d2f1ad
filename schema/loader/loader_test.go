package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	settings "github.com/goliatone/go-settings"
)

func TestLoadFormatsAgree(t *testing.T) {
	base, err := Load(filepath.Join("testdata", "course.yaml"))
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	for _, name := range []string{"course.toml", "course.json"} {
		t.Run(name, func(t *testing.T) {
			registry, err := Load(filepath.Join("testdata", name))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			for _, location := range []string{"", "course_settings", "course_meta"} {
				if diff := cmp.Diff(base.Fields(location), registry.Fields(location)); diff != "" {
					t.Fatalf("fields of %q differ from yaml (-yaml +%s):\n%s", location, name, diff)
				}
			}
			if diff := cmp.Diff(base.Locations(), registry.Locations()); diff != "" {
				t.Fatalf("locations differ (-yaml +%s):\n%s", name, diff)
			}
		})
	}
}

func TestLoadBuildsRegistry(t *testing.T) {
	registry, err := Load(filepath.Join("testdata", "course.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := registry.OptionName(); got != "sfwd_cpt_options" {
		t.Fatalf("unexpected option name %q", got)
	}
	if registry.Kind("course_meta") != settings.LocationMetabox {
		t.Fatalf("expected metabox location")
	}
	if diff := cmp.Diff([]settings.Tab{{Key: "general", Name: "General"}}, registry.Tabs("course_settings")); diff != "" {
		t.Fatalf("tabs mismatch (-want +got):\n%s", diff)
	}

	priceType, ok := registry.Field("", "sfwd-courses_course_price_type")
	if !ok {
		t.Fatalf("price type field missing")
	}
	wantChoices := []settings.Choice{{Value: "open", Label: "Open"}, {Value: "closed", Label: "Closed"}, {Value: "paynow", Label: "Buy Now"}}
	if diff := cmp.Diff(wantChoices, priceType.Choices); diff != "" {
		t.Fatalf("choice line not expanded (-want +got):\n%s", diff)
	}

	lessons, ok := registry.Field("", "sfwd-courses_course_lessons")
	if !ok {
		t.Fatalf("lessons field missing")
	}
	wantLessons := []settings.Choice{{Value: "1", Label: "Lesson One"}, {Value: "2", Label: "Lesson Two"}}
	if diff := cmp.Diff(wantLessons, lessons.Choices); diff != "" {
		t.Fatalf("map default not expanded (-want +got):\n%s", diff)
	}
	if lessons.Default != nil {
		t.Fatalf("map default should be consumed, got %v", lessons.Default)
	}

	points, _ := registry.Field("", "sfwd-courses_course_points_enabled")
	if points.Type != settings.FieldCheckbox {
		t.Fatalf("missing type should default to checkbox, got %q", points.Type)
	}

	defaults := registry.DefaultOptions("course_meta")
	if defaults["sfwd-courses_course_meta_course_price"] != "5" {
		t.Fatalf("unexpected metabox defaults %v", defaults)
	}
	if _, ok := defaults["sfwd-courses_course_meta_course_materials"]; !ok {
		t.Fatalf("expected referenced global in metabox defaults %v", defaults)
	}
	if _, ok := registry.DefaultOptions("")["Submit"]; ok {
		t.Fatalf("submit button must not be saved")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		data   string
		is     error
		text   string
	}{
		{name: "missing prefix", format: FormatYAML, data: "fields: []\n", is: ErrPrefixRequired},
		{name: "unknown field", format: FormatJSON, data: `{"prefix":"p_","fields":[{"key":"a","colour":"red"}]}`, text: "colour"},
		{name: "duplicate key", format: FormatTOML, data: "prefix = \"p_\"\n[[fields]]\nkey = \"a\"\n[[fields]]\nkey = \"a\"\n", is: settings.ErrDuplicateKey},
		{name: "syntax", format: FormatYAML, data: "prefix: [", text: "parse inline.yaml"},
		{name: "format", format: Format("ini"), data: "", is: ErrUnsupportedFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("inline."+string(tc.format), tc.format, []byte(tc.data))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("expected %v, got %v", tc.is, err)
			}
			if tc.text != "" && !strings.Contains(err.Error(), tc.text) {
				t.Fatalf("expected %q in %v", tc.text, err)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.yml": FormatYAML, "b.YAML": FormatYAML, "c.toml": FormatTOML, "d.json": FormatJSON} {
		got, err := FormatOf(path)
		if err != nil || got != want {
			t.Fatalf("FormatOf(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := FormatOf("schema.ini"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	writeSchema(t, path, "prefix: p_\nfields:\n  - key: title\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *settings.Registry, 64)
	failures := make(chan error, 64)
	done := make(chan error, 1)
	go func() {
		done <- WatchWithDebounce(ctx, path, 10*time.Millisecond,
			func(r *settings.Registry) { changes <- r },
			func(err error) { failures <- err },
		)
	}()

	updated := "prefix: p_\nfields:\n  - key: title\n  - key: subtitle\n"
	registry := awaitChange(t, path, updated, changes)
	if _, ok := registry.Field("", "p_subtitle"); !ok {
		t.Fatalf("reloaded registry is missing the new field")
	}

	writeSchema(t, path, "prefix: [")
	select {
	case err := <-failures:
		if !strings.Contains(err.Error(), "schema.yaml") {
			t.Fatalf("expected path in error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for load error")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Watch did not stop")
	}
}

func TestWatchRequiresCallback(t *testing.T) {
	if err := Watch(context.Background(), "schema.yaml", nil, nil); err == nil {
		t.Fatalf("expected error without onChange")
	}
}

// awaitChange rewrites path until the watcher reports a reload, covering
// the window before the watch is registered.
func awaitChange(t *testing.T, path, content string, changes <-chan *settings.Registry) *settings.Registry {
	t.Helper()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case registry := <-changes:
			return registry
		case <-tick.C:
			writeSchema(t, path, content)
		case <-deadline:
			t.Fatalf("timed out waiting for reload")
			return nil
		}
	}
}

func writeSchema(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
}

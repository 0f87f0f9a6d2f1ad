package settings

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSanitizeValueRules(t *testing.T) {
	s := NewSanitizer()
	cases := []struct {
		name string
		kind FieldType
		in   any
		want any
	}{
		{name: "text strips tags", kind: FieldText, in: `hello <script>alert(1)</script>world`, want: "hello world"},
		{name: "textarea strips tags", kind: FieldTextarea, in: `<p>one</p> two`, want: "one two"},
		{name: "select escapes quotes", kind: FieldSelect, in: `say "hi"`, want: "say &quot;hi&quot;"},
		{name: "html keeps safe markup", kind: FieldHTML, in: `<b>bold</b><script>x</script>`, want: "<b>bold</b>"},
		{name: "checkbox escapes", kind: FieldCheckbox, in: `<on>`, want: "&lt;on&gt;"},
		{name: "multiselect encodes each", kind: FieldMultiSelect, in: []any{"a b", "c&d"}, want: []any{"a+b", "c%26d"}},
		{name: "filename", kind: FieldFilename, in: "../my file?.txt", want: "my-file.txt"},
		{name: "url keeps http", kind: FieldURL, in: "https://example.com/x", want: "https://example.com/x"},
		{name: "url drops javascript", kind: FieldURL, in: "javascript:alert(1)", want: ""},
		{name: "nil becomes empty", kind: FieldSelect, in: nil, want: ""},
		{name: "true becomes 1", kind: FieldCheckbox, in: true, want: "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.SanitizeValue(tc.kind, tc.in)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	s := NewSanitizer()
	inputs := []string{`a & b`, `"quoted" <b>bold</b>`, `it's &amp; done`, "x y+z%", "../../etc/passwd"}
	kinds := []FieldType{FieldText, FieldTextarea, FieldCheckbox, FieldSelect, FieldMultiSelect, FieldFilename, FieldURL}
	for _, kind := range kinds {
		for _, in := range inputs {
			once := s.SanitizeValue(kind, in)
			twice := s.SanitizeValue(kind, once)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("%s rule not idempotent for %q (-once +twice):\n%s", kind, in, diff)
			}
		}
	}
}

func TestSanitizeDateParts(t *testing.T) {
	s := NewSanitizer(WithSanitizerLocation(time.UTC))
	got := s.SanitizeValue(FieldDateSelector, map[string]any{
		"aa": "2024", "mm": "03", "jj": "15", "hh": "10", "mn": "30",
	})
	want := time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC).Unix()
	if got != want {
		t.Fatalf("expected %d, got %v", want, got)
	}
	if got := s.SanitizeValue(FieldDateSelector, map[string]any{"aa": "", "mm": "03", "jj": "15"}); got != int64(0) {
		t.Fatalf("incomplete parts should yield 0, got %v", got)
	}
	if got := s.SanitizeValue(FieldDateSelector, "2024-03-15"); got != time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Unix() {
		t.Fatalf("date string not parsed, got %v", got)
	}
}

func TestSanitizeOnlyTouchesFieldKeys(t *testing.T) {
	registry := courseRegistry(t)
	s := NewSanitizer()
	raw := Values{
		"sfwd-courses_course_price": "<b>12</b>",
		"unrelated":                 "<b>keep</b>",
	}
	got := s.SanitizeLocation(registry, "", raw)
	if got["sfwd-courses_course_price"] != "12" {
		t.Fatalf("expected tags stripped, got %v", got["sfwd-courses_course_price"])
	}
	if got["unrelated"] != "<b>keep</b>" {
		t.Fatalf("unknown keys must pass through, got %v", got["unrelated"])
	}
	if raw["sfwd-courses_course_price"] != "<b>12</b>" {
		t.Fatalf("input was mutated")
	}
}

func TestEscapeAttrKeepsEntities(t *testing.T) {
	if got := EscapeAttr("&amp; & &#039;"); got != "&amp; &amp; &#039;" {
		t.Fatalf("unexpected escape %q", got)
	}
}

func TestUnslash(t *testing.T) {
	got := Unslash(map[string]any{"a": `it\'s`, "b": []any{`c:\\dir`}})
	want := map[string]any{"a": "it's", "b": []any{`c:\dir`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

package settings

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// CustomRenderer produces markup for fields of type custom. The output is
// written verbatim, so implementations own its escaping.
type CustomRenderer interface {
	RenderField(field Field, value any) (template.HTML, error)
}

// CustomRendererFunc adapts a function to CustomRenderer.
type CustomRendererFunc func(field Field, value any) (template.HTML, error)

// RenderField implements CustomRenderer.
func (f CustomRendererFunc) RenderField(field Field, value any) (template.HTML, error) {
	if f == nil {
		return "", nil
	}
	return f(field, value)
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithCustomRenderer installs the hook used for custom fields.
func WithCustomRenderer(custom CustomRenderer) RendererOption {
	return func(r *Renderer) {
		r.custom = custom
	}
}

// WithRenderRules evaluates show-if rules with rules.
func WithRenderRules(rules *Rules) RendererOption {
	return func(r *Renderer) {
		r.rules = rules
	}
}

// WithTimeLocation sets the zone date selectors display in.
func WithTimeLocation(loc *time.Location) RendererOption {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithRenderPrefix sets the module prefix used in the container class.
func WithRenderPrefix(prefix string) RendererOption {
	return func(r *Renderer) {
		r.prefix = prefix
	}
}

// WithRenderPolicy replaces the policy applied to html fields.
func WithRenderPolicy(policy *bluemonday.Policy) RendererOption {
	return func(r *Renderer) {
		if policy != nil {
			r.policy = policy
		}
	}
}

// WithRendererLogger reports each render call.
func WithRendererLogger(logger OperationLogger) RendererOption {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Renderer turns a field set and its current values into form markup. It
// only writes to the supplied writer and is safe for concurrent use.
type Renderer struct {
	templates *template.Template
	custom    CustomRenderer
	rules     *Rules
	policy    *bluemonday.Policy
	loc       *time.Location
	prefix    string
	logger    OperationLogger
}

// NewRenderer returns a renderer with the built-in input strategies.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		templates: baseTemplates,
		policy:    bluemonday.UGCPolicy(),
		loc:       time.UTC,
		logger:    NoopOperationLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// strategies maps a field type to its input template.
var strategies = map[FieldType]string{
	FieldSelect:        "select",
	FieldMultiSelect:   "select",
	FieldRadio:         "choices",
	FieldMultiCheckbox: "choices",
	FieldCheckbox:      "checkbox",
	FieldTextarea:      "textarea",
	FieldImage:         "image",
	FieldHTML:          "html",
	FieldNumber:        "number",
	FieldDateSelector:  "date",
}

var inputTypes = map[FieldType]string{
	FieldText:   "text",
	FieldHidden: "hidden",
	FieldSubmit: "submit",
	FieldURL:    "url",
}

// Render writes the form for fields using values keyed by storage key.
// Fields marked unwrapped are written bare; the rest share one container.
func (r *Renderer) Render(w io.Writer, fields []Field, values Values) error {
	start := time.Now()
	err := r.render(w, fields, values)
	r.logger.LogOperation(OperationLogEvent{
		Op:       OpRender,
		Location: locationOf(fields),
		Keys:     len(fields),
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

func (r *Renderer) render(w io.Writer, fields []Field, values Values) error {
	var out bytes.Buffer
	open := false
	counter := 0
	for _, field := range fields {
		view, err := r.view(field, fields, values, &counter)
		if err != nil {
			return err
		}
		if field.Unwrapped {
			out.WriteString(string(view.Input))
			continue
		}
		if !open {
			if err := r.templates.ExecuteTemplate(&out, "container_open", r.prefix); err != nil {
				return fmt.Errorf("settings: render container: %w", err)
			}
			open = true
		}
		if err := r.templates.ExecuteTemplate(&out, "row", view); err != nil {
			return fmt.Errorf("settings: render row %s: %w", field.StorageKey, err)
		}
	}
	if open {
		if err := r.templates.ExecuteTemplate(&out, "container_close", nil); err != nil {
			return fmt.Errorf("settings: render container: %w", err)
		}
	}
	_, err := w.Write(out.Bytes())
	return err
}

// RenderField writes the input markup for a single field without a row.
func (r *Renderer) RenderField(w io.Writer, field Field, value any) error {
	counter := 0
	view, err := r.view(field, []Field{field}, Values{field.StorageKey: value}, &counter)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, string(view.Input))
	return err
}

// RenderTabs writes the tab strip. Links carry the tab key in the "tab"
// query parameter of base.
func (r *Renderer) RenderTabs(w io.Writer, tabs []Tab, current string, base *url.URL) error {
	if len(tabs) == 0 {
		return nil
	}
	views := make([]tabView, 0, len(tabs))
	for _, tab := range tabs {
		href := url.URL{}
		if base != nil {
			href = *base
		}
		query := href.Query()
		query.Set("tab", tab.Key)
		href.RawQuery = query.Encode()
		views = append(views, tabView{Name: tab.Name, Href: href.String(), Active: tab.Key == current})
	}
	return r.templates.ExecuteTemplate(w, "tabs", views)
}

// RenderError writes an error notice.
func (r *Renderer) RenderError(w io.Writer, message string) error {
	return r.templates.ExecuteTemplate(w, "error", message)
}

type tabView struct {
	Name   string
	Href   string
	Active bool
}

type choiceItem struct {
	Value    string
	Label    string
	Selected bool
}

type choiceGroup struct {
	Label string
	Items []choiceItem
}

type dateView struct {
	Months []choiceItem
	Day    string
	Year   string
	Hour   string
	Minute string
}

type fieldView struct {
	Field
	Name         string
	InputType    string
	Value        string
	Style        template.CSS
	Checked      bool
	Multiple     bool
	Groups       []choiceGroup
	Date         dateView
	Markup       template.HTML
	Input        template.HTML
	Hidden       bool
	HasLabel     bool
	Align        string
	RowClass     string
	Counter      int
	Length       int
	CountSize    int
	CountLabel   string
	CheckedValue string
}

func (r *Renderer) view(field Field, fields []Field, values Values, counter *int) (fieldView, error) {
	raw := values[field.StorageKey]
	if field.Type == FieldSubmit && field.Label == LabelNone && !field.Saves {
		raw = field.Title
	}
	if field.Type == FieldHTML && !Truthy(raw) && !field.Saves {
		raw = field.Default
	}

	view := fieldView{
		Field:        field,
		Name:         field.StorageKey,
		InputType:    inputType(field.Type),
		Value:        displayString(raw),
		Style:        template.CSS(field.Style),
		HasLabel:     field.Label != LabelNone,
		Align:        "right",
		CheckedValue: field.CheckedValue,
	}
	if field.Label == LabelTop {
		view.Align = "left"
		view.RowClass = "sfwd_top_label"
	}
	if !view.HasLabel {
		view.RowClass = strings.TrimSpace(view.RowClass + " sfwd_no_label")
	}
	if field.Type == FieldHidden {
		view.RowClass = strings.TrimSpace(view.RowClass + " sfwd_hidden_type")
	}
	if r.rules != nil && field.ShowIf != "" {
		visible, _ := r.rules.Visible(field, fields, values)
		view.Hidden = !visible
	}

	strategy, ok := strategies[field.Type]
	if !ok {
		strategy = "input"
	}

	switch field.Type {
	case FieldCustom:
		if r.custom == nil {
			return view, nil
		}
		markup, err := r.custom.RenderField(field, raw)
		if err != nil {
			return view, fmt.Errorf("settings: custom field %s: %w", field.StorageKey, err)
		}
		view.Input = markup
		return view, nil
	case FieldMultiSelect:
		view.Name += "[]"
		view.Multiple = true
		view.Groups = groupChoices(field.Choices, raw, true)
	case FieldSelect:
		view.Groups = groupChoices(field.Choices, raw, false)
	case FieldMultiCheckbox:
		view.Name += "[]"
		view.InputType = "checkbox"
		view.Groups = groupChoices(field.Choices, raw, true)
	case FieldRadio:
		view.InputType = "radio"
		view.Groups = groupChoices(field.Choices, raw, false)
	case FieldCheckbox:
		if field.CheckedValue != "" {
			view.Checked = view.Value == field.CheckedValue
		} else {
			view.Checked = Truthy(raw)
		}
	case FieldNumber:
		if field.Min != "" && field.Step == "" {
			view.Step = "1"
		}
	case FieldHTML:
		view.Markup = template.HTML(r.policy.Sanitize(rawString(raw)))
	case FieldDateSelector:
		view.Date = r.dateParts(raw)
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, strategy, view); err != nil {
		return view, fmt.Errorf("settings: render input %s: %w", field.StorageKey, err)
	}
	if field.Count {
		*counter++
		view.Counter = *counter
		view.Length = utf8.RuneCountInString(view.Value)
		view.CountSize = countSize(field)
		view.CountLabel = strings.ToLower(field.Title)
		if err := r.templates.ExecuteTemplate(&buf, "counter", view); err != nil {
			return view, fmt.Errorf("settings: render counter %s: %w", field.StorageKey, err)
		}
	}
	view.Input = template.HTML(buf.String())
	return view, nil
}

func (r *Renderer) dateParts(raw any) dateView {
	view := dateView{}
	var ts time.Time
	switch v := raw.(type) {
	case int:
		ts = time.Unix(int64(v), 0)
	case int64:
		ts = time.Unix(v, 0)
	case float64:
		ts = time.Unix(int64(v), 0)
	case string:
		trimmed := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			ts = time.Unix(n, 0)
		} else if parsed, ok := parseDateString(trimmed, r.loc); ok {
			ts = parsed
		}
	}
	month := ""
	if !ts.IsZero() && ts.Unix() != 0 {
		ts = ts.In(r.loc)
		month = fmt.Sprintf("%02d", int(ts.Month()))
		view.Day = fmt.Sprintf("%02d", ts.Day())
		view.Year = fmt.Sprintf("%04d", ts.Year())
		view.Hour = fmt.Sprintf("%02d", ts.Hour())
		view.Minute = fmt.Sprintf("%02d", ts.Minute())
	}
	for i := 1; i <= 12; i++ {
		value := fmt.Sprintf("%02d", i)
		view.Months = append(view.Months, choiceItem{
			Value:    value,
			Label:    time.Month(i).String()[:3],
			Selected: value == month,
		})
	}
	return view
}

func groupChoices(choices []Choice, raw any, multi bool) []choiceGroup {
	selected := selectedSet(raw)
	var groups []choiceGroup
	index := map[string]int{}
	for _, choice := range choices {
		item := choiceItem{
			Value:    choice.Value,
			Label:    choice.Display(),
			Selected: isSelected(choice.Value, selected, multi),
		}
		if choice.Group == "" {
			groups = append(groups, choiceGroup{Items: []choiceItem{item}})
			continue
		}
		if i, ok := index[choice.Group]; ok {
			groups[i].Items = append(groups[i].Items, item)
			continue
		}
		index[choice.Group] = len(groups)
		groups = append(groups, choiceGroup{Label: choice.Group, Items: []choiceItem{item}})
	}
	return groups
}

func selectedSet(raw any) []string {
	rv := reflect.ValueOf(raw)
	if raw != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rawString(rv.Index(i).Interface()))
		}
		return out
	}
	if raw == nil {
		return nil
	}
	return []string{rawString(raw)}
}

// isSelected compares a choice against stored values, accepting the
// attribute-escaped and URL-encoded forms the sanitizer produces.
func isSelected(value string, selected []string, multi bool) bool {
	for _, candidate := range selected {
		if candidate == value || html.UnescapeString(candidate) == value {
			return true
		}
		if multi && candidate == EncodeElement(value) {
			return true
		}
	}
	return false
}

func inputType(kind FieldType) string {
	if t, ok := inputTypes[kind]; ok {
		return t
	}
	return "text"
}

func countSize(field Field) int {
	if field.Size > 0 {
		return field.Size
	}
	if field.Rows > 0 && field.Cols > 0 {
		return field.Rows * field.Cols
	}
	return 60
}

// displayString unescapes stored entities; the template escapes on output.
func displayString(raw any) string {
	return html.UnescapeString(rawString(raw))
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func locationOf(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0].Location
}

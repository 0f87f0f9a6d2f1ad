package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/csrf"
	"github.com/goliatone/go-settings/pkg/listing"
	"github.com/goliatone/go-settings/pkg/state"
)

const editor = "editor-1"

type fixture struct {
	server     *Server
	controller *state.Controller
	tokens     *csrf.Issuer
	handler    http.Handler
}

func lessonRegistry(t *testing.T, extra ...settings.Definition) *settings.Registry {
	t.Helper()
	defs := append([]settings.Definition{
		{Key: "title", Type: settings.FieldText, Default: "Untitled"},
		{Key: "count", Type: settings.FieldText, Default: "0", Validate: `count == "" || int(count) >= 0`},
	}, extra...)
	registry, err := settings.NewRegistry("p_", defs,
		settings.WithLocation(settings.Location{Name: "general", Title: "General Settings"}),
		settings.WithLocation(settings.Location{
			Name: "lesson",
			Kind: settings.LocationMetabox,
			Defaults: []settings.Definition{
				{Key: "duration", Type: settings.FieldText, Default: "10"},
			},
		}),
	)
	require.NoError(t, err)
	return registry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	controller, err := state.NewController(lessonRegistry(t), state.NewMemoryStore[settings.Values](),
		state.WithItemStore(state.NewMemoryItemStore[settings.Values]()),
		state.WithRules(settings.NewRules()),
	)
	require.NoError(t, err)
	tokens, err := csrf.NewIssuer([]byte("test-secret"))
	require.NoError(t, err)
	server, err := New(controller, tokens, opts...)
	require.NoError(t, err)
	return &fixture{server: server, controller: controller, tokens: tokens, handler: server.Handler()}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-Remote-User", editor)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) post(t *testing.T, target string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Remote-User", editor)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) form(button string, pairs ...string) url.Values {
	form := url.Values{
		"action":   {UpdateAction},
		NonceField: {f.tokens.Token(NonceAction, editor)},
		button:     {"1"},
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		form.Add(pairs[i], pairs[i+1])
	}
	return form
}

func TestSettingsPageRendersForm(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/settings/general")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "<h2>General Settings</h2>")
	assert.Contains(t, body, `name="p_title"`)
	assert.Contains(t, body, `value="Untitled"`)
	assert.Contains(t, body, `<input type="hidden" name="action" value="sfp_update_module" />`)
	assert.Contains(t, body, `name="nonce-sfwd" value="`+f.tokens.Token(NonceAction, editor)+`"`)
	assert.Contains(t, body, `name="Submit_Default"`)
	assert.Contains(t, body, `name="Submit_All_Default"`)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestGlobalOptionsPage(t *testing.T) {
	registry, err := settings.NewRegistry("p_", []settings.Definition{
		{Key: "title", Type: settings.FieldText, Default: "Untitled"},
	})
	require.NoError(t, err)
	controller, err := state.NewController(registry, state.NewMemoryStore[settings.Values]())
	require.NoError(t, err)
	tokens, err := csrf.NewIssuer([]byte("test-secret"))
	require.NoError(t, err)
	server, err := New(controller, tokens)
	require.NoError(t, err)
	f := &fixture{server: server, controller: controller, tokens: tokens, handler: server.Handler()}

	for _, target := range []string{"/settings", "/settings/"} {
		rec := f.get(t, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "<h2>"+DefaultPageTitle+"</h2>")
		assert.Contains(t, rec.Body.String(), `value="Untitled"`)
	}

	rec := f.post(t, "/settings", f.form(ButtonSubmit, "p_title", "Hello"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), MessageUpdated)
	values, err := controller.Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Hello", values["p_title"])
}

func TestGlobalOptionsPageHiddenWithLocations(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/settings").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/settings/").Code)
}

func TestSettingsUpdateSavesValues(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/settings/general", f.form(ButtonSubmit, "p_title", "Hello", "p_count", "3"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), MessageUpdated)
	assert.Contains(t, rec.Body.String(), `value="Hello"`)

	values, err := f.controller.Load(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, "Hello", values["p_title"])
	assert.Equal(t, "3", values["p_count"])

	page := f.get(t, "/settings/general")
	assert.NotEmpty(t, page.Header().Get("ETag"))
}

func TestSettingsUpdateRejectsBadToken(t *testing.T) {
	f := newFixture(t)
	form := f.form(ButtonSubmit, "p_title", "Hacked")
	form.Set(NonceField, "forged")
	rec := f.post(t, "/settings/general", form)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), SecurityMessage)

	_, found, err := f.controller.Meta(context.Background())
	require.NoError(t, err)
	assert.False(t, found, "nothing may be written")
}

func TestSettingsUpdateTokenBoundToSession(t *testing.T) {
	f := newFixture(t)
	form := f.form(ButtonSubmit, "p_title", "Hello")
	form.Set(NonceField, f.tokens.Token(NonceAction, "someone-else"))
	rec := f.post(t, "/settings/general", form)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSettingsUpdateRequiresActionAndButton(t *testing.T) {
	f := newFixture(t)
	form := f.form(ButtonSubmit)
	form.Set("action", "other")
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/settings/general", form).Code)

	form = f.form(ButtonSubmit)
	form.Del(ButtonSubmit)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/settings/general", form).Code)
}

func TestSettingsUpdateValidationError(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/settings/general", f.form(ButtonSubmit, "p_title", "Kept", "p_count", "-1"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="sfwd_module error"`)
	assert.Contains(t, body, `value="-1"`)
	assert.Contains(t, body, `value="Kept"`)
	assert.NotContains(t, body, MessageUpdated)

	_, found, err := f.controller.Meta(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSettingsReset(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.post(t, "/settings/general", f.form(ButtonSubmit, "p_title", "Hello")).Code)

	rec := f.post(t, "/settings/general", f.form(ButtonSubmitDefault))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MessageReset)

	values, err := f.controller.Load(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", values["p_title"])

	rec = f.post(t, "/settings/general", f.form(ButtonSubmitAllDefault))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MessageReset)
}

func TestSettingsUpdateIfMatch(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/settings/general", f.form(ButtonSubmit, "p_title", "One"), "If-Match", "guess")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code, "no record exists yet")

	require.Equal(t, http.StatusOK, f.post(t, "/settings/general", f.form(ButtonSubmit, "p_title", "One")).Code)
	etag := f.get(t, "/settings/general").Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = f.post(t, "/settings/general", f.form(ButtonSubmit, "p_title", "Two"), "If-Match", "stale")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = f.post(t, "/settings/general", f.form(ButtonSubmit, "p_title", "Two"), "If-Match", `"`+etag+`"`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestItemPageAndUpdate(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/items/42/lesson")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="p_lesson_duration"`)
	assert.Contains(t, body, `value="10"`)
	assert.NotContains(t, body, `name="Submit_All_Default"`)

	rec = f.post(t, "/items/42/lesson", f.form(ButtonSubmit, "p_lesson_duration", "25"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	values, err := f.controller.LoadItem(context.Background(), "42", "lesson")
	require.NoError(t, err)
	assert.Equal(t, "25", values["p_lesson_duration"])

	rec = f.post(t, "/items/42/lesson", f.form(ButtonSubmitDefault))
	require.Equal(t, http.StatusOK, rec.Code)
	values, err = f.controller.LoadItem(context.Background(), "42", "lesson")
	require.NoError(t, err)
	assert.Equal(t, "10", values["p_lesson_duration"])
}

func TestLocationKindsAreRouted(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/settings/lesson").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/items/42/general").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/settings/missing").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.post(t, "/schema/lesson", url.Values{}).Code)
}

func TestSchemaRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/schema/lesson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/items/{id}/lesson")

	assert.Equal(t, http.StatusNotFound, f.get(t, "/schema/missing").Code)
}

func TestListRoute(t *testing.T) {
	table := &listing.Table{
		Name:    "groups",
		Columns: []listing.Column{{Key: "name", Title: "Name", Primary: true}},
		Actions: []listing.Action{{Label: "List Users", Param: "group_id"}},
		Source: listing.NewMemorySource([]listing.Row{
			{ID: "7", Cells: map[string]string{"name": "Physics"}},
			{ID: "8", Cells: map[string]string{"name": "Poetry"}},
		}, "name"),
	}
	f := newFixture(t, WithTable(table))
	rec := f.get(t, "/lists/groups?s=phys")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Physics")
	assert.NotContains(t, rec.Body.String(), "Poetry")
	assert.Contains(t, rec.Body.String(), `href="/lists/groups?group_id=7"`)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/lists/missing").Code)
}

func TestSetRegistrySwapsSchema(t *testing.T) {
	f := newFixture(t)
	assert.NotContains(t, f.get(t, "/settings/general").Body.String(), `name="p_subtitle"`)

	f.server.SetRegistry(lessonRegistry(t, settings.Definition{Key: "subtitle", Type: settings.FieldText}))
	assert.Contains(t, f.get(t, "/settings/general").Body.String(), `name="p_subtitle"`)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	controller, err := state.NewController(lessonRegistry(t), state.NewMemoryStore[settings.Values]())
	require.NoError(t, err)
	_, err = New(controller, nil)
	assert.Error(t, err)
}

func TestParseSubmission(t *testing.T) {
	sub := parseSubmission(url.Values{
		"action":               {UpdateAction},
		NonceField:             {"token"},
		ButtonSubmitAllDefault: {""},
		"p_tags[]":             {"a", "b"},
		"p_start[aa]":          {"2024"},
		"p_start[mm]":          {"03"},
		"p_title":              {"Hello", "ignored"},
	})
	assert.True(t, sub.valid())
	assert.False(t, sub.save)
	assert.True(t, sub.resetAll)
	assert.Equal(t, settings.Values{
		"p_tags":  []any{"a", "b"},
		"p_start": map[string]any{"aa": "2024", "mm": "03"},
		"p_title": "Hello",
	}, sub.values)
}

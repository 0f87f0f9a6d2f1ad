package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/config"
	"github.com/goliatone/go-settings/pkg/state"
)

const testSchema = `
prefix: p_
fields:
  - key: title
    type: text
    default: Untitled
  - key: count
    type: text
    default: "0"
    validate: 'count == "" || int(count) >= 0'
  - key: tags
    type: multiselect
    choices: "a,A,b,B"
locations:
  - name: general
    title: General Settings
  - name: lesson
    type: metabox
    default_options:
      - key: duration
        type: text
        default: "10"
`

type harness struct {
	schema string
	dsn    string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schema, []byte(testSchema), 0o644))
	return harness{schema: schema, dsn: filepath.Join(dir, "settings.db")}
}

func (h harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--schema", h.schema, "--store", "sqlite", "--dsn", h.dsn}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err)
	return out
}

func TestGetPrintsDefaults(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "get", "-l", "general")
	assert.Contains(t, out, `p_title = "Untitled"`)
	assert.Contains(t, out, `p_count = "0"`)

	out = h.mustRun(t, "get", "-l", "general", "title")
	assert.Equal(t, "p_title = \"Untitled\"\n", out)

	_, err := h.run(t, "get", "-l", "general", "nope")
	assert.Error(t, err)
}

func TestSetPersistsAndKeepsOtherFields(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "set", "-l", "general", "count=3")
	out := h.mustRun(t, "set", "-l", "general", "title=<b>Hello</b>", "tags=a, b")
	assert.Contains(t, out, `p_title = "Hello"`)
	assert.Contains(t, out, `p_tags = ["a","b"]`)

	out = h.mustRun(t, "get", "-l", "general", "--json")
	var values map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, "Hello", values["p_title"])
	assert.Equal(t, "3", values["p_count"])
}

func TestSetRejectsInvalidValues(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "set", "-l", "general", "count=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing was saved")

	out := h.mustRun(t, "get", "-l", "general", "count")
	assert.Equal(t, "p_count = \"0\"\n", out)

	_, err = h.run(t, "set", "-l", "general", "missing=1")
	assert.Error(t, err)
	_, err = h.run(t, "set", "-l", "general", "title")
	assert.Error(t, err)
}

func TestTenantScopeFallsBackToSite(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "set", "-l", "general", "count=5")
	h.mustRun(t, "set", "--tenant", "acme", "-l", "general", "title=Acme")

	out := h.mustRun(t, "get", "-l", "general", "title")
	assert.Equal(t, "p_title = \"Untitled\"\n", out)

	out = h.mustRun(t, "get", "--tenant", "acme", "-l", "general", "--trace", "title")
	assert.Contains(t, out, `p_title = "Acme" (tenant`)
	assert.Contains(t, out, `shadowed site = "Untitled"`)
}

func TestItemValues(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "get", "-l", "lesson")
	require.Error(t, err)

	out := h.mustRun(t, "get", "-l", "lesson", "--item", "7")
	assert.Equal(t, "p_lesson_duration = \"10\"\n", out)

	h.mustRun(t, "set", "-l", "lesson", "--item", "7", "duration=15")
	out = h.mustRun(t, "get", "-l", "lesson", "--item", "7")
	assert.Equal(t, "p_lesson_duration = \"15\"\n", out)

	out = h.mustRun(t, "export", "--items")
	assert.Contains(t, out, "15")

	h.mustRun(t, "reset", "-l", "lesson", "--item", "7")
	out = h.mustRun(t, "get", "-l", "lesson", "--item", "7")
	assert.Equal(t, "p_lesson_duration = \"10\"\n", out)
}

func TestResetRestoresDefaults(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "set", "-l", "general", "title=Changed")
	out := h.mustRun(t, "reset", "-l", "general")
	assert.Contains(t, out, `p_title = "Untitled"`)

	h.mustRun(t, "set", "-l", "general", "title=Again")
	h.mustRun(t, "reset", "--all")
	out = h.mustRun(t, "get", "-l", "general", "title")
	assert.Equal(t, "p_title = \"Untitled\"\n", out)
}

func TestRenderAndSchema(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "render", "-l", "general")
	assert.Contains(t, out, `name="p_title"`)
	assert.Contains(t, out, `value="Untitled"`)

	out = h.mustRun(t, "schema", "-l", "general", "--operation-id", "saveGeneral")
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "openapi")
	assert.Contains(t, out, `"saveGeneral"`)
}

func TestRejectsUnknownStoreDriver(t *testing.T) {
	h := newHarness(t)
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--schema", h.schema, "--store", "mongo", "get"})
	assert.Error(t, cmd.Execute())
}

func testCLI(t *testing.T, secret string) *cli {
	t.Helper()
	h := newHarness(t)
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	cfg.SchemaPath = h.schema
	cfg.CSRF.Secret = secret
	a, err := openApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &cli{cfg: cfg, app: a, level: zap.NewAtomicLevel()}
}

func TestAdminHandlerServesTables(t *testing.T) {
	c := testCLI(t, "s3cret")
	ctx := context.Background()
	_, err := c.app.controller.SaveItem(ctx, "42", "lesson", settings.Values{"p_lesson_duration": "20"})
	require.NoError(t, err)

	handler, _, err := newAdminHandler(c)
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/lists/locations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "General Settings")
	assert.Contains(t, rec.Body.String(), "metabox")

	rec = get("/lists/items")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "42")

	rec = get("/settings/general")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="p_title"`)

	rec = get("/log/level")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"level"`)
}

func TestAdminHandlerRequiresSecret(t *testing.T) {
	c := testCLI(t, "")
	_, _, err := newAdminHandler(c)
	assert.Error(t, err)
}

func TestEvaluatorFor(t *testing.T) {
	for _, engine := range []string{"", "expr", "cel"} {
		evaluator, err := evaluatorFor(engine)
		require.NoError(t, err)
		assert.NotNil(t, evaluator)
	}
	_, err := evaluatorFor("lua")
	assert.Error(t, err)
	if !settings.JSAvailable() {
		_, err = evaluatorFor("js")
		assert.Error(t, err)
	}
}

func TestRecordFor(t *testing.T) {
	registry, err := settings.NewRegistry("p_", nil)
	require.NoError(t, err)

	_, ok := recordFor(config.Record{}, registry)
	assert.False(t, ok)

	record, ok := recordFor(config.Record{Parent: "sfwd_cpt_options"}, registry)
	require.True(t, ok)
	assert.Equal(t, state.Record{Name: registry.OptionName(), Parent: "sfwd_cpt_options"}, record)

	record, _ = recordFor(config.Record{OptionName: "own", Parent: "shared", Standalone: true}, registry)
	assert.Equal(t, state.Record{Name: "own"}, record)
}

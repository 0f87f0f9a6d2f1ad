// Package admin serves settings pages, item metaboxes, location schemas and
// list tables over HTTP.
package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/csrf"
	"github.com/goliatone/go-settings/pkg/listing"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/goliatone/go-settings/schema/openapi"
)

const (
	// UpdateAction is the action value every settings form posts.
	UpdateAction = "sfp_update_module"
	// NonceField carries the request token.
	NonceField = "nonce-sfwd"
	// NonceAction binds tokens to the settings forms.
	NonceAction = "sfwd-nonce"

	ButtonSubmit           = "Submit"
	ButtonSubmitDefault    = "Submit_Default"
	ButtonSubmitAllDefault = "Submit_All_Default"

	// SecurityMessage is written when the request token does not verify.
	SecurityMessage = "Security Check - If you receive this in error, log out and back in"

	// DefaultPageTitle heads the options page of a module without locations.
	DefaultPageTitle = "Settings"

	MessageUpdated = "Options Updated."
	MessageReset   = "Options Reset."
)

// RequestFunc extracts a per-request identity, such as the session a token
// is bound to.
type RequestFunc func(r *http.Request) string

// Server hosts the admin routes for one controller.
type Server struct {
	controller *state.Controller
	tokens     *csrf.Issuer
	renderer   *settings.Renderer
	schema     *openapi.Generator
	tables     map[string]*listing.Table
	session    RequestFunc
	actor      RequestFunc
	logger     *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRenderer replaces the default form renderer.
func WithRenderer(renderer *settings.Renderer) Option {
	return func(s *Server) {
		if renderer != nil {
			s.renderer = renderer
		}
	}
}

// WithSchemaGenerator replaces the default OpenAPI generator.
func WithSchemaGenerator(generator *openapi.Generator) Option {
	return func(s *Server) {
		if generator != nil {
			s.schema = generator
		}
	}
}

// WithTable serves table under /lists/{table.Name}.
func WithTable(table *listing.Table) Option {
	return func(s *Server) {
		if table != nil && table.Name != "" {
			s.tables[table.Name] = table
		}
	}
}

// WithSession sets how the session a token is bound to is read.
func WithSession(fn RequestFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.session = fn
		}
	}
}

// WithActor sets how the acting user recorded on activity is read.
func WithActor(fn RequestFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.actor = fn
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// RemoteUser reads the user a fronting proxy authenticated.
func RemoteUser(r *http.Request) string {
	return r.Header.Get("X-Remote-User")
}

// New builds a Server. Both the controller and the token issuer are
// required.
func New(controller *state.Controller, tokens *csrf.Issuer, opts ...Option) (*Server, error) {
	if controller == nil {
		return nil, fmt.Errorf("admin: controller is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("admin: token issuer is required")
	}
	s := &Server{
		controller: controller,
		tokens:     tokens,
		renderer:   settings.NewRenderer(settings.WithRenderRules(settings.NewRules())),
		schema:     openapi.NewGenerator(),
		tables:     map[string]*listing.Table{},
		session:    RemoteUser,
		actor:      RemoteUser,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SetRegistry swaps the schema served by every route.
func (s *Server) SetRegistry(registry *settings.Registry) {
	s.controller.SetRegistry(registry)
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /settings/{location}", s.handleSettingsPage)
	mux.HandleFunc("POST /settings/{location}", s.handleSettingsUpdate)
	for _, pattern := range []string{"/settings", "/settings/{$}"} {
		mux.HandleFunc("GET "+pattern, s.handleSettingsPage)
		mux.HandleFunc("POST "+pattern, s.handleSettingsUpdate)
	}
	mux.HandleFunc("GET /items/{id}/{location}", s.handleItemPage)
	mux.HandleFunc("POST /items/{id}/{location}", s.handleItemUpdate)
	mux.HandleFunc("GET /schema/{location}", s.handleSchema)
	mux.HandleFunc("GET /lists/{name}", s.handleList)
	return mux
}

// lookup resolves the location path value and reports whether the request
// may continue.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, kind settings.LocationKind) (*settings.Registry, settings.Location, bool) {
	registry := s.controller.Registry()
	name := r.PathValue("location")
	if name == "" {
		return s.lookupGlobal(w, registry, kind)
	}
	loc, err := registry.Location(name)
	if err != nil {
		http.Error(w, "unknown location", http.StatusNotFound)
		return nil, settings.Location{}, false
	}
	if kind != "" && registry.Kind(name) != kind {
		http.Error(w, fmt.Sprintf("location %q is not a %s location", name, kind), http.StatusNotFound)
		return nil, settings.Location{}, false
	}
	return registry, loc, true
}

// lookupGlobal serves the global fields on the default options page, which
// exists only while the registry declares no locations.
func (s *Server) lookupGlobal(w http.ResponseWriter, registry *settings.Registry, kind settings.LocationKind) (*settings.Registry, settings.Location, bool) {
	if kind == settings.LocationMetabox || len(registry.Locations()) > 0 {
		http.Error(w, "unknown location", http.StatusNotFound)
		return nil, settings.Location{}, false
	}
	return registry, settings.Location{Title: DefaultPageTitle}, true
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	registry, loc, ok := s.lookup(w, r, settings.LocationSettings)
	if !ok {
		return
	}
	values, err := s.controller.Load(r.Context(), loc.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if meta, found, err := s.controller.Meta(r.Context()); err == nil && found && meta.ETag != "" {
		w.Header().Set("ETag", meta.ETag)
	}
	s.writePage(w, r, http.StatusOK, s.page(r, registry, loc, values, true))
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	registry, loc, ok := s.lookup(w, r, settings.LocationSettings)
	if !ok {
		return
	}
	sub, ok := s.submission(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	opts := s.saveOptions(r)
	var (
		values  settings.Values
		message string
		err     error
	)
	if sub.reset || sub.resetAll {
		values, err = s.controller.Reset(ctx, loc.Name, sub.resetAll, opts...)
		message = MessageReset
	}
	if err == nil && sub.save {
		values, err = s.controller.Save(ctx, loc.Name, sub.values, opts...)
		message = MessageUpdated
	}
	if err != nil {
		s.rejected(w, r, registry, loc, sub.values, true, err)
		return
	}
	page := s.page(r, registry, loc, values, true)
	page.Message = message
	s.writePage(w, r, http.StatusOK, page)
}

func (s *Server) handleItemPage(w http.ResponseWriter, r *http.Request) {
	registry, loc, ok := s.lookup(w, r, settings.LocationMetabox)
	if !ok {
		return
	}
	values, err := s.controller.LoadItem(r.Context(), r.PathValue("id"), loc.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writePage(w, r, http.StatusOK, s.page(r, registry, loc, values, false))
}

func (s *Server) handleItemUpdate(w http.ResponseWriter, r *http.Request) {
	registry, loc, ok := s.lookup(w, r, settings.LocationMetabox)
	if !ok {
		return
	}
	sub, ok := s.submission(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")
	opts := s.saveOptions(r)
	var (
		values  settings.Values
		message string
		err     error
	)
	if sub.reset || sub.resetAll {
		values, err = s.controller.ResetItem(ctx, id, loc.Name, opts...)
		message = MessageReset
	}
	if err == nil && sub.save {
		values, err = s.controller.SaveItem(ctx, id, loc.Name, sub.values, opts...)
		message = MessageUpdated
	}
	if err != nil {
		s.rejected(w, r, registry, loc, sub.values, false, err)
		return
	}
	page := s.page(r, registry, loc, values, false)
	page.Message = message
	s.writePage(w, r, http.StatusOK, page)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	registry := s.controller.Registry()
	raw, err := s.schema.JSON(registry, r.PathValue("location"))
	if errors.Is(err, settings.ErrUnknownLocation) {
		http.Error(w, "unknown location", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tables[r.PathValue("name")]
	if !ok {
		http.Error(w, "unknown list", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := table.Render(r.Context(), w, r.URL, listing.QueryFromValues(r.URL.Query())); err != nil {
		s.logger.Error("render list", zap.String("list", table.Name), zap.Error(err))
	}
}

// submission parses and authorizes a form post. A false return means the
// response has been written.
func (s *Server) submission(w http.ResponseWriter, r *http.Request) (submission, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return submission{}, false
	}
	sub := parseSubmission(r.PostForm)
	if !sub.valid() {
		http.Error(w, "unsupported action", http.StatusBadRequest)
		return submission{}, false
	}
	if err := s.tokens.Verify(r.PostForm.Get(NonceField), NonceAction, s.session(r)); err != nil {
		s.logger.Warn("rejected settings update",
			zap.String("path", r.URL.Path),
			zap.String("actor", s.actor(r)),
			zap.Error(err),
		)
		http.Error(w, SecurityMessage, http.StatusForbidden)
		return submission{}, false
	}
	return sub, true
}

func (s *Server) saveOptions(r *http.Request) []state.SaveOption {
	opts := []state.SaveOption{state.AsActor(s.actor(r))}
	if etag := strings.Trim(r.Header.Get("If-Match"), `"`); etag != "" {
		opts = append(opts, state.IfMatch(etag))
	}
	return opts
}

// rejected answers a failed write. Validation failures re-render the form
// with the submitted values and the field messages.
func (s *Server) rejected(w http.ResponseWriter, r *http.Request, registry *settings.Registry, loc settings.Location, submitted settings.Values, resets bool, err error) {
	var verr *settings.ValidationError
	if !errors.As(err, &verr) {
		s.fail(w, r, err)
		return
	}
	values := registry.DefaultOptions(loc.Name)
	for key, value := range submitted {
		if _, ok := values[key]; ok {
			values[key] = value
		}
	}
	page := s.page(r, registry, loc, values, resets)
	for _, field := range verr.Fields {
		page.Errors = append(page.Errors, field.Error())
	}
	s.writePage(w, r, http.StatusUnprocessableEntity, page)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, state.ErrETagMismatch):
		status = http.StatusPreconditionFailed
	case errors.Is(err, state.ErrNoItemStore):
		status = http.StatusNotImplemented
	case errors.Is(err, state.ErrMetaboxLocation), errors.Is(err, state.ErrSettingsLocation):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("settings request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

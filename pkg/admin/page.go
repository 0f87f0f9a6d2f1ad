package admin

import (
	"bytes"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	settings "github.com/goliatone/go-settings"
)

type pageView struct {
	Title     string
	Location  string
	Message   string
	Errors    []string
	Notices   []template.HTML
	Tabs      template.HTML
	Form      template.HTML
	Action    string
	Nonce     string
	HasSubmit bool
	ResetAll  bool

	err error
}

// page renders the form for loc. resets adds the reset-all button offered
// by settings pages.
func (s *Server) page(r *http.Request, registry *settings.Registry, loc settings.Location, values settings.Values, resets bool) pageView {
	fields := registry.Fields(loc.Name)
	view := pageView{
		Title:    loc.Title,
		Location: loc.Name,
		Action:   r.URL.RequestURI(),
		Nonce:    s.tokens.Token(NonceAction, s.session(r)),
		ResetAll: resets,
	}
	if view.Title == "" {
		view.Title = settings.TitleFromKey(loc.Name)
	}
	for _, field := range fields {
		if field.Type == settings.FieldSubmit {
			view.HasSubmit = true
			break
		}
	}

	var tabs bytes.Buffer
	if err := s.renderer.RenderTabs(&tabs, registry.Tabs(loc.Name), r.URL.Query().Get("tab"), r.URL); err != nil {
		view.err = err
		return view
	}
	view.Tabs = template.HTML(tabs.String())

	var form bytes.Buffer
	if err := s.renderer.Render(&form, fields, values); err != nil {
		view.err = err
		return view
	}
	view.Form = template.HTML(form.String())
	return view
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, status int, view pageView) {
	for _, message := range view.Errors {
		var notice bytes.Buffer
		if err := s.renderer.RenderError(&notice, message); err != nil {
			view.err = err
			break
		}
		view.Notices = append(view.Notices, template.HTML(notice.String()))
	}
	var out bytes.Buffer
	if view.err == nil {
		view.err = pageTemplate.Execute(&out, view)
	}
	if view.err != nil {
		s.logger.Error("render settings page", zap.String("location", view.Location), zap.Error(view.err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(out.Bytes())
}

var pageTemplate = template.Must(template.New("page").Parse(`<div class="wrap">
<h2>{{.Title}}</h2>
{{- if .Message}}
<div id="message" class="updated fade"><p>{{.Message}}</p></div>
{{- end}}
{{- range .Notices}}
{{.}}
{{- end}}
{{.Tabs}}
<form id="sfwd_options_form" method="post" action="{{.Action}}">
{{.Form}}
<input type="hidden" name="action" value="sfp_update_module" />
<input type="hidden" name="nonce-sfwd" value="{{.Nonce}}" />
{{- if not .HasSubmit}}
<p class="submit"><input type="submit" class="button-primary" name="Submit" value="Update Options &raquo;" />
 <input type="submit" class="button-secondary" name="Submit_Default" value="Reset Settings to Defaults &raquo;" />
{{- if .ResetAll}} <input type="submit" class="button-secondary" name="Submit_All_Default" value="Reset All Settings to Defaults &raquo;" />{{end}}</p>
{{- end}}
</form>
</div>
`))

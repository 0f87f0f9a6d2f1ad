package listing

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"
)

// Column is one table column. The primary column carries the row actions.
type Column struct {
	Key     string
	Title   string
	Primary bool
}

// Action is a row link. The link is the table URL with Param set to the
// row ID and the search and paging parameters removed.
type Action struct {
	Label string
	Param string
	// Path, when set, replaces the table path.
	Path string
}

// Table renders a Source as an admin list.
type Table struct {
	Name    string
	Title   string
	Columns []Column
	Actions []Action
	Source  Source
}

type tableView struct {
	Name       string
	Title      string
	InputID    string
	Search     string
	ShowSearch bool
	Columns    []Column
	Rows       []rowView
	Total      int
	Pages      []pageLink
}

type rowView struct {
	Cells   []cellView
	Actions []actionView
}

type cellView struct {
	Value   string
	Primary bool
}

type actionView struct {
	Label string
	Href  string
}

type pageLink struct {
	Number  int
	Href    string
	Current bool
}

// Render writes the search box, the rows of the requested page and the
// pagination links. base is the URL the table is served from.
func (t *Table) Render(ctx context.Context, w io.Writer, base *url.URL, q Query) error {
	q = q.Normalize()
	page, err := t.Source.List(ctx, q)
	if err != nil {
		return fmt.Errorf("listing: %s: %w", t.Name, err)
	}
	if base == nil {
		base = &url.URL{}
	}

	view := tableView{
		Name:       t.Name,
		Title:      t.Title,
		InputID:    t.Name + "-search-input",
		Search:     q.Search,
		ShowSearch: q.Search != "" || page.TotalItems > 0,
		Columns:    t.Columns,
		Total:      page.TotalItems,
	}
	for _, row := range page.Rows {
		rv := rowView{}
		for _, column := range t.Columns {
			rv.Cells = append(rv.Cells, cellView{Value: row.Cells[column.Key], Primary: column.Primary})
		}
		for _, action := range t.Actions {
			rv.Actions = append(rv.Actions, actionView{Label: action.Label, Href: actionHref(base, action, row.ID)})
		}
		view.Rows = append(view.Rows, rv)
	}
	if page.TotalPages > 1 {
		for n := 1; n <= page.TotalPages; n++ {
			view.Pages = append(view.Pages, pageLink{Number: n, Href: pageHref(base, q.Search, n), Current: n == page.Page})
		}
	}
	return tableTemplate.Execute(w, view)
}

func actionHref(base *url.URL, action Action, id string) string {
	u := *base
	if action.Path != "" {
		u.Path = action.Path
	}
	query := u.Query()
	query.Del("s")
	query.Del("paged")
	if action.Param != "" {
		query.Set(action.Param, id)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func pageHref(base *url.URL, search string, n int) string {
	u := *base
	query := u.Query()
	query.Set("paged", strconv.Itoa(n))
	if search != "" {
		query.Set("s", search)
	} else {
		query.Del("s")
	}
	u.RawQuery = query.Encode()
	return u.String()
}

var tableTemplate = template.Must(template.New("table").Parse(`<div class="wrap learndash-list-table {{.Name}}">
{{- if .Title}}<h2>{{.Title}}</h2>{{end}}
<form method="get">
{{- if .ShowSearch}}<input type="hidden" name="paged" value="1" /><p class="search-box"><label class="screen-reader-text" for="{{.InputID}}">Search:</label><input type="search" id="{{.InputID}}" name="s" value="{{.Search}}" /><input type="submit" id="search-submit" class="button" value="Search" /></p>{{end}}
</form>
<table class="wp-list-table widefat fixed striped">
<thead><tr>{{range .Columns}}<th scope="col" class="column-{{.Key}}">{{.Title}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{$actions := .Actions}}{{range .Cells}}<td>{{.Value}}{{if and .Primary $actions}}<div class="row-actions">{{range $i, $a := $actions}}{{if $i}} | {{end}}<span><a href="{{$a.Href}}">{{$a.Label}}</a></span>{{end}}</div>{{end}}</td>{{end}}</tr>
{{- else}}
<tr class="no-items"><td colspan="{{len .Columns}}">No items found.</td></tr>
{{- end}}
</tbody>
</table>
<div class="tablenav"><span class="displaying-num">{{.Total}} items</span>
{{- range .Pages}}{{if .Current}} <span class="current-page">{{.Number}}</span>{{else}} <a class="page-numbers" href="{{.Href}}">{{.Number}}</a>{{end}}{{end}}
</div>
</div>`))

// Package listing renders searchable, paginated admin tables.
package listing

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultPerPage is the page size used when a query does not set one.
const DefaultPerPage = 20

// Query selects one page of rows. Search matches case-insensitively.
type Query struct {
	Search  string
	Page    int
	PerPage int
}

// QueryFromValues reads the s and paged request parameters.
func QueryFromValues(values url.Values) Query {
	page, _ := strconv.Atoi(values.Get("paged"))
	return Query{Search: strings.TrimSpace(values.Get("s")), Page: page}.Normalize()
}

// Normalize fills in the first page and the default page size.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Row is one table row. Cells are keyed by column key.
type Row struct {
	ID    string
	Cells map[string]string
}

// Page is a slice of rows plus the totals used for pagination.
type Page struct {
	Rows       []Row
	TotalItems int
	TotalPages int
	PerPage    int
	Page       int
}

// Source lists rows.
type Source interface {
	List(ctx context.Context, q Query) (Page, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, q Query) (Page, error)

// List implements Source.
func (f SourceFunc) List(ctx context.Context, q Query) (Page, error) {
	return f(ctx, q)
}

// MemorySource pages over a fixed row set.
type MemorySource struct {
	rows    []Row
	columns []string
}

// NewMemorySource searches the listed columns. Rows are kept in the given
// order.
func NewMemorySource(rows []Row, searchColumns ...string) *MemorySource {
	return &MemorySource{rows: append([]Row(nil), rows...), columns: append([]string(nil), searchColumns...)}
}

// List implements Source.
func (s *MemorySource) List(ctx context.Context, q Query) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	q = q.Normalize()
	needle := strings.ToLower(q.Search)
	var matched []Row
	for _, row := range s.rows {
		if needle == "" || s.matches(row, needle) {
			matched = append(matched, row)
		}
	}
	return Paginate(matched, q), nil
}

func (s *MemorySource) matches(row Row, needle string) bool {
	columns := s.columns
	if len(columns) == 0 {
		columns = make([]string, 0, len(row.Cells))
		for key := range row.Cells {
			columns = append(columns, key)
		}
		sort.Strings(columns)
	}
	for _, column := range columns {
		if strings.Contains(strings.ToLower(row.Cells[column]), needle) {
			return true
		}
	}
	return false
}

// Paginate cuts the page q asks for out of rows.
func Paginate(rows []Row, q Query) Page {
	q = q.Normalize()
	total := len(rows)
	pages := (total + q.PerPage - 1) / q.PerPage
	start := (q.Page - 1) * q.PerPage
	if start > total {
		start = total
	}
	end := start + q.PerPage
	if end > total {
		end = total
	}
	return Page{
		Rows:       append([]Row(nil), rows[start:end]...),
		TotalItems: total,
		TotalPages: pages,
		PerPage:    q.PerPage,
		Page:       q.Page,
	}
}

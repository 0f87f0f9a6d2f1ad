package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupRows(n int) []Row {
	rows := make([]Row, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, Row{
			ID:    fmt.Sprintf("%d", i),
			Cells: map[string]string{"group_name": fmt.Sprintf("Group %02d", i), "owner": "admin"},
		})
	}
	return rows
}

func TestQueryFromValues(t *testing.T) {
	q := QueryFromValues(url.Values{"s": {"  math "}, "paged": {"3"}})
	assert.Equal(t, Query{Search: "math", Page: 3, PerPage: DefaultPerPage}, q)

	q = QueryFromValues(url.Values{"paged": {"zero"}})
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPerPage, q.PerPage)
}

func TestMemorySourcePaginates(t *testing.T) {
	source := NewMemorySource(groupRows(45), "group_name")
	page, err := source.List(context.Background(), Query{Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 45, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 20, page.PerPage)
	require.Len(t, page.Rows, 5)
	assert.Equal(t, "41", page.Rows[0].ID)

	page, err = source.List(context.Background(), Query{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 3, page.TotalPages)
}

func TestMemorySourceSearchIsCaseInsensitiveContains(t *testing.T) {
	rows := []Row{
		{ID: "1", Cells: map[string]string{"name": "Algebra Club", "email": "a@example.com"}},
		{ID: "2", Cells: map[string]string{"name": "Biology", "email": "ALG@example.com"}},
		{ID: "3", Cells: map[string]string{"name": "Chemistry", "email": "c@example.com"}},
	}
	byName := NewMemorySource(rows, "name")
	page, err := byName.List(context.Background(), Query{Search: "alg"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "1", page.Rows[0].ID)

	anyColumn := NewMemorySource(rows)
	page, err = anyColumn.List(context.Background(), Query{Search: "alg"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
}

func TestMemorySourceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemorySource(groupRows(1)).List(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTableRender(t *testing.T) {
	table := &Table{
		Name:  "groups",
		Title: "Groups",
		Columns: []Column{
			{Key: "group_name", Title: "Name", Primary: true},
			{Key: "owner", Title: "Owner"},
		},
		Actions: []Action{
			{Label: "Edit", Param: "group_id", Path: "/groups/edit"},
			{Label: "List Users", Param: "group_id"},
		},
		Source: NewMemorySource(groupRows(25), "group_name"),
	}
	base, err := url.Parse("/lists/groups?page=group_admin_page&paged=2&s=Group")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.Render(context.Background(), &buf, base, Query{Search: "Group", Page: 2}))
	out := buf.String()

	for _, want := range []string{
		`<input type="hidden" name="paged" value="1" />`,
		`<input type="search" id="groups-search-input" name="s" value="Group" />`,
		`<th scope="col" class="column-group_name">Name</th>`,
		`<td>Group 21<div class="row-actions">`,
		`<a href="/groups/edit?group_id=21&amp;page=group_admin_page">Edit</a>`,
		`<a href="/lists/groups?group_id=21&amp;page=group_admin_page">List Users</a>`,
		`<span class="displaying-num">25 items</span>`,
		`<a class="page-numbers" href="/lists/groups?page=group_admin_page&amp;paged=1&amp;s=Group">1</a>`,
		`<span class="current-page">2</span>`,
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 5, strings.Count(out, `<div class="row-actions">`))
}

func TestTableRenderEmpty(t *testing.T) {
	table := &Table{
		Name:    "users",
		Columns: []Column{{Key: "username", Title: "Username", Primary: true}},
		Source:  NewMemorySource(nil),
	}
	var buf bytes.Buffer
	require.NoError(t, table.Render(context.Background(), &buf, nil, Query{}))
	out := buf.String()
	assert.Contains(t, out, `<td colspan="1">No items found.</td>`)
	assert.NotContains(t, out, `name="s"`)
	assert.NotContains(t, out, "page-numbers")
}

func TestTableRenderEscapesCells(t *testing.T) {
	table := &Table{
		Name:    "users",
		Columns: []Column{{Key: "name", Title: "Name"}},
		Source:  NewMemorySource([]Row{{ID: "1", Cells: map[string]string{"name": "<b>x</b>"}}}),
	}
	var buf bytes.Buffer
	require.NoError(t, table.Render(context.Background(), &buf, nil, Query{}))
	assert.Contains(t, buf.String(), "&lt;b&gt;x&lt;/b&gt;")
}

func TestTableRenderWrapsSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	table := &Table{Name: "broken", Source: SourceFunc(func(context.Context, Query) (Page, error) {
		return Page{}, boom
	})}
	err := table.Render(context.Background(), &bytes.Buffer{}, nil, Query{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "listing: broken")
}

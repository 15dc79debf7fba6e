package listutil

import (
	"net/url"
	"reflect"
	"testing"
)

var testOpts = Options{
	SortColumns: []string{"nombre", "fecha_fin"},
	DefaultSort: "nombre",
	FilterKeys:  []string{"departamento"},
}

// TestParse_Defaults verifies defaults when no query values are provided.
func TestParse_Defaults(t *testing.T) {
	p := Parse(url.Values{}, testOpts)
	if p.Page != 1 || p.PerPage != DefaultPerPage {
		t.Errorf("page=%d per_page=%d", p.Page, p.PerPage)
	}
	if p.Sort != "nombre" || p.Dir != DirAsc {
		t.Errorf("sort=%q dir=%q", p.Sort, p.Dir)
	}
	if len(p.Filters) != 0 || p.Search != "" {
		t.Errorf("unexpected filters %v / search %q", p.Filters, p.Search)
	}
}

// TestParse_Values verifies valid values are kept and invalid ones replaced.
func TestParse_Values(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  Params
	}{
		{
			name:  "valid",
			query: url.Values{"page": {"3"}, "per_page": {"50"}, "sort": {"fecha_fin"}, "dir": {"desc"}, "q": {" maria "}, "departamento": {"crossfit"}},
			want:  Params{Page: 3, PerPage: 50, Sort: "fecha_fin", Dir: DirDesc, Search: "maria", Filters: map[string]string{"departamento": "crossfit"}},
		},
		{
			name:  "invalid",
			query: url.Values{"page": {"-2"}, "per_page": {"25"}, "sort": {"email"}, "dir": {"sideways"}, "genero": {"F"}},
			want:  Params{Page: 1, PerPage: DefaultPerPage, Sort: "nombre", Dir: DirAsc, Filters: map[string]string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.query, testOpts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestParams_SortLink verifies the direction toggles only on the current column.
func TestParams_SortLink(t *testing.T) {
	p := Parse(url.Values{"sort": {"nombre"}, "page": {"4"}, "q": {"ana"}}, testOpts)

	same, _ := url.ParseQuery(p.SortLink("nombre")[1:])
	if same.Get("dir") != DirDesc || same.Get("page") != "" || same.Get("q") != "ana" {
		t.Errorf("SortLink(nombre) = %v", same)
	}
	other, _ := url.ParseQuery(p.SortLink("fecha_fin")[1:])
	if other.Get("sort") != "fecha_fin" || other.Get("dir") != DirAsc {
		t.Errorf("SortLink(fecha_fin) = %v", other)
	}
}

// TestParams_PageLink verifies the other parameters are carried along.
func TestParams_PageLink(t *testing.T) {
	p := Parse(url.Values{"departamento": {"natacion"}, "per_page": {"10"}}, testOpts)
	q, _ := url.ParseQuery(p.PageLink(2)[1:])
	if q.Get("page") != "2" || q.Get("per_page") != "10" || q.Get("departamento") != "natacion" {
		t.Errorf("PageLink(2) = %v", q)
	}
}

// TestNewPageInfo verifies page clamping and totals.
func TestNewPageInfo(t *testing.T) {
	tests := []struct {
		page, perPage, total int
		wantPage, wantPages  int
		wantStart, wantEnd   int
	}{
		{1, 20, 0, 1, 1, 0, 0},
		{1, 20, 45, 1, 3, 1, 20},
		{3, 20, 45, 3, 3, 41, 45},
		{9, 20, 45, 3, 3, 41, 45},
		{0, 0, 5, 1, 1, 1, 5},
	}
	for _, tt := range tests {
		pi := NewPageInfo(tt.page, tt.perPage, tt.total)
		if pi.Page != tt.wantPage || pi.TotalPages != tt.wantPages {
			t.Errorf("NewPageInfo(%d,%d,%d) page=%d pages=%d", tt.page, tt.perPage, tt.total, pi.Page, pi.TotalPages)
		}
		if pi.StartRow() != tt.wantStart || pi.EndRow() != tt.wantEnd {
			t.Errorf("NewPageInfo(%d,%d,%d) rows %d-%d", tt.page, tt.perPage, tt.total, pi.StartRow(), pi.EndRow())
		}
	}
}

// TestPageNumbers verifies the window of page buttons.
func TestPageNumbers(t *testing.T) {
	tests := []struct {
		page, pages int
		want        []int
	}{
		{1, 1, []int{1}},
		{1, 10, []int{1, 2, 3, 4, 5}},
		{6, 10, []int{4, 5, 6, 7, 8}},
		{10, 10, []int{6, 7, 8, 9, 10}},
	}
	for _, tt := range tests {
		pi := PageInfo{Page: tt.page, PerPage: 10, Total: tt.pages * 10, TotalPages: tt.pages}
		if got := pi.PageNumbers(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PageNumbers(page=%d, pages=%d) = %v, want %v", tt.page, tt.pages, got, tt.want)
		}
	}
}

// TestPaginate verifies slicing at the edges.
func TestPaginate(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}
	if got := Paginate(rows, NewPageInfo(2, 10, len(rows))); !reflect.DeepEqual(got, rows) {
		t.Errorf("single page = %v", got)
	}
	pi := PageInfo{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}
	if got := Paginate(rows, pi); !reflect.DeepEqual(got, []int{3, 4}) {
		t.Errorf("page 2 = %v", got)
	}
	if got := Paginate([]int{}, NewPageInfo(1, 20, 0)); len(got) != 0 {
		t.Errorf("empty = %v", got)
	}
	if !pi.ShowPagination() || NewPageInfo(1, 20, 5).ShowPagination() {
		t.Error("ShowPagination mismatch")
	}
}

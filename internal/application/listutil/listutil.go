package listutil

import (
	"net/url"
	"strconv"
	"strings"
)

// Sort directions.
const (
	DirAsc  = "asc"
	DirDesc = "desc"
)

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 20

// PerPageOptions are the allowed rows-per-page values.
var PerPageOptions = []int{10, 20, 50, 100}

// Options describes what a list view accepts.
type Options struct {
	SortColumns []string // allowed values of ?sort
	DefaultSort string   // used when ?sort is missing or not allowed
	FilterKeys  []string // exact-match filter parameters
}

// Params carries the list view state parsed from a query string.
type Params struct {
	Page    int    // 1-indexed
	PerPage int    // one of PerPageOptions
	Sort    string // one of Options.SortColumns, or DefaultSort
	Dir     string // DirAsc or DirDesc
	Search  string // free text from ?q, trimmed
	Filters map[string]string
}

// Parse reads list parameters from URL query values.
// PRE: none
// POST: every field holds a valid value; unknown filter keys are dropped
func Parse(q url.Values, opts Options) Params {
	p := Params{
		Page:    atoiOr(q.Get("page"), 1),
		PerPage: atoiOr(q.Get("per_page"), DefaultPerPage),
		Sort:    q.Get("sort"),
		Dir:     q.Get("dir"),
		Search:  strings.TrimSpace(q.Get("q")),
		Filters: make(map[string]string),
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if !contains(PerPageOptions, p.PerPage) {
		p.PerPage = DefaultPerPage
	}
	if !contains(opts.SortColumns, p.Sort) {
		p.Sort = opts.DefaultSort
	}
	if p.Dir != DirDesc {
		p.Dir = DirAsc
	}
	for _, key := range opts.FilterKeys {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			p.Filters[key] = v
		}
	}
	return p
}

// Filter returns the value of one exact-match filter, "" when unset.
func (p Params) Filter(key string) string {
	return p.Filters[key]
}

// Values encodes the parameters back into a query string form.
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Search != "" {
		v.Set("q", p.Search)
	}
	for k, f := range p.Filters {
		v.Set(k, f)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
		v.Set("dir", p.Dir)
	}
	if p.Page > 1 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage != DefaultPerPage {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	return v
}

// PageLink returns the query string for another page of the same view.
func (p Params) PageLink(page int) string {
	p.Page = page
	return "?" + p.Values().Encode()
}

// SortLink returns the query string that sorts by col, flipping the
// direction when col is already the sort column. Sorting resets to page 1.
func (p Params) SortLink(col string) string {
	if p.Sort == col && p.Dir == DirAsc {
		p.Dir = DirDesc
	} else {
		p.Dir = DirAsc
	}
	p.Sort = col
	p.Page = 1
	return "?" + p.Values().Encode()
}

// PageInfo carries pagination metadata for rendering.
type PageInfo struct {
	Page       int // current page (1-indexed), clamped to TotalPages
	PerPage    int
	Total      int // matching rows before pagination
	TotalPages int
}

// NewPageInfo computes pagination metadata.
// PRE: total >= 0
// POST: 1 <= Page <= TotalPages, TotalPages >= 1
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)
	return PageInfo{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the index of the first row on the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// StartRow returns the 1-indexed first row number, 0 for an empty list.
func (p PageInfo) StartRow() int {
	if p.Total == 0 {
		return 0
	}
	return p.Offset() + 1
}

// EndRow returns the 1-indexed last row number on the current page.
func (p PageInfo) EndRow() int {
	return min(p.Offset()+p.PerPage, p.Total)
}

// PageNumbers returns at most five page numbers centred on the current page.
func (p PageInfo) PageNumbers() []int {
	const maxButtons = 5
	start := max(p.Page-maxButtons/2, 1)
	end := start + maxButtons - 1
	if end > p.TotalPages {
		end = p.TotalPages
		start = max(end-maxButtons+1, 1)
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// ShowPagination reports whether there is more than one page.
func (p PageInfo) ShowPagination() bool {
	return p.TotalPages > 1
}

// Paginate returns the slice of rows on the page described by info.
// PRE: info was computed from len(rows)
// POST: result aliases rows
func Paginate[T any](rows []T, info PageInfo) []T {
	start := min(info.Offset(), len(rows))
	end := min(start+info.PerPage, len(rows))
	return rows[start:end]
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

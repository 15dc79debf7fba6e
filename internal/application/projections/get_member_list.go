package projections

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode"

	"gymdesk/internal/application/listutil"
	"gymdesk/internal/domain/member"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sort columns of the member list.
const (
	SortFirstName = member.FieldFirstName
	SortLastName  = member.FieldLastName
	SortCode      = member.FieldCode
	SortStartDate = member.FieldStartDate
	SortEndDate   = member.FieldEndDate
)

// DepartmentAll is the department filter value meaning no filter.
const DepartmentAll = "all"

// MemberListOptions are the list parameters the member list accepts.
var MemberListOptions = listutil.Options{
	SortColumns: []string{SortFirstName, SortLastName, SortCode, SortStartDate, SortEndDate},
	DefaultSort: SortFirstName,
	FilterKeys:  []string{member.FieldDepartment},
}

// MemberSource supplies the fetched member collection.
type MemberSource interface {
	Members() []member.Member
}

// GetMemberListQuery carries query parameters.
type GetMemberListQuery struct {
	Params listutil.Params
	Now    time.Time // render time for the expiry flag
}

// MemberRow is one member as shown in the list.
type MemberRow struct {
	member.Member
	Expired         bool
	DepartmentLabel string
}

// RemoteSearch asks the member service itself. It is consulted when a
// search finds nothing in a collection that was cut at the fetch limit.
type RemoteSearch interface {
	Truncated() bool
	Search(ctx context.Context, term string) ([]member.Member, error)
}

// GetMemberListResult carries the query result.
type GetMemberListResult struct {
	Rows      []MemberRow // current page only
	Page      listutil.PageInfo
	Params    listutil.Params
	Collected int  // size of the collection before filtering
	Remote    bool // rows came from the member service's search
}

// GetMemberListDeps holds dependencies for GetMemberList.
type GetMemberListDeps struct {
	Source MemberSource
	Remote RemoteSearch // optional
}

// QueryGetMemberList filters, sorts and paginates the fetched collection.
// PRE: query.Params came from listutil.Parse with MemberListOptions
// POST: Rows hold the requested page; each row's Expired is computed against query.Now
// INVARIANT: the source collection is not reordered or modified
func QueryGetMemberList(ctx context.Context, query GetMemberListQuery, deps GetMemberListDeps) (GetMemberListResult, error) {
	if err := ctx.Err(); err != nil {
		return GetMemberListResult{}, err
	}
	all := deps.Source.Members()

	department := query.Params.Filter(member.FieldDepartment)
	matched := FilterMembers(all, query.Params.Search, department)
	remote := false
	if len(matched) == 0 && strings.TrimSpace(query.Params.Search) != "" && deps.Remote != nil && deps.Remote.Truncated() {
		// The searcher reports its own failures; the empty local result stands.
		if found, err := deps.Remote.Search(ctx, query.Params.Search); err == nil {
			matched = FilterMembers(found, "", department)
			remote = true
		}
	}
	SortMembers(matched, query.Params.Sort, query.Params.Dir == listutil.DirDesc)

	page := listutil.NewPageInfo(query.Params.Page, query.Params.PerPage, len(matched))
	visible := listutil.Paginate(matched, page)

	rows := make([]MemberRow, 0, len(visible))
	for _, m := range visible {
		rows = append(rows, MemberRow{
			Member:          m,
			Expired:         m.IsExpired(query.Now),
			DepartmentLabel: m.DepartmentLabel(),
		})
	}
	params := query.Params
	params.Page = page.Page
	return GetMemberListResult{Rows: rows, Page: page, Params: params, Collected: len(all), Remote: remote}, nil
}

// FilterMembers returns the members whose first name, last name or code
// contains search (ignoring case and accents), restricted to department
// unless it is empty or DepartmentAll.
// POST: result is a new slice in source order
func FilterMembers(members []member.Member, search, department string) []member.Member {
	needle := fold(strings.TrimSpace(search))
	out := make([]member.Member, 0, len(members))
	for _, m := range members {
		if department != "" && department != DepartmentAll && m.Department != department {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold(m.FirstName), needle) &&
			!strings.Contains(fold(m.LastName), needle) &&
			!strings.Contains(fold(m.Code), needle) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// fold lower-cases s and strips combining marks, so "María" matches "maria".
func fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// SortMembers sorts members in place by one column. Text columns use
// Spanish collation, date columns compare calendar days. Equal keys keep
// their existing order.
// PRE: column is one of MemberListOptions.SortColumns; others leave members unchanged
func SortMembers(members []member.Member, column string, desc bool) {
	var cmp func(a, b member.Member) int
	switch column {
	case SortFirstName, SortLastName, SortCode:
		col := collate.New(language.Spanish, collate.IgnoreCase)
		cmp = func(a, b member.Member) int {
			return col.CompareString(a.Get(column), b.Get(column))
		}
	case SortStartDate, SortEndDate:
		cmp = func(a, b member.Member) int {
			return strings.Compare(dateKey(a.Get(column)), dateKey(b.Get(column)))
		}
	default:
		return
	}
	if desc {
		asc := cmp
		cmp = func(a, b member.Member) int { return asc(b, a) }
	}
	slices.SortStableFunc(members, cmp)
}

// dateKey returns the YYYY-MM-DD form of a stored date, which orders
// chronologically as text. Unreadable dates sort first.
func dateKey(s string) string {
	d := member.NormalizeDate(s)
	if _, err := time.Parse(member.DateLayout, d); err != nil {
		return ""
	}
	return d
}

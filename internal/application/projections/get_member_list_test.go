package projections

import (
	"context"
	"net/url"
	"testing"
	"time"

	"gymdesk/internal/application/listutil"
	"gymdesk/internal/domain/member"
)

type mockMemberSource struct {
	members []member.Member
}

// Members returns the seeded collection.
// PRE: none
// POST: returns the same slice every call
func (m *mockMemberSource) Members() []member.Member {
	return m.members
}

func seeded(id int64, first, last, code, dept, end string) member.Member {
	return member.Member{ID: id, Fields: member.Fields{
		FirstName: first, LastName: last, Code: code, Department: dept,
		StartDate: "2023-01-01", EndDate: end,
	}}
}

func query(q url.Values, now time.Time) GetMemberListQuery {
	return GetMemberListQuery{Params: listutil.Parse(q, MemberListOptions), Now: now}
}

func ids(rows []MemberRow) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestQueryGetMemberList_SearchIsCaseInsensitiveSubstring checks that "maria"
// matches a first name "Maria" and a last name "Almaria" but not "Carlos".
func TestQueryGetMemberList_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	src := &mockMemberSource{members: []member.Member{
		seeded(1, "Maria", "Lopez", "A1", member.DepartmentCrossfit, "2030-01-01"),
		seeded(2, "Jose", "Almaria", "A2", member.DepartmentSwimming, "2030-01-01"),
		seeded(3, "Carlos", "Ruiz", "A3", member.DepartmentCrossfit, "2030-01-01"),
		seeded(4, "Ana", "Soto", "MARIA-4", member.DepartmentStrength, "2030-01-01"),
	}}

	res, err := QueryGetMemberList(context.Background(), query(url.Values{"q": {"maria"}}, time.Now()), GetMemberListDeps{Source: src})
	if err != nil {
		t.Fatalf("QueryGetMemberList: %v", err)
	}
	got := map[int64]bool{}
	for _, r := range res.Rows {
		got[r.ID] = true
	}
	if !got[1] || !got[2] || !got[4] || got[3] {
		t.Errorf("matched %v, want 1, 2 and 4 only", ids(res.Rows))
	}
	if res.Collected != 4 {
		t.Errorf("Collected = %d, want 4", res.Collected)
	}
}

// TestFilterMembers_AccentsAndDepartment checks accent folding and the department filter layering.
func TestFilterMembers_AccentsAndDepartment(t *testing.T) {
	members := []member.Member{
		seeded(1, "María", "Lopez", "", member.DepartmentCrossfit, ""),
		seeded(2, "Mariana", "Díaz", "", member.DepartmentSwimming, ""),
		seeded(3, "Carlos", "Ruiz", "", member.DepartmentCrossfit, ""),
	}

	tests := []struct {
		name       string
		search     string
		department string
		want       []int64
	}{
		{"accent in data", "maria", "", []int64{1, 2}},
		{"accent in search", "MARÍA", "", []int64{1, 2}},
		{"department only", "", member.DepartmentCrossfit, []int64{1, 3}},
		{"search within department", "mari", member.DepartmentSwimming, []int64{2}},
		{"all departments", "", DepartmentAll, []int64{1, 2, 3}},
		{"no match", "zz", "", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for _, m := range FilterMembers(members, tt.search, tt.department) {
				got = append(got, m.ID)
			}
			if got == nil {
				got = []int64{}
			}
			if !equalIDs(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// TestQueryGetMemberList_SortByEndDateAndExpiry checks chronological sorting
// and the render-time expiry flag.
func TestQueryGetMemberList_SortByEndDateAndExpiry(t *testing.T) {
	src := &mockMemberSource{members: []member.Member{
		seeded(1, "A", "A", "", "", "2024-01-01"),
		seeded(2, "B", "B", "", "", "2023-06-15"),
		seeded(3, "C", "C", "", "", "2025-03-10T00:00:00"),
	}}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	res, err := QueryGetMemberList(context.Background(),
		query(url.Values{"sort": {SortEndDate}, "dir": {"asc"}}, now), GetMemberListDeps{Source: src})
	if err != nil {
		t.Fatalf("QueryGetMemberList: %v", err)
	}
	if !equalIDs(ids(res.Rows), []int64{2, 1, 3}) {
		t.Fatalf("order = %v, want [2 1 3]", ids(res.Rows))
	}
	wantExpired := []bool{true, true, false}
	for i, r := range res.Rows {
		if r.Expired != wantExpired[i] {
			t.Errorf("row %d (end %s) Expired = %v, want %v", r.ID, r.EndDate, r.Expired, wantExpired[i])
		}
	}

	desc, _ := QueryGetMemberList(context.Background(),
		query(url.Values{"sort": {SortEndDate}, "dir": {"desc"}}, now), GetMemberListDeps{Source: src})
	if !equalIDs(ids(desc.Rows), []int64{3, 1, 2}) {
		t.Errorf("desc order = %v, want [3 1 2]", ids(desc.Rows))
	}
	if src.members[0].ID != 1 {
		t.Error("source collection was reordered")
	}
}

// TestSortMembers_SpanishCollation checks locale-aware ordering of names.
func TestSortMembers_SpanishCollation(t *testing.T) {
	members := []member.Member{
		seeded(1, "Ñandú", "", "", "", ""),
		seeded(2, "nube", "", "", "", ""),
		seeded(3, "Óscar", "", "", "", ""),
		seeded(4, "oso", "", "", "", ""),
		seeded(5, "Nadia", "", "", "", ""),
	}
	SortMembers(members, SortFirstName, false)

	var got []int64
	for _, m := range members {
		got = append(got, m.ID)
	}
	// ñ sorts after n; case and accents do not split o/Ó.
	if !equalIDs(got, []int64{5, 2, 1, 3, 4}) {
		t.Errorf("order = %v, want [5 2 1 3 4]", got)
	}
}

// TestSortMembers_StableOnTies checks equal keys keep collection order.
func TestSortMembers_StableOnTies(t *testing.T) {
	members := []member.Member{
		seeded(1, "Ana", "", "", "", ""),
		seeded(2, "ana", "", "", "", ""),
		seeded(3, "Ana", "", "", "", ""),
	}
	SortMembers(members, SortFirstName, true)
	if members[0].ID != 1 || members[1].ID != 2 || members[2].ID != 3 {
		t.Errorf("ties reordered: %d %d %d", members[0].ID, members[1].ID, members[2].ID)
	}
}

// TestQueryGetMemberList_Pagination checks paging and page clamping.
func TestQueryGetMemberList_Pagination(t *testing.T) {
	var members []member.Member
	for i := int64(1); i <= 25; i++ {
		members = append(members, seeded(i, "Socio", "", "", "", ""))
	}
	src := &mockMemberSource{members: members}

	res, _ := QueryGetMemberList(context.Background(),
		query(url.Values{"page": {"2"}, "per_page": {"10"}}, time.Now()), GetMemberListDeps{Source: src})
	if len(res.Rows) != 10 || res.Rows[0].ID != 11 {
		t.Errorf("page 2 = %v", ids(res.Rows))
	}

	last, _ := QueryGetMemberList(context.Background(),
		query(url.Values{"page": {"99"}, "per_page": {"10"}}, time.Now()), GetMemberListDeps{Source: src})
	if last.Page.Page != 3 || len(last.Rows) != 5 || last.Params.Page != 3 {
		t.Errorf("clamped page = %d, rows = %d", last.Page.Page, len(last.Rows))
	}
}

// TestQueryGetMemberList_CancelledContext checks the query honours cancellation.
func TestQueryGetMemberList_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := QueryGetMemberList(ctx, query(url.Values{}, time.Now()), GetMemberListDeps{Source: &mockMemberSource{}}); err == nil {
		t.Error("expected context error")
	}
}

type mockRemoteSearch struct {
	truncated bool
	found     []member.Member
	err       error
	terms     []string
}

// Truncated reports the seeded flag.
// PRE: none
// POST: returns truncated
func (m *mockRemoteSearch) Truncated() bool { return m.truncated }

// Search records the term.
// PRE: none
// POST: returns found, or err when set
func (m *mockRemoteSearch) Search(_ context.Context, term string) ([]member.Member, error) {
	m.terms = append(m.terms, term)
	return m.found, m.err
}

// TestQueryGetMemberList_RemoteSearchOnlyForTruncatedMiss checks when the
// member service's own search is consulted.
func TestQueryGetMemberList_RemoteSearchOnlyForTruncatedMiss(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	source := &mockMemberSource{members: []member.Member{
		seeded(1, "Maria", "Quispe", "A1", member.DepartmentSwimming, "2099-01-01"),
	}}
	archived := []member.Member{
		seeded(7, "Ana", "Torres", "Z7", member.DepartmentStrength, "2099-01-01"),
		seeded(8, "Rosa", "Torres", "Z8", member.DepartmentSwimming, "2099-01-01"),
	}

	tests := []struct {
		name       string
		q          url.Values
		truncated  bool
		wantIDs    []int64
		wantRemote bool
		wantCalls  int
	}{
		{"local match", url.Values{"q": {"quispe"}}, true, []int64{1}, false, 0},
		{"complete collection", url.Values{"q": {"torres"}}, false, []int64{}, false, 0},
		{"no search term", url.Values{"departamento": {member.DepartmentCrossfit}}, true, []int64{}, false, 0},
		{"truncated miss", url.Values{"q": {"torres"}}, true, []int64{7, 8}, true, 1},
		{"truncated miss keeps department", url.Values{"q": {"torres"}, "departamento": {member.DepartmentSwimming}}, true, []int64{8}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &mockRemoteSearch{truncated: tt.truncated, found: archived}
			res, err := QueryGetMemberList(context.Background(), query(tt.q, now),
				GetMemberListDeps{Source: source, Remote: remote})
			if err != nil {
				t.Fatalf("QueryGetMemberList: %v", err)
			}
			if got := ids(res.Rows); !equalIDs(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
			if res.Remote != tt.wantRemote || len(remote.terms) != tt.wantCalls {
				t.Errorf("remote = %v calls = %v", res.Remote, remote.terms)
			}
		})
	}

	failing := &mockRemoteSearch{truncated: true, err: context.DeadlineExceeded}
	res, err := QueryGetMemberList(context.Background(), query(url.Values{"q": {"torres"}}, now),
		GetMemberListDeps{Source: source, Remote: failing})
	if err != nil || len(res.Rows) != 0 || res.Remote {
		t.Errorf("failed search: rows = %d remote = %v err = %v", len(res.Rows), res.Remote, err)
	}
}

package web

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/remote/memberapi"
	"gymdesk/internal/domain/member"
)

// healthTimeout bounds the face service check made by /healthz.
const healthTimeout = 2 * time.Second

type apiMemberRow struct {
	member.Member
	Expired         bool   `json:"expired"`
	DepartmentLabel string `json:"department_label"`
}

type apiMemberList struct {
	Rows       []apiMemberRow `json:"rows"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
	Collected  int            `json:"collected"`
}

// handleAPIMembers returns the list view as JSON, with the same query
// parameters as GET /.
func handleAPIMembers(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	result, err := queryMemberList(r.Context(), c, r.URL.Query())
	if err != nil {
		internalError(w, err)
		return
	}
	rows := make([]apiMemberRow, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, apiMemberRow{Member: row.Member, Expired: row.Expired, DepartmentLabel: row.DepartmentLabel})
	}
	writeJSON(w, http.StatusOK, apiMemberList{
		Rows:       rows,
		Page:       result.Page.Page,
		PerPage:    result.Page.PerPage,
		Total:      result.Page.Total,
		TotalPages: result.Page.TotalPages,
		Collected:  result.Collected,
	})
}

// handleAPIMembership proxies the member service's own membership verdict.
func handleAPIMembership(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	status, err := deps.Members.MembershipStatus(r.Context(), id)
	if errors.Is(err, memberapi.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		memberapi.Membership
		Valid bool `json:"valid"`
	}{status, status.IsValid()})
}

type healthResponse struct {
	Status      string `json:"status"`
	FaceService string `json:"face_service"`
	Version     string `json:"version,omitempty"`
}

// handleHealthz reports liveness. The face service state is informational
// and never fails the check.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	face := "unavailable"
	if h, err := deps.Faces.Health(ctx); err == nil {
		face = h.Status
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", FaceService: face, Version: deps.Version})
}

// perfWindows are the look-back choices of the perf page, in minutes.
var perfWindows = []int{5, 15, 60, 24 * 60}

type perfPage struct {
	Window   time.Duration
	Windows  []int
	Snapshot perf.Snapshot
}

// handleAdminPerf renders request, remote call and query timings.
func handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = 15
	}
	minutes = min(minutes, slices.Max(perfWindows))
	var snap perf.Snapshot
	if deps.Collector != nil {
		snap = deps.Collector.Snapshot(timeNow().Add(-time.Duration(minutes)*time.Minute), 10)
	}
	renderTemplate(w, r, "perf.html", perfPage{
		Window:   time.Duration(minutes) * time.Minute,
		Windows:  perfWindows,
		Snapshot: snap,
	})
}

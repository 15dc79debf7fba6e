package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"gymdesk/internal/adapters/remote/memberapi"
	"gymdesk/internal/application/capture"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/enrollment"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/notice"
)

// maxFormBytes bounds a form post. It leaves room for a full batch plus
// files that AddFiles will skip.
const maxFormBytes = 2 * enrollment.MaxImages * enrollment.MaxImageSize

type sortColumn struct {
	Key    string
	Label  string
	Link   string
	Active bool
	Desc   bool
}

type memberListPage struct {
	Result         projections.GetMemberListResult
	Columns        []sortColumn
	Departments    []member.Option
	DepartmentAll  string
	Department     string
	PerPageOptions []int
}

var listColumns = []struct{ key, label string }{
	{projections.SortFirstName, "Nombre"},
	{projections.SortLastName, "Apellido"},
	{projections.SortCode, "Código"},
	{projections.SortStartDate, "Inicio"},
	{projections.SortEndDate, "Fin"},
}

// queryMemberList runs the list projection over the console's collection.
func queryMemberList(ctx context.Context, c *Console, q url.Values) (projections.GetMemberListResult, error) {
	_ = c.Shell.EnsureLoaded(ctx) // a failure is already a notification
	params := listutil.Parse(q, projections.MemberListOptions)
	return projections.QueryGetMemberList(ctx,
		projections.GetMemberListQuery{Params: params, Now: timeNow()},
		projections.GetMemberListDeps{Source: c.Shell, Remote: c.Shell},
	)
}

func handleMemberList(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if c.Shell.View() == orchestrators.ViewForm {
		// Leaving the form page releases the camera; the draft stays open.
		c.Staging.CloseCamera()
		redirect(w, r, "/members/form")
		return
	}

	result, err := queryMemberList(r.Context(), c, r.URL.Query())
	if err != nil {
		internalError(w, err)
		return
	}
	columns := make([]sortColumn, 0, len(listColumns))
	for _, col := range listColumns {
		columns = append(columns, sortColumn{
			Key:    col.key,
			Label:  col.label,
			Link:   "/" + result.Params.SortLink(col.key),
			Active: result.Params.Sort == col.key,
			Desc:   result.Params.Dir == listutil.DirDesc,
		})
	}
	department := result.Params.Filter(member.FieldDepartment)
	if department == "" {
		department = projections.DepartmentAll
	}
	renderTemplate(w, r, "list.html", memberListPage{
		Result:         result,
		Columns:        columns,
		Departments:    member.Departments,
		DepartmentAll:  projections.DepartmentAll,
		Department:     department,
		PerPageOptions: listutil.PerPageOptions,
	})
}

func handleNewMember(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if err := c.Shell.NewMember(r.Context()); err != nil {
		c.Shell.Notify(orchestrators.UserMessage(err), notice.SeverityError)
	}
	redirect(w, r, "/members/form")
}

func handleEditMember(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := c.Shell.Edit(r.Context(), id); err != nil {
		slog.Warn("member_event", "event", "member_edit_failed", "member_id", id, "error", err)
		c.Shell.Notify(orchestrators.UserMessage(err), notice.SeverityError)
		if c.Shell.View() != orchestrators.ViewForm {
			redirect(w, r, "/")
			return
		}
	}
	redirect(w, r, "/members/form")
}

type formField struct {
	Name      string
	Label     string
	Type      string // input type, or "select"
	Value     string
	Error     string
	Required  bool
	MaxLength int
	Options   []member.Option
}

type memberFormPage struct {
	Mode              string
	MemberID          int64
	CreatedAt         string
	Fields            []formField
	Staged            []capture.Entry
	MaxImages         int
	MaxImageMB        int
	CameraConfigured  bool
	CameraActive      bool
	CameraReady       bool
	Flash             captureFlash
	EnrollmentPending bool
	Submitting        bool
}

var fieldLabels = map[string]string{
	member.FieldFirstName:      "Nombre",
	member.FieldLastName:       "Apellido",
	member.FieldCode:           "Código",
	member.FieldDepartment:     "Departamento",
	member.FieldGender:         "Género",
	member.FieldBirthDate:      "Fecha de nacimiento",
	member.FieldStartDate:      "Inicio de membresía",
	member.FieldEndDate:        "Fin de membresía",
	member.FieldPhone:          "Celular",
	member.FieldEmail:          "Email",
	member.FieldAddress:        "Dirección",
	member.FieldDocumentType:   "Tipo de documento",
	member.FieldDocumentNumber: "Número de documento",
}

func inputType(name string) (string, []member.Option, int) {
	switch name {
	case member.FieldDepartment:
		return "select", member.Departments, 0
	case member.FieldGender:
		return "select", member.Genders, 0
	case member.FieldDocumentType:
		return "select", member.DocumentTypes, 0
	case member.FieldBirthDate, member.FieldStartDate, member.FieldEndDate:
		return "date", nil, 0
	case member.FieldEmail:
		return "email", nil, member.MaxEmailLength
	case member.FieldPhone:
		return "tel", nil, member.MaxPhoneLength
	case member.FieldFirstName, member.FieldLastName:
		return "text", nil, member.MaxNameLength
	case member.FieldCode, member.FieldDocumentNumber:
		return "text", nil, member.MaxCodeLength
	case member.FieldAddress:
		return "text", nil, member.MaxAddressLength
	}
	return "text", nil, 0
}

func formFields(f *orchestrators.MemberForm) []formField {
	draft := f.Draft()
	errs := f.FieldErrors()
	fields := make([]formField, 0, len(member.FieldNames))
	for _, name := range member.FieldNames {
		typ, options, maxLen := inputType(name)
		fields = append(fields, formField{
			Name:      name,
			Label:     fieldLabels[name],
			Type:      typ,
			Value:     draft.Get(name),
			Error:     errs[name],
			Required:  slices.Contains(member.RequiredFields, name),
			MaxLength: maxLen,
			Options:   options,
		})
	}
	return fields
}

func handleMemberForm(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if c.Shell.View() != orchestrators.ViewForm {
		redirect(w, r, "/")
		return
	}
	renderTemplate(w, r, "form.html", memberFormPage{
		Mode:              c.Form.Mode(),
		MemberID:          c.Form.MemberID(),
		CreatedAt:         c.Form.CreatedAt(),
		Fields:            formFields(c.Form),
		Staged:            c.Staging.Entries(),
		MaxImages:         enrollment.MaxImages,
		MaxImageMB:        enrollment.MaxImageSize >> 20,
		CameraConfigured:  deps.Camera != nil,
		CameraActive:      c.Staging.CameraActive(),
		CameraReady:       c.Staging.CameraReady(),
		Flash:             c.takeFlash(),
		EnrollmentPending: c.Form.EnrollmentPending(),
		Submitting:        c.Form.Submitting(),
	})
}

// parseConsoleForm reads a urlencoded or multipart form post.
func parseConsoleForm(r *http.Request) error {
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

// applyDraft copies the posted member fields into the draft. Capture
// buttons post the whole form, so typing is never lost.
func applyDraft(c *Console, r *http.Request) error {
	for _, name := range member.FieldNames {
		values, ok := r.PostForm[name]
		if !ok || len(values) == 0 {
			continue
		}
		if err := c.Form.UpdateField(name, values[0]); err != nil {
			return err
		}
	}
	return nil
}

func handleSubmitMemberForm(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if err := parseConsoleForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := applyDraft(c, r); err != nil {
		c.Shell.Notify(orchestrators.UserMessage(err), notice.SeverityWarning)
		redirect(w, r, "/members/form")
		return
	}

	res, err := c.Shell.Submit(r.Context())
	switch {
	case errors.Is(err, orchestrators.ErrFormNotOpen):
		redirect(w, r, "/")
	case err != nil:
		// Field errors, save and enrollment failures are rendered by the form.
		slog.Info("member_event", "event", "member_submit_failed", "member_id", res.MemberID, "error", err)
		redirect(w, r, "/members/form")
	default:
		redirect(w, r, "/")
	}
}

func handleCancelMemberForm(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if err := c.Shell.CancelForm(r.Context()); err != nil {
		c.Shell.Notify(orchestrators.UserMessage(err), notice.SeverityWarning)
		redirect(w, r, "/members/form")
		return
	}
	redirect(w, r, "/")
}

func handleRetryEnrollment(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if _, err := c.Shell.RetryEnrollment(r.Context()); err != nil {
		if errors.Is(err, orchestrators.ErrFormNotOpen) {
			redirect(w, r, "/")
			return
		}
		redirect(w, r, "/members/form")
		return
	}
	redirect(w, r, "/")
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid member id")
	}
	return id, nil
}

// lookupMember finds a member in the session's collection, then in the store.
func lookupMember(ctx context.Context, c *Console, id int64) (member.Member, error) {
	if m, ok := c.Shell.Find(id); ok {
		return m, nil
	}
	return deps.Members.GetByID(ctx, id)
}

type confirmDeletePage struct {
	Member member.Member
}

func handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	m, err := lookupMember(r.Context(), c, id)
	if errors.Is(err, memberapi.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		c.Shell.Notify("Error al cargar usuario: "+err.Error(), notice.SeverityError)
		redirect(w, r, "/")
		return
	}
	renderTemplate(w, r, "confirm_delete.html", confirmDeletePage{Member: m})
}

func handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	// Both outcomes are reported through the notification.
	_ = c.Shell.Delete(r.Context(), id)
	redirect(w, r, "/")
}

// handleEnrollHandoff sends the operator to the face service's capture page
// with a short-lived token naming the member.
func handleEnrollHandoff(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	m, err := lookupMember(r.Context(), c, id)
	if errors.Is(err, memberapi.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		c.Shell.Notify("Error al cargar usuario: "+err.Error(), notice.SeverityError)
		redirect(w, r, "/")
		return
	}
	link, err := deps.Handoff.Link(m.ID, m.FullName())
	if err != nil {
		internalError(w, err)
		return
	}
	slog.Info("member_event", "event", "enrollment_handoff", "member_id", m.ID)
	redirect(w, r, link)
}

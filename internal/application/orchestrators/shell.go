package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gymdesk/internal/adapters/remote/memberapi"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/notice"
)

// DefaultListLimit is the page size used to fetch the whole collection.
const DefaultListLimit = 10000

// Views
const (
	ViewList = "list"
	ViewForm = "form"
)

// ShellMemberStore is the part of the member service the shell reads and deletes through.
type ShellMemberStore interface {
	List(ctx context.Context, filter memberapi.ListFilter) ([]member.Member, error)
	GetByID(ctx context.Context, id int64) (member.Member, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, term string) ([]member.Member, error)
}

// ShellDeps holds dependencies for Shell.
type ShellDeps struct {
	Members   ShellMemberStore
	Form      *MemberForm
	ListLimit int
	// OnCreated runs after a member is created. It must not fail the save.
	OnCreated func(ctx context.Context, m member.Member)
	Now       func() time.Time
}

// Shell holds the fetched member collection, the view mode and the
// transient notification of one console session.
// INVARIANT: members changes only through LoadAll.
// INVARIANT: view is ViewForm only while the form is open.
type Shell struct {
	mu           sync.Mutex
	deps         ShellDeps
	members      []member.Member
	loaded       bool
	view         string
	notification notice.Notification
	pending      atomic.Int32
}

// NewShell returns a shell in list view with an empty collection.
// PRE: deps.Members and deps.Form are non-nil
func NewShell(deps ShellDeps) *Shell {
	if deps.ListLimit <= 0 {
		deps.ListLimit = DefaultListLimit
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Shell{deps: deps, view: ViewList}
}

func (s *Shell) track() func() {
	s.pending.Add(1)
	return func() { s.pending.Add(-1) }
}

// Loading reports whether a remote call started by the shell is outstanding.
func (s *Shell) Loading() bool {
	return s.pending.Load() > 0 || s.deps.Form.Submitting()
}

// LoadAll fetches the whole collection from the member service.
// PRE: none
// POST: on success Members() is the fetched list; on failure the previous
// collection is kept and an error notification is posted
func (s *Shell) LoadAll(ctx context.Context) error {
	defer s.track()()
	members, err := s.deps.Members.List(ctx, memberapi.ListFilter{Limit: s.deps.ListLimit})
	if err != nil {
		slog.Warn("member_event", "event", "member_list_failed", "error", err)
		s.Notify("Error al cargar usuarios: "+err.Error(), notice.SeverityError)
		return err
	}
	s.mu.Lock()
	s.members = members
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// EnsureLoaded loads the collection once per session.
func (s *Shell) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.LoadAll(ctx)
}

// Truncated reports whether the fetched collection filled the fetch limit,
// so members beyond it may exist.
func (s *Shell) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && len(s.members) >= s.deps.ListLimit
}

// Search runs the member service's own search.
// POST: on failure an error notification is posted
func (s *Shell) Search(ctx context.Context, term string) ([]member.Member, error) {
	defer s.track()()
	found, err := s.deps.Members.Search(ctx, term)
	if err != nil {
		slog.Warn("member_event", "event", "member_search_failed", "error", err)
		s.Notify("Error al buscar usuarios: "+err.Error(), notice.SeverityError)
		return nil, err
	}
	return found, nil
}

// Members returns a copy of the fetched collection.
func (s *Shell) Members() []member.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]member.Member, len(s.members))
	copy(out, s.members)
	return out
}

// Find looks a member up in the fetched collection.
func (s *Shell) Find(id int64) (member.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.ID == id {
			return m, true
		}
	}
	return member.Member{}, false
}

// View returns ViewList or ViewForm.
func (s *Shell) View() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Form returns the session's member form.
func (s *Shell) Form() *MemberForm {
	return s.deps.Form
}

// NewMember opens the form in create mode.
// POST: View() == ViewForm, form draft holds defaults
func (s *Shell) NewMember(ctx context.Context) error {
	if err := s.deps.Form.Initialize(ctx, nil); err != nil {
		return err
	}
	s.setView(ViewForm)
	return nil
}

// Edit opens the form in edit mode for id. The record comes from the
// fetched collection, or from the member service when it is not there yet.
// POST: View() == ViewForm bound to id, or an error and the view is unchanged
func (s *Shell) Edit(ctx context.Context, id int64) error {
	m, ok := s.Find(id)
	if !ok {
		done := s.track()
		fetched, err := s.deps.Members.GetByID(ctx, id)
		done()
		if errors.Is(err, memberapi.ErrNotFound) {
			return ErrMemberNotInStore
		}
		if err != nil {
			return err
		}
		m = fetched
	}
	if err := s.deps.Form.Initialize(ctx, &m); err != nil {
		return err
	}
	s.setView(ViewForm)
	return nil
}

// CancelForm discards the form and returns to the list.
func (s *Shell) CancelForm(ctx context.Context) error {
	if err := s.deps.Form.Cancel(ctx); err != nil {
		return err
	}
	s.setView(ViewList)
	return nil
}

// Submit runs the form's Submit and applies its outcome to the shell.
// PRE: View() == ViewForm
// POST: on full success the collection is reloaded, a success notification
// is posted and the view is ViewList; a failed reload turns it into a warning
// that names both outcomes
// POST: on *EnrollmentError the collection is reloaded and the view stays on the form
// POST: on other errors the collection and view are unchanged
func (s *Shell) Submit(ctx context.Context) (SubmitResult, error) {
	if s.View() != ViewForm {
		return SubmitResult{}, ErrFormNotOpen
	}
	res, err := s.deps.Form.Submit(ctx)

	var verr *member.ValidationError
	var eerr *EnrollmentError
	switch {
	case errors.As(err, &verr):
		// Shown next to the fields, not as a notification.
		return res, err
	case errors.As(err, &eerr):
		reloadErr := s.afterSave(ctx, res)
		s.Notify(withReloadFailure(UserMessage(err), reloadErr), notice.SeverityError)
		return res, err
	case err != nil:
		s.Notify(UserMessage(err), notice.SeverityError)
		return res, err
	}

	if reloadErr := s.afterSave(ctx, res); reloadErr != nil {
		s.Notify(withReloadFailure(successMessage(res), reloadErr), notice.SeverityWarning)
	} else {
		s.Notify(successMessage(res), notice.SeveritySuccess)
	}
	if err := s.deps.Form.Cancel(ctx); err != nil {
		slog.Warn("member_event", "event", "form_reset_failed", "error", err)
	}
	s.setView(ViewList)
	return res, nil
}

// RetryEnrollment re-uploads the staged images of the open form.
// POST: on success the view is ViewList
func (s *Shell) RetryEnrollment(ctx context.Context) (int, error) {
	if s.View() != ViewForm {
		return 0, ErrFormNotOpen
	}
	n, err := s.deps.Form.RetryEnrollment(ctx)
	if err != nil {
		s.Notify(UserMessage(err), notice.SeverityError)
		return 0, err
	}
	s.Notify("Registro facial completado", notice.SeveritySuccess)
	if err := s.deps.Form.Cancel(ctx); err != nil {
		slog.Warn("member_event", "event", "form_reset_failed", "error", err)
	}
	s.setView(ViewList)
	return n, nil
}

// afterSave runs the creation hook and reloads the collection. The reload
// error is returned so the caller can fold it into its own notification.
func (s *Shell) afterSave(ctx context.Context, res SubmitResult) error {
	if res.Created && s.deps.OnCreated != nil {
		s.deps.OnCreated(ctx, res.Member)
	}
	return s.LoadAll(ctx)
}

// withReloadFailure appends a failed list reload to msg.
func withReloadFailure(msg string, reloadErr error) string {
	if reloadErr == nil {
		return msg
	}
	return msg + ", pero no se pudo recargar la lista: " + reloadErr.Error()
}

func successMessage(res SubmitResult) string {
	msg := "Usuario actualizado exitosamente"
	if res.Created {
		msg = "Usuario registrado exitosamente"
	}
	if res.Enrolled > 0 {
		msg += " con registro facial"
	}
	return msg
}

// Delete removes a member after the operator confirmed it.
// PRE: id > 0
// POST: on success the collection is reloaded; on failure it is untouched
// and an error notification is posted
func (s *Shell) Delete(ctx context.Context, id int64) error {
	done := s.track()
	err := s.deps.Members.Delete(ctx, id)
	done()
	if err != nil {
		slog.Warn("member_event", "event", "member_delete_failed", "member_id", id, "error", err)
		s.Notify("Error al eliminar usuario: "+err.Error(), notice.SeverityError)
		return err
	}
	slog.Info("member_event", "event", "member_deleted", "member_id", id)
	if err := s.LoadAll(ctx); err != nil {
		s.Notify(withReloadFailure("Usuario eliminado exitosamente", err), notice.SeverityWarning)
		return nil
	}
	s.Notify("Usuario eliminado exitosamente", notice.SeveritySuccess)
	return nil
}

// Notify replaces the current notification.
func (s *Shell) Notify(message, severity string) {
	n, err := notice.New(message, severity, s.deps.Now())
	if err != nil {
		slog.Error("notice_event", "event", "notification_invalid", "error", err)
		return
	}
	s.mu.Lock()
	s.notification = n
	s.mu.Unlock()
}

// Notification returns the current notification while it is visible.
func (s *Shell) Notification() (notice.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.notification.Visible(s.deps.Now()) {
		return notice.Notification{}, false
	}
	return s.notification, true
}

// Dismiss clears the current notification.
func (s *Shell) Dismiss() {
	s.mu.Lock()
	s.notification = notice.Notification{}
	s.mu.Unlock()
}

// Close tears the session down: the form is discarded and the camera released.
func (s *Shell) Close(ctx context.Context) error {
	s.setView(ViewList)
	return s.deps.Form.Staging().Discard(ctx)
}

func (s *Shell) setView(v string) {
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

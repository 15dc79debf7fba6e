package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"gymdesk/internal/adapters/remote/faceapi"
	"gymdesk/internal/application/capture"
	"gymdesk/internal/domain/enrollment"
	"gymdesk/internal/domain/member"
)

// FormMemberStore is the part of the member service the form writes to.
type FormMemberStore interface {
	Create(ctx context.Context, fields member.Fields) (member.Member, error)
	Update(ctx context.Context, id int64, fields member.Fields) (member.Member, error)
}

// FaceEnroller uploads enrollment photos for a subject.
type FaceEnroller interface {
	AddFaces(ctx context.Context, subject string, images []enrollment.Image) (faceapi.Result, error)
}

// FormDefaults seeds a create-mode draft.
type FormDefaults struct {
	Department   string
	DocumentType string
}

// MemberFormDeps holds dependencies for MemberForm.
type MemberFormDeps struct {
	Members  FormMemberStore
	Faces    FaceEnroller
	Staging  *capture.Staging
	Defaults FormDefaults
}

// Form modes
const (
	ModeCreate = "create"
	ModeEdit   = "edit"
)

// SubmitResult reports what a successful (or partly successful) Submit did.
type SubmitResult struct {
	MemberID int64
	Created  bool
	Enrolled int
	Member   member.Member
}

// MemberForm mediates between a draft member, the member service and the
// face enrollment service.
// INVARIANT: at most one Submit or RetryEnrollment runs at a time.
// INVARIANT: id is zero in create mode and fixed once the store assigns it.
type MemberForm struct {
	mu          sync.Mutex
	deps        MemberFormDeps
	draft       member.Fields
	id          int64
	createdAt   string
	fieldErrors map[string]string
	inFlight    bool

	// enrollPending is set when the record was saved but the upload failed.
	enrollPending bool
}

// NewMemberForm returns a form in create mode with an empty draft.
// PRE: deps.Members, deps.Faces and deps.Staging are non-nil
func NewMemberForm(deps MemberFormDeps) *MemberForm {
	f := &MemberForm{deps: deps}
	f.resetLocked(nil)
	return f
}

// Initialize replaces the draft with record, or with defaults when record is nil.
// Staged images and field errors from a previous use are discarded.
// PRE: no submit in flight
// POST: Mode() is ModeEdit iff record is persisted; dates are YYYY-MM-DD
func (f *MemberForm) Initialize(ctx context.Context, record *member.Member) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	f.resetLocked(record)
	f.mu.Unlock()
	return f.deps.Staging.Discard(ctx)
}

func (f *MemberForm) resetLocked(record *member.Member) {
	f.fieldErrors = nil
	f.enrollPending = false
	if record == nil {
		f.id = 0
		f.createdAt = ""
		f.draft = member.Fields{
			Department:   f.deps.Defaults.Department,
			DocumentType: f.deps.Defaults.DocumentType,
		}
		return
	}
	f.id = record.ID
	f.createdAt = record.CreatedAt
	f.draft = record.Fields.Normalized()
}

// UpdateField sets one draft field by its wire name.
// PRE: name is one of member.FieldNames
// POST: draft updated; the field's previous error is cleared
func (f *MemberForm) UpdateField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return ErrSubmitInFlight
	}
	if err := f.draft.Set(name, value); err != nil {
		return err
	}
	delete(f.fieldErrors, name)
	return nil
}

// Submit validates the draft, saves it and uploads any staged images.
// PRE: none
// POST: on *member.ValidationError nothing was sent to either service
// POST: on *SaveError no enrollment upload was attempted
// POST: on *EnrollmentError the member is saved, the form is in edit mode
// bound to the saved id, and staging is unchanged
// POST: images staged while the upload ran are kept and reported as an
// *EnrollmentError wrapping ErrStagedDuringUpload
// POST: on nil error staging is empty
func (f *MemberForm) Submit(ctx context.Context) (SubmitResult, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return SubmitResult{}, ErrSubmitInFlight
	}
	if err := f.draft.Validate(); err != nil {
		var verr *member.ValidationError
		if errors.As(err, &verr) {
			f.fieldErrors = verr.ByField()
		}
		f.mu.Unlock()
		return SubmitResult{}, err
	}
	f.fieldErrors = nil
	f.inFlight = true
	fields, id := f.draft, f.id
	f.mu.Unlock()
	defer f.done()

	res, err := f.save(ctx, id, fields)
	if err != nil {
		return SubmitResult{}, err
	}

	f.mu.Lock()
	f.id = res.MemberID
	f.createdAt = res.Member.CreatedAt
	f.mu.Unlock()

	if f.deps.Staging.Len() == 0 {
		return res, nil
	}
	n, err := f.enroll(ctx, res.MemberID)
	res.Enrolled = n
	return res, err
}

// RetryEnrollment uploads the staged images again for a saved member.
// PRE: the member has been saved and staging is non-empty
// POST: on success staging is empty
func (f *MemberForm) RetryEnrollment(ctx context.Context) (int, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return 0, ErrSubmitInFlight
	}
	if f.id == 0 {
		f.mu.Unlock()
		return 0, ErrNotPersisted
	}
	if f.deps.Staging.Len() == 0 {
		f.mu.Unlock()
		return 0, ErrNothingToEnroll
	}
	f.inFlight = true
	id := f.id
	f.mu.Unlock()
	defer f.done()

	return f.enroll(ctx, id)
}

func (f *MemberForm) done() {
	f.mu.Lock()
	f.inFlight = false
	f.mu.Unlock()
}

func (f *MemberForm) save(ctx context.Context, id int64, fields member.Fields) (SubmitResult, error) {
	if id != 0 {
		saved, err := f.deps.Members.Update(ctx, id, fields)
		if err != nil {
			slog.Warn("member_event", "event", "member_update_failed", "member_id", id, "error", err)
			return SubmitResult{}, &SaveError{Op: "update", Err: err}
		}
		if saved.ID == 0 {
			saved.ID = id
		}
		slog.Info("member_event", "event", "member_updated", "member_id", id)
		return SubmitResult{MemberID: id, Member: saved}, nil
	}

	saved, err := f.deps.Members.Create(ctx, fields)
	if err != nil {
		slog.Warn("member_event", "event", "member_create_failed", "error", err)
		return SubmitResult{}, &SaveError{Op: "create", Err: err}
	}
	slog.Info("member_event", "event", "member_created", "member_id", saved.ID)
	return SubmitResult{MemberID: saved.ID, Created: true, Member: saved}, nil
}

func (f *MemberForm) enroll(ctx context.Context, id int64) (int, error) {
	batch, err := f.deps.Staging.Snapshot(ctx)
	if err != nil {
		f.markEnrollPending(true)
		return 0, &EnrollmentError{MemberID: id, Err: err}
	}
	if _, err := f.deps.Faces.AddFaces(ctx, strconv.FormatInt(id, 10), batch.Images); err != nil {
		f.markEnrollPending(true)
		slog.Warn("enrollment_event", "event", "enrollment_failed", "member_id", id, "images", len(batch.Images), "error", err)
		return 0, &EnrollmentError{MemberID: id, Images: len(batch.Images), Err: err}
	}
	uploaded := len(batch.Images)
	slog.Info("enrollment_event", "event", "enrollment_uploaded", "member_id", id, "images", uploaded)

	// Only the uploaded refs are released; anything staged meanwhile stays.
	if err := f.deps.Staging.Release(ctx, batch.Refs); err != nil {
		// The upload is done; leftover blobs are swept with the session.
		slog.Warn("enrollment_event", "event", "staging_release_failed", "member_id", id, "error", err)
		f.markEnrollPending(false)
		f.deps.Staging.CloseCamera()
		return uploaded, nil
	}
	if late := f.deps.Staging.Len(); late > 0 {
		f.markEnrollPending(true)
		slog.Warn("enrollment_event", "event", "staged_during_upload", "member_id", id, "images", late)
		return uploaded, &EnrollmentError{MemberID: id, Images: late, Err: ErrStagedDuringUpload}
	}
	f.markEnrollPending(false)
	f.deps.Staging.CloseCamera()
	return uploaded, nil
}

func (f *MemberForm) markEnrollPending(v bool) {
	f.mu.Lock()
	f.enrollPending = v
	f.mu.Unlock()
}

// Cancel discards the draft and every staged image and releases the camera.
func (f *MemberForm) Cancel(ctx context.Context) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	f.resetLocked(nil)
	f.mu.Unlock()
	return f.deps.Staging.Discard(ctx)
}

// Draft returns a copy of the current draft.
func (f *MemberForm) Draft() member.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// MemberID returns the bound member id, zero in create mode.
func (f *MemberForm) MemberID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

// CreatedAt returns the server timestamp of the bound member.
func (f *MemberForm) CreatedAt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createdAt
}

// Mode returns ModeCreate or ModeEdit.
func (f *MemberForm) Mode() string {
	if f.MemberID() == 0 {
		return ModeCreate
	}
	return ModeEdit
}

// FieldErrors returns the per-field messages of the last rejected Submit.
func (f *MemberForm) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fieldErrors))
	for k, v := range f.fieldErrors {
		out[k] = v
	}
	return out
}

// Submitting reports whether a save or upload is outstanding.
func (f *MemberForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// EnrollmentPending reports whether the last upload for a saved member failed.
func (f *MemberForm) EnrollmentPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enrollPending
}

// Staging returns the form's capture staging set.
func (f *MemberForm) Staging() *capture.Staging {
	return f.deps.Staging
}

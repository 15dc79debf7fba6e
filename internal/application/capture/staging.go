package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gymdesk/internal/adapters/camera"
	"gymdesk/internal/adapters/storage/staging"
	"gymdesk/internal/domain/enrollment"

	"github.com/google/uuid"
)

// Errors reported by Staging.
var (
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrNoCameraSession   = errors.New("camera is not open")
	ErrCameraNotReady    = errors.New("camera is not ready yet")
	ErrIndexOutOfRange   = errors.New("no staged image at that position")
	ErrStagingFull       = fmt.Errorf("at most %d images can be staged", enrollment.MaxImages)
)

// Skip reasons reported by AddFiles.
const (
	SkipTooLarge     = "too large"
	SkipBadFormat    = "unsupported format"
	SkipEmpty        = "empty file"
	SkipLimitReached = "image limit reached"
)

// Entry is one staged image as shown in the form.
type Entry struct {
	Ref         string
	Filename    string
	ContentType string
	Size        int
}

// File is a candidate image from a file picker.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Skipped names a file that AddFiles did not stage.
type Skipped struct {
	Filename string
	Reason   string
}

// AddResult reports what AddFiles did. Non-image files are skipped
// silently and only counted.
type AddResult struct {
	Added      int
	NonImages  int
	Rejections []Skipped
}

// Staging holds the enrollment images of one form session until they are
// uploaded, together with the camera session used to capture them.
// INVARIANT: len(entries) equals the number of blobs owner holds in the store.
// INVARIANT: at most one camera session is held.
type Staging struct {
	mu      sync.Mutex
	owner   string
	store   staging.Store
	opener  camera.Opener
	session camera.Session
	entries []Entry
	shots   int

	newRef func() string
	now    func() time.Time
}

// New returns an empty staging set whose blobs are stored under owner.
// PRE: owner non-empty, store non-nil; opener may be nil when no camera is configured
// POST: Len() == 0, no camera session
func New(owner string, store staging.Store, opener camera.Opener) *Staging {
	return &Staging{
		owner:  owner,
		store:  store,
		opener: opener,
		newRef: func() string { return uuid.New().String() },
		now:    time.Now,
	}
}

// OpenCamera acquires the capture device.
// PRE: none
// POST: a session is held, or ErrCameraUnavailable is returned and staging is untouched
// INVARIANT: calling it with a live session keeps that session
func (s *Staging) OpenCamera(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		if _, err := s.session.Frame(); !errors.Is(err, camera.ErrUnavailable) {
			return nil
		}
		// The previous feed died; release it before asking for a new one.
		s.releaseLocked()
	}
	if s.opener == nil {
		return fmt.Errorf("%w: no camera configured", ErrCameraUnavailable)
	}
	sess, err := s.opener.Open(ctx)
	if err != nil {
		slog.Warn("capture_event", "event", "camera_open_failed", "owner", s.owner, "error", err)
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	s.session = sess
	return nil
}

// CameraActive reports whether a camera session is held.
func (s *Staging) CameraActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// CameraReady reports whether the held session has produced a frame.
func (s *Staging) CameraReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil && s.session.Ready()
}

// LiveFrame returns the camera's latest frame without staging it.
// POST: ErrNoCameraSession without a session, ErrCameraNotReady before the first frame
func (s *Staging) LiveFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoCameraSession
	}
	frame, err := s.session.Frame()
	switch {
	case errors.Is(err, camera.ErrNotReady):
		return nil, ErrCameraNotReady
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	return frame, nil
}

// CaptureFrame stages the camera's current frame as a JPEG.
// PRE: an open session that has produced at least one frame
// POST: one entry appended with a fresh ref; the session stays open
// POST: a feed that has ended is reported as ErrCameraUnavailable and nothing is staged
func (s *Staging) CaptureFrame(ctx context.Context) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return Entry{}, ErrNoCameraSession
	}
	frame, err := s.session.Frame()
	switch {
	case errors.Is(err, camera.ErrNotReady):
		return Entry{}, ErrCameraNotReady
	case err != nil:
		return Entry{}, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if len(s.entries) >= enrollment.MaxImages {
		return Entry{}, ErrStagingFull
	}

	s.shots++
	f := File{
		Filename:    fmt.Sprintf("captura-%d.jpg", s.shots),
		ContentType: "image/jpeg",
		Data:        frame,
	}
	return s.appendLocked(ctx, f)
}

// CloseCamera releases the capture device. It never fails and is safe
// to call with no session.
// POST: no session is held
func (s *Staging) CloseCamera() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Staging) releaseLocked() {
	if s.session == nil {
		return
	}
	if err := s.session.Close(); err != nil {
		slog.Warn("capture_event", "event", "camera_close_failed", "owner", s.owner, "error", err)
	}
	s.session = nil
}

// AddFiles stages the image files among files, in order, after any
// existing entries. Non-image files are skipped without error; image files
// the enrollment service would refuse are skipped and reported.
// POST: result.Added entries appended; an error means a store failure after result.Added entries
func (s *Staging) AddFiles(ctx context.Context, files []File) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res AddResult
	for _, f := range files {
		if !enrollment.IsImageType(f.ContentType) {
			res.NonImages++
			continue
		}
		f.Filename = enrollment.FilenameFor(f.Filename, f.ContentType)
		if reason := rejectReason(f); reason != "" {
			res.Rejections = append(res.Rejections, Skipped{Filename: f.Filename, Reason: reason})
			continue
		}
		if len(s.entries) >= enrollment.MaxImages {
			res.Rejections = append(res.Rejections, Skipped{Filename: f.Filename, Reason: SkipLimitReached})
			continue
		}
		if _, err := s.appendLocked(ctx, f); err != nil {
			return res, err
		}
		res.Added++
	}
	return res, nil
}

func rejectReason(f File) string {
	err := enrollment.Image{Filename: f.Filename, ContentType: f.ContentType, Data: f.Data}.Validate()
	switch {
	case err == nil:
		return ""
	case errors.Is(err, enrollment.ErrImageTooLarge):
		return SkipTooLarge
	case errors.Is(err, enrollment.ErrEmptyImage):
		return SkipEmpty
	default:
		return SkipBadFormat
	}
}

func (s *Staging) appendLocked(ctx context.Context, f File) (Entry, error) {
	e := Entry{
		Ref:         s.newRef(),
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        len(f.Data),
	}
	err := s.store.Save(ctx, staging.Blob{
		Ref:         e.Ref,
		Owner:       s.owner,
		Filename:    e.Filename,
		ContentType: e.ContentType,
		Data:        f.Data,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("stage image: %w", err)
	}
	s.entries = append(s.entries, e)
	return e, nil
}

// RemoveAt drops entry i and releases its ref.
// PRE: 0 <= i < Len()
// POST: Len() decreased by one, later entries shifted down, other refs untouched
func (s *Staging) RemoveAt(ctx context.Context, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.entries) {
		return ErrIndexOutOfRange
	}
	if err := s.store.Delete(ctx, s.entries[i].Ref); err != nil {
		return fmt.Errorf("release staged image: %w", err)
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

// Clear releases every ref and empties the set.
// POST: Len() == 0 unless the store failed, in which case nothing changed
func (s *Staging) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Staging) clearLocked(ctx context.Context) error {
	if _, err := s.store.DeleteByOwner(ctx, s.owner); err != nil {
		return fmt.Errorf("release staged images: %w", err)
	}
	s.entries = nil
	s.shots = 0
	return nil
}

// Discard is the teardown path: it closes the camera and clears the set.
// POST: no session held; Len() == 0 unless the store failed
func (s *Staging) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	return s.clearLocked(ctx)
}

// Len returns the number of staged images.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of the staged entries in order.
func (s *Staging) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Batch is the set of staged images taken for one upload, paired with the
// refs they were loaded from.
type Batch struct {
	Refs   []string
	Images []enrollment.Image
}

// Snapshot loads the staged images in order for upload.
// POST: len(b.Refs) == len(b.Images) == Len() at the time of the call
func (s *Staging) Snapshot(ctx context.Context) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := Batch{
		Refs:   make([]string, 0, len(s.entries)),
		Images: make([]enrollment.Image, 0, len(s.entries)),
	}
	for _, e := range s.entries {
		blob, err := s.store.Get(ctx, e.Ref)
		if err != nil {
			return Batch{}, fmt.Errorf("load staged image %s: %w", e.Filename, err)
		}
		b.Refs = append(b.Refs, e.Ref)
		b.Images = append(b.Images, enrollment.Image{Filename: blob.Filename, ContentType: blob.ContentType, Data: blob.Data})
	}
	return b, nil
}

// Images loads the staged images in order for upload.
// POST: len(result) == Len()
func (s *Staging) Images(ctx context.Context) ([]enrollment.Image, error) {
	b, err := s.Snapshot(ctx)
	return b.Images, err
}

// Release drops the entries behind refs once they have been uploaded.
// Entries staged after the refs were taken keep their place.
// POST: on error the entry that failed and everything not in refs are kept
func (s *Staging) Release(ctx context.Context, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(refs))
	for _, r := range refs {
		drop[r] = true
	}
	kept := make([]Entry, 0, len(s.entries))
	var firstErr error
	for _, e := range s.entries {
		if !drop[e.Ref] || firstErr != nil {
			kept = append(kept, e)
			continue
		}
		if err := s.store.Delete(ctx, e.Ref); err != nil {
			firstErr = fmt.Errorf("release staged image: %w", err)
			kept = append(kept, e)
		}
	}
	s.entries = kept
	if len(kept) == 0 {
		s.shots = 0
	}
	return firstErr
}

// Preview returns the bytes behind one of this set's refs.
// POST: refs held by other sets are reported as staging.ErrNotFound
func (s *Staging) Preview(ctx context.Context, ref string) (staging.Blob, error) {
	s.mu.Lock()
	held := false
	for _, e := range s.entries {
		if e.Ref == ref {
			held = true
			break
		}
	}
	s.mu.Unlock()
	if !held {
		return staging.Blob{}, staging.ErrNotFound
	}
	return s.store.Get(ctx, ref)
}

package camera

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"
)

// fakeFaceService serves the webcam endpoints of the face service.
type fakeFaceService struct {
	startStatus int
	frames      [][]byte
	endFeed     bool
	starts      atomic.Int32
	stops       atomic.Int32
}

func (f *fakeFaceService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webcam/start", func(w http.ResponseWriter, r *http.Request) {
		f.starts.Add(1)
		if f.startStatus != 0 {
			w.WriteHeader(f.startStatus)
			return
		}
		w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("POST /webcam/stop", func(w http.ResponseWriter, r *http.Request) {
		f.stops.Add(1)
		w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("GET /webcam/stream", func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		mw.SetBoundary("frame")
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.WriteHeader(http.StatusOK)
		for _, fr := range f.frames {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Type", "image/jpeg")
			p, _ := mw.CreatePart(h)
			p.Write(fr)
		}
		if f.endFeed {
			mw.Close()
			w.(http.Flusher).Flush()
			return
		}
		if len(f.frames) > 0 {
			// An open part terminates the last frame so the reader can hand it over.
			h := make(textproto.MIMEHeader)
			h.Set("Content-Type", "image/jpeg")
			mw.CreatePart(h)
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	return mux
}

func waitReady(t *testing.T, s Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestWebcam_CaptureAndClose verifies the newest frame is served and Close is idempotent.
func TestWebcam_CaptureAndClose(t *testing.T) {
	fake := &fakeFaceService{frames: [][]byte{[]byte("first"), []byte("second")}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, err := NewWebcam(srv.URL, nil).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitReady(t, s)

	// The first part may still be the latest when Ready flips.
	deadline := time.Now().Add(2 * time.Second)
	for {
		frame, err := s.Frame()
		if err != nil {
			t.Fatalf("Frame: %v", err)
		}
		if string(frame) == "second" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("latest frame = %q, want second", frame)
		}
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}
	if got := fake.stops.Load(); got != 1 {
		t.Errorf("stop calls = %d, want 1", got)
	}
	if s.Ready() {
		t.Error("closed session must not be ready")
	}
	if _, err := s.Frame(); !errors.Is(err, ErrClosed) {
		t.Errorf("Frame after Close = %v, want ErrClosed", err)
	}
}

// TestWebcam_FeedEndedAfterFrame verifies a feed that stops is reported as
// unavailable instead of repeating its last frame.
func TestWebcam_FeedEndedAfterFrame(t *testing.T) {
	fake := &fakeFaceService{frames: [][]byte{[]byte("frame-1")}, endFeed: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, err := NewWebcam(srv.URL, nil).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := s.Frame()
		if errors.Is(err, ErrUnavailable) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Frame after the feed ended = %v, want ErrUnavailable", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.Ready() {
		t.Error("ended feed still reports ready")
	}
}

// TestWebcam_NotReadyBeforeFirstFrame verifies a frame cannot be taken from a silent feed.
func TestWebcam_NotReadyBeforeFirstFrame(t *testing.T) {
	fake := &fakeFaceService{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, err := NewWebcam(srv.URL, nil).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Ready() {
		t.Error("session ready without frames")
	}
	if _, err := s.Frame(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Frame = %v, want ErrNotReady", err)
	}
}

// TestWebcam_StartFailure verifies a device that fails to start is reported as unavailable.
func TestWebcam_StartFailure(t *testing.T) {
	fake := &fakeFaceService{startStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, err := NewWebcam(srv.URL, nil).Open(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open error = %v, want ErrUnavailable", err)
	}
	if s != nil {
		t.Error("no session expected on failure")
	}
}

// TestStreamBoundary tests parsing of the feed content type.
func TestStreamBoundary(t *testing.T) {
	if b, err := streamBoundary("multipart/x-mixed-replace; boundary=frame"); err != nil || b != "frame" {
		t.Errorf("boundary = %q, %v", b, err)
	}
	if _, err := streamBoundary("image/jpeg"); err == nil {
		t.Error("expected error for non-multipart feed")
	}
}

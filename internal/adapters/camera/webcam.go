package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"gymdesk/internal/domain/enrollment"
)

// stopTimeout bounds the POST /webcam/stop issued on Close.
const stopTimeout = 5 * time.Second

// Webcam opens sessions on the face service's server-side camera:
// POST /webcam/start, then the MJPEG feed at GET /webcam/stream, and
// POST /webcam/stop on release.
type Webcam struct {
	baseURL string
	http    *http.Client
}

// Compile-time check that *Webcam satisfies Opener.
var _ Opener = (*Webcam)(nil)

// NewWebcam returns an opener for the face service at baseURL.
// PRE: httpClient has no overall timeout, since the stream stays open for the whole session
// POST: nil httpClient falls back to http.DefaultClient
func NewWebcam(baseURL string, httpClient *http.Client) *Webcam {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Webcam{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Open starts the device and begins reading frames in the background.
// PRE: none
// POST: returns a session whose Ready turns true on the first frame; on error the device has been stopped
func (w *Webcam) Open(ctx context.Context) (Session, error) {
	if err := w.post(ctx, "/webcam/start"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// The feed outlives the request that opened it.
	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, w.baseURL+"/webcam/stream", nil)
	if err != nil {
		cancel()
		w.stop()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := w.http.Do(req)
	if err != nil {
		cancel()
		w.stop()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		w.stop()
		return nil, fmt.Errorf("%w: stream returned status %d", ErrUnavailable, resp.StatusCode)
	}
	boundary, err := streamBoundary(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		cancel()
		w.stop()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &webcamSession{
		owner:  w,
		cancel: cancel,
		body:   resp.Body,
		done:   make(chan struct{}),
	}
	go s.read(multipart.NewReader(resp.Body, boundary))
	slog.Info("camera_event", "event", "camera_opened")
	return s, nil
}

func streamBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("bad stream content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return "", fmt.Errorf("stream is %q, not a multipart feed", mediaType)
	}
	return params["boundary"], nil
}

func (w *Webcam) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (w *Webcam) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return w.post(ctx, "/webcam/stop")
}

type webcamSession struct {
	owner  *Webcam
	cancel context.CancelFunc
	body   io.ReadCloser
	done   chan struct{}

	mu      sync.Mutex
	latest  []byte
	closed  bool
	readErr error

	closeOnce sync.Once
	closeErr  error
}

// read keeps the newest frame until the feed ends or the session closes.
func (s *webcamSession) read(mr *multipart.Reader) {
	defer close(s.done)
	for {
		part, err := mr.NextPart()
		if err != nil {
			s.finish(err)
			return
		}
		frame, err := io.ReadAll(io.LimitReader(part, enrollment.MaxImageSize+1))
		part.Close()
		if err != nil {
			s.finish(err)
			return
		}
		if len(frame) == 0 || len(frame) > enrollment.MaxImageSize {
			continue
		}
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
	}
}

func (s *webcamSession) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("camera feed ended")
	}
	s.readErr = err
	slog.Warn("camera_event", "event", "feed_ended", "error", err)
}

// Ready is false again once the feed has ended.
func (s *webcamSession) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.readErr == nil && s.latest != nil
}

// Frame never hands out the last frame of a dead feed.
func (s *webcamSession) Frame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.readErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.readErr)
	}
	if s.latest == nil {
		return nil, ErrNotReady
	}
	out := make([]byte, len(s.latest))
	copy(out, s.latest)
	return out, nil
}

// Close stops the feed and the device.
// POST: the reader goroutine has exited; repeated calls return the first result
func (s *webcamSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.latest = nil
		s.mu.Unlock()

		s.cancel()
		s.body.Close()
		<-s.done

		if err := s.owner.stop(); err != nil {
			slog.Warn("camera_event", "event", "stop_failed", "error", err)
			s.closeErr = err
		}
		slog.Info("camera_event", "event", "camera_closed")
	})
	return s.closeErr
}

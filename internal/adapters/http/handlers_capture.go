package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"gymdesk/internal/adapters/storage/staging"
	"gymdesk/internal/application/capture"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/enrollment"
)

// LiveFrameInterval is the pause between frames of the live preview.
var LiveFrameInterval = 100 * time.Millisecond

// captureConsole resolves the console for a capture action and applies the
// draft fields posted along with it.
// POST: false means a response was already written
func captureConsole(w http.ResponseWriter, r *http.Request) (*Console, bool) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return nil, false
	}
	if c.Shell.View() != orchestrators.ViewForm {
		redirect(w, r, "/")
		return nil, false
	}
	// Staging is frozen while its images are being uploaded.
	if c.Form.Submitting() {
		c.setFlash(captureFlash{Error: orchestrators.UserMessage(orchestrators.ErrSubmitInFlight)})
		redirect(w, r, "/members/form")
		return nil, false
	}
	if err := parseConsoleForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return nil, false
	}
	if err := applyDraft(c, r); err != nil {
		c.setFlash(captureFlash{Error: orchestrators.UserMessage(err)})
	}
	return c, true
}

// skipReasonLabel words an AddFiles skip reason for the operator.
func skipReasonLabel(reason string) string {
	switch reason {
	case capture.SkipTooLarge:
		return fmt.Sprintf("supera %d MB", enrollment.MaxImageSize>>20)
	case capture.SkipBadFormat:
		return "formato no admitido, use JPG o PNG"
	case capture.SkipEmpty:
		return "archivo vacío"
	case capture.SkipLimitReached:
		return fmt.Sprintf("ya hay %d imágenes", enrollment.MaxImages)
	}
	return reason
}

func handleCameraOpen(w http.ResponseWriter, r *http.Request) {
	c, ok := captureConsole(w, r)
	if !ok {
		return
	}
	if err := c.Staging.OpenCamera(r.Context()); err != nil {
		c.setFlash(captureFlash{Error: orchestrators.UserMessage(err)})
	}
	redirect(w, r, "/members/form")
}

func handleCameraFrame(w http.ResponseWriter, r *http.Request) {
	c, ok := captureConsole(w, r)
	if !ok {
		return
	}
	entry, err := c.Staging.CaptureFrame(r.Context())
	if err != nil {
		c.setFlash(captureFlash{Error: orchestrators.UserMessage(err)})
	} else {
		slog.Info("capture_event", "event", "frame_captured", "owner", c.Owner, "ref", entry.Ref, "bytes", entry.Size)
		c.setFlash(captureFlash{Added: 1})
	}
	redirect(w, r, "/members/form")
}

func handleCameraClose(w http.ResponseWriter, r *http.Request) {
	c, ok := captureConsole(w, r)
	if !ok {
		return
	}
	c.Staging.CloseCamera()
	redirect(w, r, "/members/form")
}

// handleCameraLive re-serves the camera feed as an MJPEG stream for the
// preview element. The stream ends when the camera is closed.
func handleCameraLive(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if !c.Staging.CameraActive() {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, errors.New("streaming unsupported"))
		return
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary("frame"); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(LiveFrameInterval)
	defer ticker.Stop()
	for {
		frame, err := c.Staging.LiveFrame()
		switch {
		case errors.Is(err, capture.ErrCameraNotReady):
		case err != nil:
			return
		default:
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(len(frame))},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func handleAddFiles(w http.ResponseWriter, r *http.Request) {
	c, ok := captureConsole(w, r)
	if !ok {
		return
	}
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["images"]
	}
	files := make([]capture.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			internalError(w, err)
			return
		}
		files = append(files, f)
	}

	res, err := c.Staging.AddFiles(r.Context(), files)
	flash := captureFlash{Added: res.Added, Skipped: res.Rejections}
	if err != nil {
		slog.Error("capture_event", "event", "stage_failed", "owner", c.Owner, "error", err)
		flash.Error = "No se pudieron guardar las imágenes: " + err.Error()
	}
	if res.NonImages > 0 {
		slog.Info("capture_event", "event", "non_images_skipped", "owner", c.Owner, "count", res.NonImages)
	}
	c.setFlash(flash)
	redirect(w, r, "/members/form")
}

// readUpload loads one picked file. Browsers that send no usable content
// type get one sniffed from the bytes.
func readUpload(fh *multipart.FileHeader) (capture.File, error) {
	src, err := fh.Open()
	if err != nil {
		return capture.File{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, enrollment.MaxImageSize+1))
	if err != nil {
		return capture.File{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}
	return capture.File{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

func handleRemoveStaged(w http.ResponseWriter, r *http.Request) {
	c, ok := captureConsole(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		index = -1
	}
	if err := c.Staging.RemoveAt(r.Context(), index); err != nil {
		c.setFlash(captureFlash{Error: orchestrators.UserMessage(err)})
	}
	redirect(w, r, "/members/form")
}

func handlePreview(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	blob, err := c.Staging.Preview(r.Context(), r.PathValue("ref"))
	if errors.Is(err, staging.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(blob.Data)
}

package web

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"gymdesk/internal/adapters/camera"
	"gymdesk/internal/adapters/handoff"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/remote/faceapi"
	"gymdesk/internal/adapters/remote/memberapi"
	"gymdesk/internal/adapters/storage/staging"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/theme"
)

// Deps holds everything the console needs from the outside.
type Deps struct {
	Members  memberapi.Store
	Faces    faceapi.Store
	Camera   camera.Opener // nil when no capture device is configured
	Staging  staging.Store
	Handoff  *handoff.Issuer
	Welcome  orchestrators.SendWelcomeDeps
	Theme    theme.Theme
	Defaults orchestrators.FormDefaults
	Operator *middleware.Operator

	ListLimit      int
	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string
	Collector      *perf.Collector
	Version        string
}

// deps is set by NewMux.
var deps Deps

// sessions and consoles are set by NewMux.
var sessions *middleware.SessionStore
var consoles *ConsoleStore

// RateLimitPerMinute controls login attempts per client IP. Tests can raise it.
var RateLimitPerMinute = 10

// timeNow is a variable for testability.
var timeNow = time.Now

// NewMux wires the console's handlers and middleware.
// PRE: d.Members, d.Faces, d.Staging and d.Handoff are non-nil; d.Theme is valid
// POST: returns the full handler chain
func NewMux(d Deps) http.Handler {
	if d.Operator == nil {
		d.Operator = middleware.NewOperator("")
	}
	deps = d
	sessions = middleware.NewSessionStore(middleware.SessionIdleTimeout)
	consoles = NewConsoleStore(newConsole)

	mux := http.NewServeMux()
	registerRoutes(mux)

	// Timing -> SecurityHeaders -> Sessions -> MaxBody -> PlaintextHTTP -> CSRF -> mux
	return middleware.Chain(middleware.Routed(mux),
		middleware.CSRF(d.CSRFKey, d.SecureCookies, d.TrustedOrigins),
		middleware.PlaintextHTTP,
		middleware.MaxBody(maxFormBytes),
		middleware.Sessions(sessions, d.SecureCookies),
		middleware.SecurityHeaders,
		middleware.Timing(d.Collector),
	)
}

func registerRoutes(mux *http.ServeMux) {
	limiter := middleware.NewRateLimiter(RateLimitPerMinute, time.Minute)
	operator := middleware.RequireOperator(deps.Operator)
	guard := func(h http.HandlerFunc) http.Handler { return operator(h) }

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /healthz", handleHealthz)

	mux.HandleFunc("GET /login", handleLoginForm)
	mux.Handle("POST /login", middleware.RateLimit(limiter)(http.HandlerFunc(handleLogin)))
	mux.HandleFunc("POST /logout", handleLogout)

	mux.Handle("GET /{$}", guard(handleMemberList))
	mux.Handle("GET /members/new", guard(handleNewMember))
	mux.Handle("GET /members/{id}/edit", guard(handleEditMember))
	mux.Handle("GET /members/form", guard(handleMemberForm))
	mux.Handle("POST /members/form", guard(handleSubmitMemberForm))
	mux.Handle("POST /members/form/cancel", guard(handleCancelMemberForm))
	mux.Handle("POST /members/form/retry-enrollment", guard(handleRetryEnrollment))
	mux.Handle("GET /members/{id}/delete", guard(handleConfirmDelete))
	mux.Handle("POST /members/{id}/delete", guard(handleDeleteMember))
	mux.Handle("GET /members/{id}/enroll", guard(handleEnrollHandoff))

	mux.Handle("POST /capture/camera/open", guard(handleCameraOpen))
	mux.Handle("POST /capture/camera/frame", guard(handleCameraFrame))
	mux.Handle("POST /capture/camera/close", guard(handleCameraClose))
	mux.Handle("GET /capture/camera/live", guard(handleCameraLive))
	mux.Handle("POST /capture/files", guard(handleAddFiles))
	mux.Handle("POST /capture/remove/{index}", guard(handleRemoveStaged))
	mux.Handle("GET /capture/preview/{ref}", guard(handlePreview))

	mux.Handle("POST /notifications/dismiss", guard(handleDismissNotification))

	mux.Handle("GET /api/members", guard(handleAPIMembers))
	mux.Handle("GET /api/members/{id}/membership", guard(handleAPIMembership))
	mux.Handle("GET /admin/perf", guard(handleAdminPerf))
}

// StartSessionSweeper tears down idle console sessions every interval
// until ctx is cancelled. Expired sessions release their camera and
// staged images.
func StartSessionSweeper(ctx context.Context, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				expired := sessions.Sweep()
				if len(expired) == 0 {
					continue
				}
				consoles.Release(ctx, expired...)
				slog.Info("session_event", "event", "sessions_expired", "count", len(expired))
			}
		}
	}()
}

// Shutdown releases every console, closing cameras and dropping staged images.
func Shutdown(ctx context.Context) {
	if consoles != nil {
		consoles.ReleaseAll(ctx)
	}
}

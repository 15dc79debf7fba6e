package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/camera"
	"gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/handoff"
	web "gymdesk/internal/adapters/http"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/remote"
	"gymdesk/internal/adapters/remote/faceapi"
	"gymdesk/internal/adapters/remote/memberapi"
	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/adapters/storage/staging"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/config"
	"gymdesk/internal/domain/theme"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const (
	sessionSweepEvery = 10 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel))

	// Staged image bytes live here between requests; nothing else is stored locally.
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(4)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	staged := staging.NewSQLiteStore(storage.NewTimedDB(db, collector))

	// Consoles do not survive a restart, so neither do their staged images.
	if n, err := staged.PurgeBefore(context.Background(), time.Now()); err != nil {
		log.Fatalf("failed to purge staged images: %v", err)
	} else if n > 0 {
		slog.Info("capture_event", "event", "stale_staging_purged", "count", n)
	}

	members := memberapi.NewClient(cfg.MemberAPIURL, remote.NewHTTPClient(remote.ClientOptions{
		Service:     "member_api",
		Timeout:     cfg.HTTPTimeout,
		InsecureTLS: cfg.InsecureTLS,
		Collector:   collector,
	}))
	faces := faceapi.NewClient(cfg.FaceAPIURL, remote.NewHTTPClient(remote.ClientOptions{
		Service:     "face_api",
		Timeout:     cfg.HTTPTimeout,
		InsecureTLS: cfg.InsecureTLS,
		Collector:   collector,
	}))
	// The MJPEG feed stays open for the whole camera session.
	webcam := camera.NewWebcam(cfg.FaceAPIURL, remote.NewHTTPClient(remote.ClientOptions{
		Service:     "webcam",
		InsecureTLS: cfg.InsecureTLS,
		Collector:   collector,
	}))

	issuer, err := handoff.NewIssuer(cfg.HandoffKey, cfg.FacePageURL, handoff.DefaultTTL)
	if err != nil {
		log.Fatalf("failed to configure enrollment hand-off: %v", err)
	}

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		log.Fatalf("failed to configure email: %v", err)
	}
	if cfg.IsProduction() && cfg.Email.Provider == email.ProviderNoop {
		slog.Warn("email_disabled", "reason", "GYMDESK_EMAIL_PROVIDER is noop in production")
	}

	operator := middleware.NewOperator(cfg.OperatorPasswordHash)
	if !operator.Enabled() {
		slog.Warn("operator_login_disabled", "reason", "GYMDESK_OPERATOR_PASSWORD_HASH is not set")
	}

	welcome := orchestrators.SendWelcomeDeps{Sender: sender, Club: cfg.Club, ReplyTo: cfg.Email.From}
	defaults := orchestrators.FormDefaults{Department: cfg.DefaultDepartment, DocumentType: cfg.DefaultDocumentType}

	handler := web.NewMux(web.Deps{
		Members:       members,
		Faces:         faces,
		Camera:        webcam,
		Staging:       staged,
		Handoff:       issuer,
		Welcome:       welcome,
		Theme:         theme.Default(),
		Defaults:      defaults,
		Operator:      operator,
		ListLimit:     cfg.ListLimit,
		CSRFKey:       []byte(cfg.CSRFKey),
		SecureCookies: cfg.IsProduction(),
		Collector:     collector,
		Version:       version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	web.StartSessionSweeper(ctx, sessionSweepEvery)

	// WriteTimeout stays zero: the live camera preview is a long-lived response.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		web.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server_shutdown_failed", "error", err)
		}
	}()

	slog.Info("server_starting",
		"version", version,
		"addr", cfg.Addr,
		"env", cfg.Env,
		"schema", storage.LatestSchemaVersion(),
		"member_api", cfg.MemberAPIURL,
		"face_api", cfg.FaceAPIURL,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
	slog.Info("server_stopped")
}

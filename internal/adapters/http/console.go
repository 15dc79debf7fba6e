package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/application/capture"
	"gymdesk/internal/application/orchestrators"
)

// Console is the per-browser state: one shell, one form and one staging set.
// Shell, Form and Staging synchronise themselves; mu only guards flash.
type Console struct {
	Owner   string // staging owner, not the session cookie
	Shell   *orchestrators.Shell
	Form    *orchestrators.MemberForm
	Staging *capture.Staging

	mu    sync.Mutex
	flash captureFlash
}

// captureFlash holds inline capture feedback shown once on the next form render.
type captureFlash struct {
	Error   string
	Added   int
	Skipped []capture.Skipped
}

func newConsole() *Console {
	owner := uuid.NewString()
	staged := capture.New(owner, deps.Staging, deps.Camera)
	form := orchestrators.NewMemberForm(orchestrators.MemberFormDeps{
		Members:  deps.Members,
		Faces:    deps.Faces,
		Staging:  staged,
		Defaults: deps.Defaults,
	})
	shell := orchestrators.NewShell(orchestrators.ShellDeps{
		Members:   deps.Members,
		Form:      form,
		ListLimit: deps.ListLimit,
		OnCreated: orchestrators.WelcomeHook(deps.Welcome),
		Now:       timeNow,
	})
	return &Console{Owner: owner, Shell: shell, Form: form, Staging: staged}
}

// setFlash replaces the pending capture feedback.
func (c *Console) setFlash(f captureFlash) {
	c.mu.Lock()
	c.flash = f
	c.mu.Unlock()
}

// takeFlash returns the pending capture feedback and clears it.
func (c *Console) takeFlash() captureFlash {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.flash
	c.flash = captureFlash{}
	return f
}

// ConsoleStore maps session ids to consoles, creating them on first use.
type ConsoleStore struct {
	mu       sync.Mutex
	consoles map[string]*Console
	build    func() *Console
}

// NewConsoleStore returns an empty store that creates consoles with build.
func NewConsoleStore(build func() *Console) *ConsoleStore {
	return &ConsoleStore{consoles: make(map[string]*Console), build: build}
}

// Get returns the console of a session.
// POST: the same session id always yields the same console until Release
func (cs *ConsoleStore) Get(sessionID string) *Console {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, ok := cs.consoles[sessionID]
	if !ok {
		c = cs.build()
		cs.consoles[sessionID] = c
		slog.Info("session_event", "event", "console_created", "owner", c.Owner)
	}
	return c
}

// Release tears down the consoles of the given sessions.
// POST: their cameras are closed and their staged images deleted
func (cs *ConsoleStore) Release(ctx context.Context, sessionIDs ...string) {
	cs.mu.Lock()
	var released []*Console
	for _, id := range sessionIDs {
		if c, ok := cs.consoles[id]; ok {
			released = append(released, c)
			delete(cs.consoles, id)
		}
	}
	cs.mu.Unlock()

	for _, c := range released {
		if err := c.Shell.Close(ctx); err != nil {
			slog.Warn("session_event", "event", "console_release_failed", "owner", c.Owner, "error", err)
		}
	}
}

// ReleaseAll tears down every console.
func (cs *ConsoleStore) ReleaseAll(ctx context.Context) {
	cs.mu.Lock()
	ids := make([]string, 0, len(cs.consoles))
	for id := range cs.consoles {
		ids = append(ids, id)
	}
	cs.mu.Unlock()
	cs.Release(ctx, ids...)
}

// Len returns the number of live consoles.
func (cs *ConsoleStore) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.consoles)
}

// consoleFor returns the console of the request's session.
func consoleFor(r *http.Request) (*Console, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return consoles.Get(sess.ID), true
}

package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SessionIdleTimeout is how long a console session survives without requests.
const SessionIdleTimeout = 24 * time.Hour

// ErrBadPassphrase is returned by Login for a wrong operator passphrase.
var ErrBadPassphrase = errors.New("incorrect passphrase")

type contextKey string

const sessionContextKey contextKey = "console_session"

// Session is one browser's console session.
type Session struct {
	ID        string
	Operator  bool // passed the operator passphrase
	CreatedAt time.Time
	LastSeen  time.Time
}

// SessionStore is an in-memory console session store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	idle     time.Duration
	now      func() time.Time
}

// NewSessionStore creates an empty store whose sessions expire after idle.
func NewSessionStore(idle time.Duration) *SessionStore {
	if idle <= 0 {
		idle = SessionIdleTimeout
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		idle:     idle,
		now:      time.Now,
	}
}

// Create starts a new anonymous session.
// POST: the returned session is stored and not yet an operator
func (ss *SessionStore) Create() (Session, error) {
	token, err := generateToken()
	if err != nil {
		return Session{}, err
	}
	now := ss.now()
	s := Session{ID: token, CreatedAt: now, LastSeen: now}
	ss.mu.Lock()
	ss.sessions[token] = s
	ss.mu.Unlock()
	return s, nil
}

// Get returns a live session and refreshes its idle timer.
// PRE: token is non-empty
// POST: expired sessions are reported as missing
func (ss *SessionStore) Get(token string) (Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[token]
	if !ok {
		return Session{}, false
	}
	now := ss.now()
	if now.Sub(s.LastSeen) > ss.idle {
		return Session{}, false
	}
	s.LastSeen = now
	ss.sessions[token] = s
	return s, true
}

// MarkOperator flags the session as logged in.
func (ss *SessionStore) MarkOperator(token string, operator bool) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[token]
	if !ok {
		return false
	}
	s.Operator = operator
	ss.sessions[token] = s
	return true
}

// Delete removes a session.
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// Sweep removes idle sessions and returns their ids so owners can release
// what the sessions held.
// POST: no remaining session is idle longer than the timeout
func (ss *SessionStore) Sweep() []string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	now := ss.now()
	var expired []string
	for id, s := range ss.sessions {
		if now.Sub(s.LastSeen) > ss.idle {
			delete(ss.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}

// Len returns the number of stored sessions.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

const sessionCookieName = "gymdesk_session"

// Sessions returns middleware that guarantees every request carries a
// console session, issuing a cookie for new browsers.
func Sessions(store *SessionStore, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess Session
			ok := false
			if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
				sess, ok = store.Get(c.Value)
			}
			if !ok {
				var err error
				sess, err = store.Create()
				if err != nil {
					slog.Error("session_event", "event", "session_create_failed", "error", err)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				SetSessionCookie(w, sess.ID, secure)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// Operator checks the console passphrase. An empty hash disables the check.
type Operator struct {
	hash []byte
}

// NewOperator returns a checker for a bcrypt hash.
func NewOperator(hash string) *Operator {
	return &Operator{hash: []byte(hash)}
}

// Enabled reports whether a passphrase is configured.
func (o *Operator) Enabled() bool {
	return len(o.hash) > 0
}

// Check compares a passphrase against the configured hash.
// POST: nil when it matches or no passphrase is configured
func (o *Operator) Check(passphrase string) error {
	if !o.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(o.hash, []byte(passphrase)); err != nil {
		return ErrBadPassphrase
	}
	return nil
}

// RequireOperator redirects sessions that have not logged in to /login.
func RequireOperator(op *Operator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if op.Enabled() {
				sess, ok := GetSessionFromContext(r.Context())
				if !ok || !sess.Operator {
					http.Redirect(w, r, "/login", http.StatusSeeOther)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(Session)
	return s, ok
}

// ContextWithSession returns a context carrying sess.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(SessionIdleTimeout.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"gymdesk/internal/adapters/http/middleware"
)

type loginPage struct {
	Error string
}

func handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if !deps.Operator.Enabled() {
		redirect(w, r, "/")
		return
	}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok && sess.Operator {
		redirect(w, r, "/")
		return
	}
	renderTemplate(w, r, "login.html", loginPage{})
}

// handleLogin checks the operator passphrase. A successful login starts a
// fresh session so a pre-login cookie is never promoted.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	old, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := deps.Operator.Check(r.PostForm.Get("passphrase")); err != nil {
		slog.Warn("auth_event", "event", "login_failed", "ip", r.RemoteAddr)
		renderStatus(w, r, http.StatusUnauthorized, "login.html", loginPage{Error: "Clave incorrecta"})
		return
	}

	sess, err := sessions.Create()
	if err != nil {
		internalError(w, err)
		return
	}
	sessions.MarkOperator(sess.ID, true)
	sessions.Delete(old.ID)
	consoles.Release(r.Context(), old.ID)
	middleware.SetSessionCookie(w, sess.ID, deps.SecureCookies)
	slog.Info("auth_event", "event", "login_succeeded", "ip", r.RemoteAddr)
	redirect(w, r, "/")
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		consoles.Release(r.Context(), sess.ID)
		sessions.Delete(sess.ID)
	}
	middleware.ClearSessionCookie(w, deps.SecureCookies)
	slog.Info("auth_event", "event", "logout")
	if deps.Operator.Enabled() {
		redirect(w, r, "/login")
		return
	}
	redirect(w, r, "/")
}

func handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	c, ok := consoleFor(r)
	if !ok {
		internalError(w, errors.New("no console session"))
		return
	}
	c.Shell.Dismiss()
	if err := r.ParseForm(); err != nil {
		redirect(w, r, "/")
		return
	}
	redirect(w, r, localPath(r.PostForm.Get("next"), "/"))
}

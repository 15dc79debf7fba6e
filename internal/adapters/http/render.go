package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/csrf"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/notice"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("render_event", "event", "json_encode_failed", "error", err)
	}
}

// redirect sends the browser on after a POST or a state change.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// themeVars renders the injected theme as CSS custom properties.
func themeVars() template.CSS {
	vars := deps.Theme.CSSVariables()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString("--")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(vars[k])
		b.WriteString("; ")
	}
	return template.CSS(b.String())
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderStatus(w, r, http.StatusOK, templateName, data)
}

func renderStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	sess, _ := middleware.GetSessionFromContext(r.Context())

	var note notice.Notification
	hasNote := false
	loading := false
	if c, ok := consoleFor(r); ok {
		note, hasNote = c.Shell.Notification()
		loading = c.Shell.Loading()
	}

	funcMap := template.FuncMap{
		"csrfField":       func() template.HTML { return csrf.TemplateField(r) },
		"csrfToken":       func() string { return csrf.Token(r) },
		"themeVars":       themeVars,
		"isOperator":      func() bool { return sess.Operator },
		"operatorEnabled": func() bool { return deps.Operator.Enabled() },
		"notification":    func() notice.Notification { return note },
		"hasNotification": func() bool { return hasNote },
		"noticeTTL":       func() int64 { return note.ExpiresAt.Sub(timeNow()).Milliseconds() },
		"loading":         func() bool { return loading },
		"currentURL":      func() string { return r.URL.RequestURI() },
		"add":             func(a, b int) int { return a + b },
		"sub":             func(a, b int) int { return a - b },
		"optionLabel":     member.Label,
		"kb":              func(n int) int { return (n + 1023) / 1024 },
		"percent":         func(f float64) float64 { return f * 100 },
		"skipReason":      skipReasonLabel,
		"dict":            dict,
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, fmt.Errorf("render %s: %w", templateName, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// dict builds a map from alternating keys and values for sub-templates.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict needs key/value pairs")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// localPath returns next when it is a same-site path, otherwise fallback.
func localPath(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

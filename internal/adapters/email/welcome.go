package email

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/welcome.md
var templateFS embed.FS

var welcomeTemplate = template.Must(template.ParseFS(templateFS, "templates/welcome.md"))

// mdRenderer converts the markdown body to HTML. Raw HTML in the input is
// escaped because WithUnsafe is not set, so member fields cannot inject markup.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// WelcomeData fills the welcome email.
type WelcomeData struct {
	Club       string
	FirstName  string
	Code       string
	Department string
	StartDate  string
	EndDate    string
}

// RenderWelcome returns the subject, HTML and plain-text bodies of the welcome email.
// PRE: d.FirstName is non-empty
// POST: text is the rendered markdown; html is its goldmark rendering
func RenderWelcome(d WelcomeData) (subject, html, text string, err error) {
	var md bytes.Buffer
	if err := welcomeTemplate.Execute(&md, d); err != nil {
		return "", "", "", fmt.Errorf("render welcome template: %w", err)
	}
	var out bytes.Buffer
	if err := mdRenderer.Convert(md.Bytes(), &out); err != nil {
		return "", "", "", fmt.Errorf("render welcome html: %w", err)
	}
	return "Bienvenido a " + d.Club, out.String(), md.String(), nil
}

package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/httpx"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// page is the data every template renders from.
type page struct {
	Title string
	User  *authsdk.UserResponse
	Flash string
	Error string

	// login and register forms
	Email    string
	Username string
	Fields   map[string]string

	Events []authsdk.EventResponse
	Form   eventForm
}

type eventForm struct {
	Title       string
	Description string
	StartTime   string
	EndTime     string
	Status      string
}

func render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, p); err != nil {
		slogx.FromContext(r.Context()).Error("template render failed", "template", name, "err", err)
	}
}

// Package view renders the two screens. Rendering is a pure function of the
// data passed in: nothing is read from the session here.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/patric-chuzhbe/signup/internal/models"
	"github.com/patric-chuzhbe/signup/internal/notify"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	registrationPage = "registration.html"
	profilePage      = "profile.html"
)

// Page carries what the layout needs on every screen.
type Page struct {
	Toasts []notify.Toast

	// RedirectTo, when set, sends the browser there after RedirectAfter.
	RedirectTo    string
	RedirectAfter time.Duration
}

func (p Page) RedirectAfterMillis() int64 {
	return p.RedirectAfter.Milliseconds()
}

type RegistrationView struct {
	Page
	Values models.Registration
	Errors models.FieldErrors
}

type ProfileView struct {
	Page
	User   models.UserProfile
	Mode   models.ProfileMode
	Draft  models.ProfileDraft
	Errors models.FieldErrors
}

func (v ProfileView) Editing() bool {
	return v.Mode == models.ModeEdit
}

type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	r := &Renderer{pages: map[string]*template.Template{}}
	for _, page := range []string{registrationPage, profilePage} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("in internal/view/view.go/New(): error while parsing %s: %w", page, err)
		}
		r.pages[page] = t
	}

	return r, nil
}

func (r *Renderer) RenderRegistration(w io.Writer, data RegistrationView) error {
	return r.render(w, registrationPage, data)
}

func (r *Renderer) RenderProfile(w io.Writer, data ProfileView) error {
	return r.render(w, profilePage, data)
}

// render executes into a buffer first so a failing template never leaves half a page behind.
func (r *Renderer) render(w io.Writer, page string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("in internal/view/view.go/render(): error while executing %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

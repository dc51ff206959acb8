package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/signup/internal/models"
	"github.com/patric-chuzhbe/signup/internal/notify"
)

func TestRenderRegistration(t *testing.T) {
	renderer, err := New()
	require.NoError(t, err)

	n := notify.New(3 * time.Second)

	var buf bytes.Buffer
	err = renderer.RenderRegistration(&buf, RegistrationView{
		Page: Page{
			Toasts: []notify.Toast{n.Error("User already exists"), n.Error("User already exists")},
		},
		Values: models.Registration{FirstName: `<b>Jo</b>`, AcceptedTerms: true},
		Errors: models.FieldErrors{"firstName": "First Name must be at least 3 characters"},
	})
	require.NoError(t, err)

	page := buf.String()
	assert.Contains(t, page, "Registration Form")
	assert.Contains(t, page, "First Name must be at least 3 characters")
	assert.Contains(t, page, `value="&lt;b&gt;Jo&lt;/b&gt;"`, "input values are escaped")
	assert.Contains(t, page, "checked")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`class="toast toast-error"`)), "notices are not deduplicated")
	assert.Contains(t, page, `data-dismiss-after="3000"`)
	assert.NotContains(t, page, "data-redirect-to")
}

func TestRenderRegistrationWithRedirect(t *testing.T) {
	renderer, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = renderer.RenderRegistration(&buf, RegistrationView{
		Page: Page{
			Toasts:        []notify.Toast{notify.New(time.Second).Success("User registered successfully")},
			RedirectTo:    "/home",
			RedirectAfter: 2 * time.Second,
		},
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `data-redirect-to="/home"`)
	assert.Contains(t, buf.String(), `data-redirect-after="2000"`)
	assert.Contains(t, buf.String(), "toast-success")
}

func TestRenderProfile(t *testing.T) {
	renderer, err := New()
	require.NoError(t, err)

	user := models.UserProfile{ID: "u1", FirstName: "John", LastName: "Doe", Phone: "5551234567"}

	t.Run("view mode", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderer.RenderProfile(&buf, ProfileView{User: user, Mode: models.ModeView}))

		page := buf.String()
		assert.Contains(t, page, "Welcome John Doe")
		assert.Contains(t, page, `<span id="phone">5551234567</span>`)
		assert.NotContains(t, page, `name="phone"`)
	})

	t.Run("edit mode", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderer.RenderProfile(&buf, ProfileView{
			User:   user,
			Mode:   models.ModeEdit,
			Draft:  models.ProfileDraft{FirstName: "Jo", LastName: "Doe", Phone: "5551234567"},
			Errors: models.FieldErrors{"firstName": "First Name must be at least 3 characters"},
		}))

		page := buf.String()
		assert.Contains(t, page, `name="firstName" value="Jo"`)
		assert.Contains(t, page, "First Name must be at least 3 characters")
		assert.Contains(t, page, "Welcome John Doe")
	})
}

// Package session holds the per-browser application state: the current user
// record shared by the registration and profile screens, the profile editor
// state and the queue of pending notices.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/signup/internal/models"
	"github.com/patric-chuzhbe/signup/internal/notify"
)

// ErrNotFound is returned by a Store when no state is kept for the session id.
var ErrNotFound = errors.New("session not found")

// Store keeps session states between requests. Load returns a private copy;
// changes are visible to other requests only after Save.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, id string) error
}

type ProfileState struct {
	Mode   models.ProfileMode  `json:"mode"`
	Draft  models.ProfileDraft `json:"draft"`
	Errors models.FieldErrors  `json:"errors,omitempty"`
}

// State is everything one browser session knows.
type State struct {
	ID string `json:"id"`

	// User is nil until a registration succeeds.
	User *models.UserProfile `json:"user,omitempty"`

	RegistrationDraft  models.Registration `json:"registration_draft"`
	RegistrationErrors models.FieldErrors  `json:"registration_errors,omitempty"`

	Profile ProfileState   `json:"profile"`
	Toasts  []notify.Toast `json:"toasts,omitempty"`
}

// New returns an empty state with a fresh random id.
func New() *State {
	return NewWithID(uuid.New().String())
}

func NewWithID(id string) *State {
	return &State{
		ID:      id,
		Profile: ProfileState{Mode: models.ModeView},
	}
}

// LoadOrNew loads the state of the session or starts an empty one under the same id.
func LoadOrNew(ctx context.Context, store Store, id string) (*State, error) {
	state, err := store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return NewWithID(id), nil
	}
	if err != nil {
		return nil, err
	}

	return state, nil
}

// Registered reports whether the session holds a user created by the service.
func (s *State) Registered() bool {
	return s.User != nil && s.User.ID != ""
}

// Register replaces the shared user with a freshly created record and resets
// both screens: the registration form is cleared and the profile starts read-only.
func (s *State) Register(user models.UserProfile) {
	s.User = &user
	s.RegistrationDraft = models.Registration{}
	s.RegistrationErrors = nil
	s.Profile = ProfileState{Mode: models.ModeView, Draft: models.DraftOf(user)}
}

// ApplyUpdate overwrites the shared user with a record returned by the service.
// The identifier is never changed by an update.
func (s *State) ApplyUpdate(user models.UserProfile) {
	if s.User == nil {
		return
	}
	user.ID = s.User.ID
	*s.User = user
}

// SetEditable writes the editable fields straight into the shared user.
func (s *State) SetEditable(draft models.ProfileDraft) {
	if s.User == nil {
		return
	}
	s.User.FirstName = draft.FirstName
	s.User.LastName = draft.LastName
	s.User.Phone = draft.Phone
}

func (s *State) Notify(toast notify.Toast) {
	s.Toasts = append(s.Toasts, toast)
}

// DrainToasts hands the pending notices to the caller and forgets them.
func (s *State) DrainToasts() []notify.Toast {
	toasts := s.Toasts
	s.Toasts = nil
	return toasts
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	clone := *s
	if s.User != nil {
		user := *s.User
		clone.User = &user
	}
	clone.RegistrationErrors = cloneErrors(s.RegistrationErrors)
	clone.Profile.Errors = cloneErrors(s.Profile.Errors)
	if s.Toasts != nil {
		clone.Toasts = append([]notify.Toast(nil), s.Toasts...)
	}
	return &clone
}

func cloneErrors(errs models.FieldErrors) models.FieldErrors {
	if errs == nil {
		return nil
	}
	result := make(models.FieldErrors, len(errs))
	for field, msg := range errs {
		result[field] = msg
	}
	return result
}

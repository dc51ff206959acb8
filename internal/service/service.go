// Package service implements the registration and profile flows on top of
// the session state, the field validator and the user service client.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/signup/internal/logger"
	"github.com/patric-chuzhbe/signup/internal/metrics"
	"github.com/patric-chuzhbe/signup/internal/models"
	"github.com/patric-chuzhbe/signup/internal/notify"
	"github.com/patric-chuzhbe/signup/internal/session"
	"github.com/patric-chuzhbe/signup/internal/userapi"
)

// Notice texts shown after calls to the user service.
const (
	MsgRegistered         = "User registered successfully"
	MsgRegistrationFailed = "Registration failed: Something went wrong"
	MsgUpdated            = "User Updated successfully"
	MsgUpdateFailed       = "Updation failed: Something went wrong"
)

// ErrNotRegistered is returned by profile operations of a session without a user.
var ErrNotRegistered = errors.New("no user registered in this session")

type userCreator interface {
	CreateUser(ctx context.Context, request models.CreateUserRequest) (*models.UserProfile, error)
}

type userUpdater interface {
	UpdateUser(ctx context.Context, request models.UpdateUserRequest) (*models.UserProfile, error)
}

type userService interface {
	userCreator
	userUpdater
}

type fieldValidator interface {
	Validate(candidate models.Registration) models.FieldErrors
	ValidateDraft(draft models.ProfileDraft) models.FieldErrors
	ValidateFields(candidate models.Registration, fields ...string) models.FieldErrors
}

type Outcome int

const (
	// OutcomeInvalid: the validator refused the input, nothing was sent.
	OutcomeInvalid Outcome = iota
	// OutcomeRejected: the service answered with a domain-level refusal.
	OutcomeRejected
	// OutcomeFailed: the call did not settle with a usable answer.
	OutcomeFailed
	OutcomeSucceeded
)

type Service struct {
	users             userService
	validator         fieldValidator
	notifier          *notify.Notifier
	rollbackOnFailure bool
}

type Option func(*Service)

// WithRollbackOnUpdateFailure restores the pre-save profile values when an update
// fails. Without it the optimistic values stay on screen.
func WithRollbackOnUpdateFailure(rollback bool) Option {
	return func(s *Service) {
		s.rollbackOnFailure = rollback
	}
}

func New(
	users userService,
	validator fieldValidator,
	notifier *notify.Notifier,
	options ...Option,
) *Service {
	s := &Service{
		users:             users,
		validator:         validator,
		notifier:          notifier,
		rollbackOnFailure: true,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// CheckFields validates only the named fields of a registration candidate.
func (s *Service) CheckFields(candidate models.Registration, fields ...string) models.FieldErrors {
	return s.validator.ValidateFields(candidate, fields...)
}

// Register validates the candidate and, when valid, creates the user. On success the
// session holds the new user and the form draft is cleared; otherwise the draft is kept.
func (s *Service) Register(ctx context.Context, state *session.State, candidate models.Registration) Outcome {
	state.RegistrationDraft = candidate

	if errs := s.validator.Validate(candidate); errs != nil {
		state.RegistrationErrors = errs
		for field := range errs {
			metrics.ObserveValidationFailure("registration", field)
		}
		return OutcomeInvalid
	}
	state.RegistrationErrors = nil

	user, err := s.users.CreateUser(ctx, models.CreateUserRequest{
		FirstName: candidate.FirstName,
		LastName:  candidate.LastName,
		Email:     candidate.Email,
		Phone:     candidate.Phone,
		Username:  candidate.Username,
	})

	var rejection *userapi.RejectionError
	switch {
	case errors.As(err, &rejection):
		state.Notify(s.notifier.Error(rejection.Error()))
		return OutcomeRejected

	case err != nil:
		logger.Log.Debugln("Error calling the `s.users.CreateUser()`: ", zap.Error(err))
		state.Notify(s.notifier.Error(MsgRegistrationFailed))
		return OutcomeFailed
	}

	state.Register(*user)
	state.Notify(s.notifier.Success(MsgRegistered))

	return OutcomeSucceeded
}

// EditProfile switches the profile to edit mode with a draft of the current values.
func (s *Service) EditProfile(state *session.State) error {
	if !state.Registered() {
		return ErrNotRegistered
	}

	state.Profile = session.ProfileState{
		Mode:  models.ModeEdit,
		Draft: models.DraftOf(*state.User),
	}

	return nil
}

// SaveProfile validates the draft and sends it to the user service. A valid draft
// leaves edit mode and is shown before the update settles.
func (s *Service) SaveProfile(ctx context.Context, state *session.State, draft models.ProfileDraft) (Outcome, error) {
	if !state.Registered() {
		return OutcomeFailed, ErrNotRegistered
	}

	state.Profile.Draft = draft

	if errs := s.validator.ValidateDraft(draft); errs != nil {
		state.Profile.Mode = models.ModeEdit
		state.Profile.Errors = errs
		for field := range errs {
			metrics.ObserveValidationFailure("profile", field)
		}
		return OutcomeInvalid, nil
	}

	snapshot := *state.User
	state.Profile.Mode = models.ModeView
	state.Profile.Errors = nil
	state.SetEditable(draft)

	updated, err := s.users.UpdateUser(ctx, models.UpdateUserRequest{
		ID:        snapshot.ID,
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		Phone:     draft.Phone,
	})
	if err != nil {
		logger.Log.Debugln("Error calling the `s.users.UpdateUser()`: ", zap.Error(err))
		if s.rollbackOnFailure {
			*state.User = snapshot
			state.Profile.Draft = models.DraftOf(snapshot)
		}
		state.Notify(s.notifier.Error(MsgUpdateFailed))
		return OutcomeFailed, nil
	}

	state.ApplyUpdate(*updated)
	state.Profile.Draft = models.DraftOf(*state.User)
	state.Notify(s.notifier.Success(MsgUpdated))

	return OutcomeSucceeded, nil
}

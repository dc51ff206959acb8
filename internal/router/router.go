// Package router wires the HTTP surface of the front end: the registration
// and profile screens, the blur-validation endpoint and the service endpoints.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/signup/internal/auth"
	"github.com/patric-chuzhbe/signup/internal/gzippedhttp"
	"github.com/patric-chuzhbe/signup/internal/ipchecker"
	"github.com/patric-chuzhbe/signup/internal/logger"
	"github.com/patric-chuzhbe/signup/internal/metrics"
	"github.com/patric-chuzhbe/signup/internal/models"
	"github.com/patric-chuzhbe/signup/internal/notify"
	"github.com/patric-chuzhbe/signup/internal/service"
	"github.com/patric-chuzhbe/signup/internal/session"
	"github.com/patric-chuzhbe/signup/internal/view"
)

const (
	RegistrationRoute = "/"
	ProfileRoute      = "/home"
)

const msgRegisterFirst = "Please register first"

var allFields = []string{"firstName", "lastName", "email", "phone", "username", "acceptedTerms"}

type flows interface {
	Register(ctx context.Context, state *session.State, candidate models.Registration) service.Outcome
	EditProfile(state *session.State) error
	SaveProfile(ctx context.Context, state *session.State, draft models.ProfileDraft) (service.Outcome, error)
	CheckFields(candidate models.Registration, fields ...string) models.FieldErrors
}

type renderer interface {
	RenderRegistration(w io.Writer, data view.RegistrationView) error
	RenderProfile(w io.Writer, data view.ProfileView) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type sessionStore interface {
	session.Store
	pinger
}

type authenticator interface {
	IdentifySession(h http.Handler) http.Handler
}

type Router struct {
	svc           flows
	store         sessionStore
	renderer      renderer
	notifier      *notify.Notifier
	navigateDelay time.Duration
}

type initOptions struct {
	navigateDelay      time.Duration
	corsAllowedOrigins []string
	enableGzip         bool
	metricsGuard       *ipchecker.IPChecker
}

type InitOption func(*initOptions)

// WithNavigateDelay sets how long the success notice stays on the registration
// screen before the browser moves to the profile.
func WithNavigateDelay(delay time.Duration) InitOption {
	return func(options *initOptions) {
		options.navigateDelay = delay
	}
}

func WithCORSAllowedOrigins(origins []string) InitOption {
	return func(options *initOptions) {
		options.corsAllowedOrigins = origins
	}
}

func WithGzip(enable bool) InitOption {
	return func(options *initOptions) {
		options.enableGzip = enable
	}
}

// WithMetricsGuard limits /metrics to the checker's trusted subnets.
func WithMetricsGuard(checker *ipchecker.IPChecker) InitOption {
	return func(options *initOptions) {
		options.metricsGuard = checker
	}
}

// New builds the chi router with all middleware attached.
func New(
	svc flows,
	store sessionStore,
	renderer renderer,
	notifier *notify.Notifier,
	theAuth authenticator,
	optionsProto ...InitOption,
) *chi.Mux {
	options := &initOptions{
		navigateDelay:      2 * time.Second,
		corsAllowedOrigins: nil,
		enableGzip:         true,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	myRouter := Router{
		svc:           svc,
		store:         store,
		renderer:      renderer,
		notifier:      notifier,
		navigateDelay: options.navigateDelay,
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		logger.WithLoggingHTTPMiddleware,
		metrics.WithHTTPMetrics,
	)
	if options.enableGzip {
		router.Use(gzippedhttp.GzipResponse)
	}

	router.Get(`/ping`, myRouter.GetPing)
	metricsHandler := metrics.Handler()
	if options.metricsGuard != nil {
		metricsHandler = options.metricsGuard.TrustedOnly(metricsHandler)
	}
	router.Method(http.MethodGet, `/metrics`, metricsHandler)

	router.Group(func(r chi.Router) {
		r.Use(theAuth.IdentifySession)

		r.Get(RegistrationRoute, myRouter.GetRegistration)
		r.Post(RegistrationRoute, myRouter.PostRegistration)
		r.Get(ProfileRoute, myRouter.GetProfile)
		r.Post(ProfileRoute+`/edit`, myRouter.PostProfileEdit)
		r.Post(ProfileRoute+`/save`, myRouter.PostProfileSave)

		r.Group(func(r chi.Router) {
			if len(options.corsAllowedOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins:   options.corsAllowedOrigins,
					AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
					AllowedHeaders:   []string{"Content-Type"},
					AllowCredentials: true,
				}))
			}
			r.Options(`/api/validate`, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			r.Post(`/api/validate`, myRouter.PostAPIValidate)
		})
	})

	return router
}

func (r *Router) loadState(request *http.Request) (*session.State, error) {
	sessionID, ok := auth.SessionIDFrom(request.Context())
	if !ok {
		return nil, errors.New("no session id in the request context")
	}

	return session.LoadOrNew(request.Context(), r.store, sessionID)
}

func (r *Router) saveState(response http.ResponseWriter, request *http.Request, state *session.State) bool {
	if err := r.store.Save(request.Context(), state); err != nil {
		logger.Log.Debugln("Error calling the `r.store.Save()`: ", zap.Error(err))
		http.Error(response, "internal error", http.StatusInternalServerError)
		return false
	}
	return true
}

func (r *Router) stateOrFail(response http.ResponseWriter, request *http.Request) (*session.State, bool) {
	state, err := r.loadState(request)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.loadState()`: ", zap.Error(err))
		http.Error(response, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return state, true
}

func (r *Router) writePage(response http.ResponseWriter, status int, render func(w io.Writer) error) {
	var page strings.Builder
	if err := render(&page); err != nil {
		logger.Log.Debugln("Error rendering a page: ", zap.Error(err))
		http.Error(response, "internal error", http.StatusInternalServerError)
		return
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	response.WriteHeader(status)
	_, err := io.WriteString(response, page.String())
	if err != nil {
		logger.Log.Debugln("Error writing a page: ", zap.Error(err))
	}
}

// trimRegistration drops surrounding whitespace so blur checks and submits judge the same values.
func trimRegistration(candidate models.Registration) models.Registration {
	candidate.FirstName = strings.TrimSpace(candidate.FirstName)
	candidate.LastName = strings.TrimSpace(candidate.LastName)
	candidate.Email = strings.TrimSpace(candidate.Email)
	candidate.Phone = strings.TrimSpace(candidate.Phone)
	candidate.Username = strings.TrimSpace(candidate.Username)
	return candidate
}

func registrationFromForm(request *http.Request) models.Registration {
	terms := strings.TrimSpace(request.PostForm.Get("acceptedTerms"))

	return trimRegistration(models.Registration{
		FirstName:     request.PostForm.Get("firstName"),
		LastName:      request.PostForm.Get("lastName"),
		Email:         request.PostForm.Get("email"),
		Phone:         request.PostForm.Get("phone"),
		Username:      request.PostForm.Get("username"),
		AcceptedTerms: terms == "true" || terms == "on",
	})
}

func draftFromForm(request *http.Request) models.ProfileDraft {
	return models.ProfileDraft{
		FirstName: strings.TrimSpace(request.PostForm.Get("firstName")),
		LastName:  strings.TrimSpace(request.PostForm.Get("lastName")),
		Phone:     strings.TrimSpace(request.PostForm.Get("phone")),
	}
}

// GetPing reports whether the session store is reachable.
func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.store.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `r.store.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	response.WriteHeader(http.StatusOK)
}

// GetRegistration renders the registration form with whatever the session has typed so far.
func (r *Router) GetRegistration(response http.ResponseWriter, request *http.Request) {
	state, ok := r.stateOrFail(response, request)
	if !ok {
		return
	}

	data := view.RegistrationView{
		Page:   view.Page{Toasts: state.DrainToasts()},
		Values: state.RegistrationDraft,
		Errors: state.RegistrationErrors,
	}
	if !r.saveState(response, request, state) {
		return
	}

	r.writePage(response, http.StatusOK, func(w io.Writer) error {
		return r.renderer.RenderRegistration(w, data)
	})
}

// PostRegistration validates and submits the registration form.
// On success the page shows the notice and then moves the browser to the profile.
func (r *Router) PostRegistration(response http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	state, ok := r.stateOrFail(response, request)
	if !ok {
		return
	}

	outcome := r.svc.Register(request.Context(), state, registrationFromForm(request))

	data := view.RegistrationView{
		Page:   view.Page{Toasts: state.DrainToasts()},
		Values: state.RegistrationDraft,
		Errors: state.RegistrationErrors,
	}
	if !r.saveState(response, request, state) {
		return
	}

	status := http.StatusOK
	switch outcome {
	case service.OutcomeInvalid:
		status = http.StatusUnprocessableEntity
	case service.OutcomeRejected:
		status = http.StatusConflict
	case service.OutcomeFailed:
		status = http.StatusBadGateway
	case service.OutcomeSucceeded:
		data.RedirectTo = ProfileRoute
		data.RedirectAfter = r.navigateDelay
		response.Header().Set(
			"Refresh",
			fmt.Sprintf("%d; url=%s", int(r.navigateDelay.Round(time.Second)/time.Second), ProfileRoute),
		)
	}

	r.writePage(response, status, func(w io.Writer) error {
		return r.renderer.RenderRegistration(w, data)
	})
}

func (r *Router) redirectToRegistration(response http.ResponseWriter, request *http.Request, state *session.State) {
	state.Notify(r.notifier.Error(msgRegisterFirst))
	if !r.saveState(response, request, state) {
		return
	}
	http.Redirect(response, request, RegistrationRoute, http.StatusSeeOther)
}

func (r *Router) renderProfile(response http.ResponseWriter, request *http.Request, state *session.State, status int) {
	data := view.ProfileView{
		Page:   view.Page{Toasts: state.DrainToasts()},
		User:   *state.User,
		Mode:   state.Profile.Mode,
		Draft:  state.Profile.Draft,
		Errors: state.Profile.Errors,
	}
	if !r.saveState(response, request, state) {
		return
	}

	r.writePage(response, status, func(w io.Writer) error {
		return r.renderer.RenderProfile(w, data)
	})
}

// GetProfile renders the profile in its current mode.
func (r *Router) GetProfile(response http.ResponseWriter, request *http.Request) {
	state, ok := r.stateOrFail(response, request)
	if !ok {
		return
	}

	if !state.Registered() {
		r.redirectToRegistration(response, request, state)
		return
	}

	r.renderProfile(response, request, state, http.StatusOK)
}

// PostProfileEdit switches the profile to edit mode.
func (r *Router) PostProfileEdit(response http.ResponseWriter, request *http.Request) {
	state, ok := r.stateOrFail(response, request)
	if !ok {
		return
	}

	if err := r.svc.EditProfile(state); err != nil {
		r.redirectToRegistration(response, request, state)
		return
	}

	if !r.saveState(response, request, state) {
		return
	}
	http.Redirect(response, request, ProfileRoute, http.StatusSeeOther)
}

// PostProfileSave validates the submitted draft and sends it to the user service.
// Saving from the read-only view resubmits the current values.
func (r *Router) PostProfileSave(response http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	state, ok := r.stateOrFail(response, request)
	if !ok {
		return
	}

	if !state.Registered() {
		r.redirectToRegistration(response, request, state)
		return
	}

	draft := models.DraftOf(*state.User)
	if state.Profile.Mode == models.ModeEdit {
		draft = draftFromForm(request)
	}

	outcome, err := r.svc.SaveProfile(request.Context(), state, draft)
	if err != nil {
		r.redirectToRegistration(response, request, state)
		return
	}

	status := http.StatusOK
	switch outcome {
	case service.OutcomeInvalid:
		status = http.StatusUnprocessableEntity
	case service.OutcomeFailed:
		status = http.StatusBadGateway
	}

	r.renderProfile(response, request, state, status)
}

// PostAPIValidate runs the field validator for blur events. With an empty
// field list every field is checked.
func (r *Router) PostAPIValidate(response http.ResponseWriter, request *http.Request) {
	var validateRequest models.ValidateRequest
	if err := json.NewDecoder(request.Body).Decode(&validateRequest); err != nil {
		http.Error(response, "malformed JSON", http.StatusBadRequest)
		return
	}

	fields := validateRequest.Fields
	if len(fields) == 0 {
		fields = allFields
	}

	errs := r.svc.CheckFields(trimRegistration(validateRequest.Values), fields...)

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	err := json.NewEncoder(response).Encode(models.ValidateResponse{
		Valid:  len(errs) == 0,
		Errors: errs,
	})
	if err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(response).Encode()`: ", zap.Error(err))
	}
}

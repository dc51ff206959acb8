package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/signup/internal/auth"
	"github.com/patric-chuzhbe/signup/internal/db/memorystorage"
	"github.com/patric-chuzhbe/signup/internal/ipchecker"
	"github.com/patric-chuzhbe/signup/internal/mockuserapi"
	"github.com/patric-chuzhbe/signup/internal/models"
	"github.com/patric-chuzhbe/signup/internal/notify"
	"github.com/patric-chuzhbe/signup/internal/service"
	"github.com/patric-chuzhbe/signup/internal/session"
	"github.com/patric-chuzhbe/signup/internal/userapi"
	"github.com/patric-chuzhbe/signup/internal/validation"
	"github.com/patric-chuzhbe/signup/internal/view"
)

type testEnv struct {
	server *httptest.Server
	users  *mockuserapi.UserServiceMock
	store  *memorystorage.MemoryStorage
	client *resty.Client
}

type brokenStore struct {
	*memorystorage.MemoryStorage
}

func (brokenStore) Ping(ctx context.Context) error {
	return errors.New("store is down")
}

func (brokenStore) Load(ctx context.Context, id string) (*session.State, error) {
	return nil, errors.New("store is down")
}

func setupTestRouter(t *testing.T, optionsProto ...InitOption) *testEnv {
	t.Helper()

	v, err := validation.New()
	require.NoError(t, err)
	renderer, err := view.New()
	require.NoError(t, err)

	users := new(mockuserapi.UserServiceMock)
	notifier := notify.New(time.Second)
	store := memorystorage.New(time.Hour)

	handler := New(
		service.New(users, v, notifier),
		store,
		renderer,
		notifier,
		auth.New("sid", []byte("test-signing-key"), time.Hour),
		optionsProto...,
	)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testEnv{
		server: server,
		users:  users,
		store:  store,
		client: resty.New().SetBaseURL(server.URL),
	}
}

func johnForm() map[string]string {
	return map[string]string{
		"firstName":     "John",
		"lastName":      "Doe",
		"email":         "john@x.com",
		"phone":         "5551234567",
		"username":      "john",
		"acceptedTerms": "on",
	}
}

func johnProfile() *models.UserProfile {
	return &models.UserProfile{
		ID:        "u1",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@x.com",
		Phone:     "5551234567",
		Username:  "john",
	}
}

func (env *testEnv) register(t *testing.T) {
	t.Helper()
	env.users.On("CreateUser", mock.Anything, mock.Anything).Return(johnProfile(), nil).Once()

	resp, err := env.client.R().SetFormData(johnForm()).Post("/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestPostRegistration(t *testing.T) {
	type tExpectedResponse struct {
		code         int
		bodyContains []string
		refresh      string
	}
	type tTestCase struct {
		name             string
		form             func() map[string]string
		upstream         func(users *mockuserapi.UserServiceMock)
		expectedResponse tExpectedResponse
	}
	testCases := []tTestCase{
		{
			name: "short first name",
			form: func() map[string]string {
				form := johnForm()
				form["firstName"] = "Jo"
				return form
			},
			expectedResponse: tExpectedResponse{
				code:         http.StatusUnprocessableEntity,
				bodyContains: []string{"First Name must be at least 3 characters", `value="Jo"`},
			},
		},
		{
			name: "dashed phone",
			form: func() map[string]string {
				form := johnForm()
				form["phone"] = "555-1234"
				return form
			},
			expectedResponse: tExpectedResponse{
				code:         http.StatusUnprocessableEntity,
				bodyContains: []string{"Invalid phone number"},
			},
		},
		{
			name: "terms not accepted",
			form: func() map[string]string {
				form := johnForm()
				delete(form, "acceptedTerms")
				return form
			},
			expectedResponse: tExpectedResponse{
				code:         http.StatusUnprocessableEntity,
				bodyContains: []string{"You must accept the terms and conditions"},
			},
		},
		{
			name: "created",
			form: johnForm,
			upstream: func(users *mockuserapi.UserServiceMock) {
				users.On("CreateUser", mock.Anything, models.CreateUserRequest{
					FirstName: "John",
					LastName:  "Doe",
					Email:     "john@x.com",
					Phone:     "5551234567",
					Username:  "john",
				}).Return(johnProfile(), nil).Once()
			},
			expectedResponse: tExpectedResponse{
				code:         http.StatusOK,
				bodyContains: []string{service.MsgRegistered, `data-redirect-to="/home"`, "toast-success"},
				refresh:      "2; url=/home",
			},
		},
		{
			name: "already exists",
			form: johnForm,
			upstream: func(users *mockuserapi.UserServiceMock) {
				users.On("CreateUser", mock.Anything, mock.Anything).
					Return(nil, &userapi.RejectionError{Msg: "User already exists"}).Once()
			},
			expectedResponse: tExpectedResponse{
				code:         http.StatusConflict,
				bodyContains: []string{"User already exists", "toast-error", `value="john@x.com"`},
			},
		},
		{
			name: "service unreachable",
			form: johnForm,
			upstream: func(users *mockuserapi.UserServiceMock) {
				users.On("CreateUser", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("dial: %w", userapi.ErrTransport)).Once()
			},
			expectedResponse: tExpectedResponse{
				code:         http.StatusBadGateway,
				bodyContains: []string{service.MsgRegistrationFailed},
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			env := setupTestRouter(t)
			if testCase.upstream != nil {
				testCase.upstream(env.users)
			}

			resp, err := env.client.R().SetFormData(testCase.form()).Post("/")
			require.NoError(t, err)

			assert.Equal(t, testCase.expectedResponse.code, resp.StatusCode())
			for _, fragment := range testCase.expectedResponse.bodyContains {
				assert.Contains(t, resp.String(), fragment)
			}
			assert.Equal(t, testCase.expectedResponse.refresh, resp.Header().Get("Refresh"))

			if testCase.upstream == nil {
				env.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
			}
			env.users.AssertExpectations(t)
		})
	}
}

func TestRegistrationThenProfile(t *testing.T) {
	env := setupTestRouter(t, WithNavigateDelay(time.Second))
	env.register(t)

	resp, err := env.client.R().Get("/home")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), "Welcome John Doe")
	assert.Contains(t, resp.String(), `<span id="phone">5551234567</span>`)

	resp, err = env.client.R().Get("/")
	require.NoError(t, err)
	assert.NotContains(t, resp.String(), `value="John"`, "the registration form is cleared")
}

func TestGetProfileWithoutRegistration(t *testing.T) {
	env := setupTestRouter(t)

	resp, err := env.client.R().Get("/home")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), "Registration Form")
	assert.Contains(t, resp.String(), "Please register first")
}

func TestBlankUsernameRejectedOnSubmit(t *testing.T) {
	env := setupTestRouter(t)
	form := johnForm()
	form["username"] = "   "

	resp, err := env.client.R().SetFormData(form).Post("/")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode())
	assert.Contains(t, resp.String(), "Username is required")
	env.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestRejectedRegistrationDoesNotNavigate(t *testing.T) {
	env := setupTestRouter(t)
	env.users.On("CreateUser", mock.Anything, mock.Anything).
		Return(nil, &userapi.RejectionError{Msg: "User already exists"}).Once()

	resp, err := env.client.R().SetFormData(johnForm()).Post("/")
	require.NoError(t, err)
	assert.Empty(t, resp.Header().Get("Refresh"))
	assert.NotContains(t, resp.String(), "data-redirect-to")

	resp, err = env.client.R().Get("/home")
	require.NoError(t, err)
	assert.Contains(t, resp.String(), "Please register first")
}

func TestProfileEditAndSave(t *testing.T) {
	env := setupTestRouter(t)
	env.register(t)

	resp, err := env.client.R().Post("/home/edit")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), `name="firstName" value="John"`)

	t.Run("invalid draft", func(t *testing.T) {
		resp, err := env.client.R().SetFormData(map[string]string{
			"firstName": "Jo",
			"lastName":  "Doe",
			"phone":     "5551234567",
		}).Post("/home/save")
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode())
		assert.Contains(t, resp.String(), "First Name must be at least 3 characters")
		assert.Contains(t, resp.String(), `name="firstName" value="Jo"`)
		env.users.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
	})

	t.Run("saved", func(t *testing.T) {
		env.users.On("UpdateUser", mock.Anything, models.UpdateUserRequest{
			ID:        "u1",
			FirstName: "Jane",
			LastName:  "Roe",
			Phone:     "5550000000",
		}).Return(&models.UserProfile{
			ID:        "u1",
			FirstName: "Jane",
			LastName:  "Roe",
			Email:     "john@x.com",
			Phone:     "5550000000",
			Username:  "john",
		}, nil).Once()

		resp, err := env.client.R().SetFormData(map[string]string{
			"firstName": "Jane",
			"lastName":  "Roe",
			"phone":     "5550000000",
		}).Post("/home/save")
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Contains(t, resp.String(), "Welcome Jane Roe")
		assert.Contains(t, resp.String(), service.MsgUpdated)
		assert.NotContains(t, resp.String(), `name="firstName"`, "the profile is back in read-only mode")
		env.users.AssertExpectations(t)
	})
}

func TestProfileSaveFailure(t *testing.T) {
	env := setupTestRouter(t)
	env.register(t)

	_, err := env.client.R().Post("/home/edit")
	require.NoError(t, err)

	env.users.On("UpdateUser", mock.Anything, mock.Anything).Return(nil, userapi.ErrTransport).Once()

	resp, err := env.client.R().SetFormData(map[string]string{
		"firstName": "Jane",
		"lastName":  "Roe",
		"phone":     "5550000000",
	}).Post("/home/save")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode())
	assert.Contains(t, resp.String(), service.MsgUpdateFailed)
	assert.Contains(t, resp.String(), "Welcome John Doe")
}

func TestSaveFromReadOnlyView(t *testing.T) {
	env := setupTestRouter(t)
	env.register(t)

	env.users.On("UpdateUser", mock.Anything, models.UpdateUserRequest{
		ID:        "u1",
		FirstName: "John",
		LastName:  "Doe",
		Phone:     "5551234567",
	}).Return(johnProfile(), nil).Once()

	resp, err := env.client.R().SetFormData(map[string]string{"firstName": "ignored"}).Post("/home/save")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode())
	env.users.AssertExpectations(t)
}

func TestPostAPIValidate(t *testing.T) {
	env := setupTestRouter(t)

	type tTestCase struct {
		name     string
		body     string
		code     int
		expected models.ValidateResponse
	}
	testCases := []tTestCase{
		{
			name: "blur on a short first name",
			body: `{"fields":["firstName"],"values":{"firstName":"Jo"}}`,
			code: http.StatusOK,
			expected: models.ValidateResponse{
				Valid:  false,
				Errors: models.FieldErrors{"firstName": "First Name must be at least 3 characters"},
			},
		},
		{
			name:     "blur on a good email",
			body:     `{"fields":["email"],"values":{"email":"jo@x.com"}}`,
			code:     http.StatusOK,
			expected: models.ValidateResponse{Valid: true},
		},
		{
			name: "blur on a blank username",
			body: `{"fields":["username"],"values":{"username":"   "}}`,
			code: http.StatusOK,
			expected: models.ValidateResponse{
				Valid:  false,
				Errors: models.FieldErrors{"username": "Username is required"},
			},
		},
		{
			name:     "blur on a padded first name",
			body:     `{"fields":["firstName"],"values":{"firstName":"  John  "}}`,
			code:     http.StatusOK,
			expected: models.ValidateResponse{Valid: true},
		},
		{
			name: "whole form",
			body: `{"values":{"firstName":"John","lastName":"Doe","email":"john@x.com","phone":"5551234567","username":"john","acceptedTerms":false}}`,
			code: http.StatusOK,
			expected: models.ValidateResponse{
				Valid:  false,
				Errors: models.FieldErrors{"acceptedTerms": "You must accept the terms and conditions"},
			},
		},
		{
			name: "malformed JSON",
			body: `{"fields":`,
			code: http.StatusBadRequest,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var result models.ValidateResponse
			req := env.client.R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body)
			if testCase.code == http.StatusOK {
				req.SetResult(&result)
			}

			resp, err := req.Post("/api/validate")
			require.NoError(t, err)

			assert.Equal(t, testCase.code, resp.StatusCode())
			if testCase.code == http.StatusOK {
				assert.Equal(t, testCase.expected, result)
			}
		})
	}
}

func TestPostAPIValidateCORS(t *testing.T) {
	env := setupTestRouter(t, WithCORSAllowedOrigins([]string{"http://app.example.com"}))

	resp, err := env.client.R().
		SetHeader("Origin", "http://app.example.com").
		SetHeader("Access-Control-Request-Method", http.MethodPost).
		Options("/api/validate")
	require.NoError(t, err)

	assert.Equal(t, "http://app.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetPing(t *testing.T) {
	env := setupTestRouter(t)

	resp, err := env.client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Empty(t, resp.Cookies(), "service endpoints do not start sessions")
}

func TestBrokenStore(t *testing.T) {
	v, err := validation.New()
	require.NoError(t, err)
	renderer, err := view.New()
	require.NoError(t, err)
	notifier := notify.New(time.Second)

	handler := New(
		service.New(new(mockuserapi.UserServiceMock), v, notifier),
		brokenStore{memorystorage.New(0)},
		renderer,
		notifier,
		auth.New("sid", []byte("test-signing-key"), 0),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetMetricsGuard(t *testing.T) {
	guard, err := ipchecker.New("10.0.0.0/8")
	require.NoError(t, err)
	env := setupTestRouter(t, WithMetricsGuard(guard))

	resp, err := env.client.R().SetHeader("X-Real-IP", "8.8.8.8").Get("/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = env.client.R().SetHeader("X-Real-IP", "10.1.1.1").Get("/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

// Package userapi is the HTTP client of the remote user service that
// creates user records and updates them by identifier.
package userapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/signup/internal/logger"
	"github.com/patric-chuzhbe/signup/internal/metrics"
	"github.com/patric-chuzhbe/signup/internal/models"
)

const (
	createUserPath = "/createUser"
	updateUserPath = "/updateuser"
)

// ErrUserExists is matched by a RejectionError returned from CreateUser.
var ErrUserExists = errors.New("user already exists")

// ErrTransport wraps every failure that is not a domain-level answer of the service:
// network errors, non-2xx statuses and undecodable bodies.
var ErrTransport = errors.New("user service request failed")

// RejectionError is a successful exchange whose payload refuses the request.
type RejectionError struct {
	Msg string
}

func (e *RejectionError) Error() string {
	if e.Msg == "" {
		return ErrUserExists.Error()
	}
	return e.Msg
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrUserExists
}

// Client talks to the user service. The zero value is not usable; call New.
type Client struct {
	http *resty.Client
}

// New creates a client for the service at baseURL. A zero timeout disables
// the client-side deadline and leaves cancellation to the request context.
func New(baseURL string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Log)
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	return &Client{http: httpClient}
}

// CreateUser registers a new user. A duplicate identity comes back as *RejectionError.
func (c *Client) CreateUser(ctx context.Context, request models.CreateUserRequest) (*models.UserProfile, error) {
	var result models.CreateUserResponse
	status, err := c.post(ctx, createUserPath, request, &result)
	if err != nil {
		metrics.ObserveUpstream(createUserPath, metrics.OutcomeTransportError)
		return nil, err
	}

	if result.Exists {
		metrics.ObserveUpstream(createUserPath, metrics.OutcomeRejected)
		return nil, &RejectionError{Msg: result.Msg}
	}

	if status >= 300 || result.Data == nil || result.Data.ID == "" {
		metrics.ObserveUpstream(createUserPath, metrics.OutcomeTransportError)
		return nil, fmt.Errorf(
			"in internal/userapi/userapi.go/CreateUser(): unexpected response with status %d: %w",
			status,
			ErrTransport,
		)
	}

	metrics.ObserveUpstream(createUserPath, metrics.OutcomeOK)
	return result.Data, nil
}

// UpdateUser sends the editable fields of the user identified by request.ID
// and returns the record as stored by the service.
func (c *Client) UpdateUser(ctx context.Context, request models.UpdateUserRequest) (*models.UserProfile, error) {
	var result models.UpdateUserResponse
	status, err := c.post(ctx, updateUserPath, request, &result)
	if err != nil {
		metrics.ObserveUpstream(updateUserPath, metrics.OutcomeTransportError)
		return nil, err
	}

	if status >= 300 || result.Data == nil {
		metrics.ObserveUpstream(updateUserPath, metrics.OutcomeTransportError)
		return nil, fmt.Errorf(
			"in internal/userapi/userapi.go/UpdateUser(): unexpected response with status %d: %w",
			status,
			ErrTransport,
		)
	}

	metrics.ObserveUpstream(updateUserPath, metrics.OutcomeOK)
	return result.Data, nil
}

// post sends body as JSON and decodes whatever JSON comes back into result,
// regardless of status, so that rejections sent with an error status are still seen.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) (int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return 0, fmt.Errorf("in internal/userapi/userapi.go/post(): error while `Post(%s)` calling: %w: %w", path, ErrTransport, err)
	}

	raw := resp.Body()
	if len(raw) == 0 {
		return resp.StatusCode(), nil
	}

	if err := json.Unmarshal(raw, result); err != nil {
		if resp.IsSuccess() {
			return 0, fmt.Errorf("in internal/userapi/userapi.go/post(): error while decoding %s response: %w: %w", path, ErrTransport, err)
		}
		logger.Log.Debugln("non-JSON error response from the user service", "path", path, "status", resp.StatusCode())
	}

	return resp.StatusCode(), nil
}

// Package auth identifies the browser session of every request. The session id
// travels in a signed JWT cookie; requests without a valid cookie get a new id.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/signup/internal/logger"
)

// Auth issues and verifies session cookies.
type Auth struct {
	// cookieName is the name of the cookie used to store the JWT.
	cookieName string

	// signingKey is the key used to sign JWTs.
	signingKey []byte

	// ttl bounds the cookie and token lifetime; zero means a browser-session cookie.
	ttl time.Duration

	now func() time.Time
}

// Claims is the payload of the session token.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// SessionIDKey is the context key of the current session id.
const SessionIDKey ContextKey = "sessionID"

func New(cookieName string, signingKey []byte, ttl time.Duration) *Auth {
	return &Auth{
		cookieName: cookieName,
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// SessionIDFrom returns the session id stored by IdentifySession.
func SessionIDFrom(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionIDKey).(string)
	return sessionID, ok && sessionID != ""
}

// IdentifySession is an HTTP middleware that puts the session id into the request context,
// starting a new session and setting its cookie when the request carries none.
func (a *Auth) IdentifySession(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		sessionID, err := a.sessionIDFromCookie(request)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.sessionIDFromCookie()`: ", zap.Error(err))
		}

		if sessionID == "" {
			sessionID = uuid.New().String()

			cookie, err := a.buildCookie(sessionID)
			if err != nil {
				logger.Log.Debugln("Error calling the `a.buildCookie()`: ", zap.Error(err))
				response.WriteHeader(http.StatusInternalServerError)

				return
			}
			http.SetCookie(response, cookie)
		}

		ctx := context.WithValue(request.Context(), SessionIDKey, sessionID)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

func (a *Auth) sessionIDFromCookie(request *http.Request) (string, error) {
	cookie, err := request.Cookie(a.cookieName)
	if err != nil {
		return "", nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", nil
	}

	return claims.SessionID, nil
}

func (a *Auth) buildCookie(sessionID string) (*http.Cookie, error) {
	claims := Claims{SessionID: sessionID}
	cookie := &http.Cookie{
		Name:     a.cookieName,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if a.ttl > 0 {
		expiresAt := a.now().Add(a.ttl)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
		cookie.Expires = expiresAt
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
	if err != nil {
		return nil, err
	}
	cookie.Value = tokenString

	return cookie, nil
}

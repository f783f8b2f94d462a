package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wrenhollow/chronicle/internal/authorservice"
)

func strptr(s string) *string {
	return &s
}

func TestRecoverPanic(t *testing.T) {
	app, _ := newTestApplication(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	})

	middleware := app.recoverPanic(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()

	middleware.ServeHTTP(res, req)

	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "close", res.Header().Get("Connection"))
}

func TestAuthenticate(t *testing.T) {
	app, _ := newTestApplication(t)

	setup := func() (*string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		activationToken, err := app.authorService.CreateAuthor(ctx, "testauthor", "testauthor@example.com", "Str0ng!pass")
		if err != nil {
			return nil, err
		}

		err = app.authorService.ActivateAuthor(ctx, *activationToken)
		if err != nil {
			return nil, err
		}

		token, err := app.authorService.LoginAuthor(ctx, "testauthor", "Str0ng!pass")
		if err != nil {
			return nil, err
		}

		return &token.AccessTokenPlain, nil
	}

	tests := []struct {
		name           string
		authHeader     func() (*string, error)
		expectedStatus int
	}{
		{
			name:           "no authentication header",
			authHeader:     func() (*string, error) { return nil, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "malformed token",
			authHeader:     func() (*string, error) { return strptr("invalid-token"), nil },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown token",
			authHeader:     func() (*string, error) { return strptr("ABCDEFGHIJKLMNOPQRSTUVWXYZ"), nil },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "valid token",
			authHeader:     setup,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			middleware := app.authenticate(handler)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			token, err := tt.authHeader()
			assert.NoError(t, err)

			if token != nil {
				req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", *token))
			}

			res := httptest.NewRecorder()

			middleware.ServeHTTP(res, req)

			assert.Equal(t, tt.expectedStatus, res.Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	app, _ := newTestApplication(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := app.requirePermission(handler, authorservice.PermissionWritePost)

	tests := []struct {
		name           string
		author         *authorservice.Author
		expectedStatus int
	}{
		{
			name:           "anonymous author",
			author:         &authorservice.AnonymousAuthor,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "not activated",
			author:         &authorservice.Author{ID: 1},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "activated without permission",
			author:         &authorservice.Author{ID: 1, Activated: true},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "activated with permission",
			author: &authorservice.Author{
				ID:          1,
				Activated:   true,
				Permissions: authorservice.Permissions{authorservice.PermissionWritePost},
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = app.createAuthorContext(req, tt.author)

			res := httptest.NewRecorder()

			middleware.ServeHTTP(res, req)

			assert.Equal(t, tt.expectedStatus, res.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := &Config{}
	cfg.Limiter.RPS = 2
	cfg.Limiter.Burst = 4
	cfg.Limiter.Enabled = true

	app := &application{config: cfg}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := app.rateLimit(handler)

	server := httptest.NewServer(middleware)
	defer server.Close()

	tests := []struct {
		name           string
		requests       int
		expectedStatus int
	}{
		{
			name:           "within limit",
			requests:       4,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "over limit",
			requests:       6,
			expectedStatus: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lastStatusCode int

			for i := 0; i < tt.requests; i++ {
				res, err := http.Get(server.URL)
				assert.NoError(t, err)
				res.Body.Close()

				lastStatusCode = res.StatusCode
			}

			assert.Equal(t, tt.expectedStatus, lastStatusCode)
		})
	}
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := &Config{}
	cfg.Limiter.RPS = 1
	cfg.Limiter.Burst = 1
	cfg.Limiter.Enabled = false

	app := &application{config: cfg}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := app.rateLimit(handler)

	server := httptest.NewServer(middleware)
	defer server.Close()

	for i := 0; i < 10; i++ {
		res, err := http.Get(server.URL)
		assert.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
	}
}

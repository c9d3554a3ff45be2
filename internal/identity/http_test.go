package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizenly/pkg/platform/sentinel"
)

func TestHTTPClient_CreateSuccess(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/admin/users", r.URL.Path)
		require.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var req createUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "juan@example.com", req.Email)
		assert.True(t, req.EmailConfirm)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(userResponse{ID: id, Email: req.Email, CreatedAt: time.Now().UTC()})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "service-key", 5*time.Second)
	created, err := c.Create(context.Background(), "juan@example.com", "Str0ng!pw")
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)
}

func TestHTTPClient_CreateDuplicateEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(errorResponse{Code: "email_exists", Message: "A user with this email address has already been registered"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "service-key", 5*time.Second)
	_, err := c.Create(context.Background(), "juan@example.com", "Str0ng!pw")
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestHTTPClient_CreateProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "service-key", 5*time.Second)
	_, err := c.Create(context.Background(), "juan@example.com", "Str0ng!pw")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestHTTPClient_FindByID(t *testing.T) {
	id := uuid.New()
	var visible bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/users/"+id.String(), r.URL.Path)
		if !visible {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userResponse{ID: id, Email: "juan@example.com"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "service-key", 5*time.Second)

	_, err := c.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "invisible identity reads as not found")

	visible = true
	found, err := c.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
}

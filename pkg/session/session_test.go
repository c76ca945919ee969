package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeSessionWithoutWebhook(t *testing.T) {
	m := NewManager("")

	id := m.InitializeSession(context.Background())
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	assert.NotEqual(t, id, m.InitializeSession(context.Background()))
}

func TestInitializeSessionFromWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"session_id": "web-123"}`))
	}))
	defer srv.Close()

	m := NewManager(srv.URL)
	assert.Equal(t, "web-123", m.InitializeSession(context.Background()))
	assert.NoError(t, m.ValidateWebhook(context.Background()))
}

func TestInitializeSessionWebhookFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewManager(srv.URL)
	id := m.InitializeSession(context.Background())
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestValidateWebhook(t *testing.T) {
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"other": "field"}`))
	}))
	defer missing.Close()

	m := NewManager(missing.URL)
	err := m.ValidateWebhook(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_id")

	assert.NoError(t, NewManager("").ValidateWebhook(context.Background()))
}

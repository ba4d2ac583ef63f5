package client

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-notifier/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-notifier/internal/reconciler"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/response"
)

func newServer(t *testing.T, h gin.HandlerFunc) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(recentPath, h)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchRecent_DecodesEnvelope(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := newServer(t, func(c *gin.Context) {
		assert.Equal(t, "Bearer tok", c.GetHeader("Authorization"))
		assert.Equal(t, "20", c.Query("limit"))
		response.Success(c, gin.H{"messages": []reconciler.Message{
			{ID: "m2", ChatID: "c1", SenderID: "bob", Content: "hi", CreatedAt: created,
				Sender: reconciler.Sender{ID: "bob", FirstName: "Bob", LastName: "Test"}},
			{ID: "m1", ChatID: "c1", SenderID: "bob", Content: "hello", CreatedAt: created},
		}})
	})

	f := NewHTTPFetcher(config.APIConfig{BaseURL: srv.URL + "/", Token: "tok", Timeout: time.Second})
	msgs, err := f.FetchRecent(t.Context(), 20)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, "Bob", msgs[0].Sender.FirstName)
	assert.True(t, created.Equal(msgs[0].CreatedAt))
}

func TestFetchRecent_UnauthorizedIsAuthFailure(t *testing.T) {
	srv := newServer(t, func(c *gin.Context) {
		response.Unauthorized(c, "token expired")
	})

	f := NewHTTPFetcher(config.APIConfig{BaseURL: srv.URL})
	_, err := f.FetchRecent(t.Context(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, reconciler.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "token expired")
}

func TestFetchRecent_ForbiddenIsOrdinaryFailure(t *testing.T) {
	srv := newServer(t, func(c *gin.Context) {
		response.Forbidden(c, "not a participant")
	})

	f := NewHTTPFetcher(config.APIConfig{BaseURL: srv.URL})
	_, err := f.FetchRecent(t.Context(), 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reconciler.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchRecent_ServerErrorIsTransient(t *testing.T) {
	srv := newServer(t, func(c *gin.Context) {
		response.InternalError(c, "db down")
	})

	f := NewHTTPFetcher(config.APIConfig{BaseURL: srv.URL})
	_, err := f.FetchRecent(t.Context(), 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reconciler.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "500")
}

func TestFetchRecent_Unreachable(t *testing.T) {
	srv := newServer(t, func(c *gin.Context) {})
	srv.Close()

	f := NewHTTPFetcher(config.APIConfig{BaseURL: srv.URL, Timeout: time.Second})
	_, err := f.FetchRecent(t.Context(), 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reconciler.ErrUnauthenticated)
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.MessageSent("DIRECT")
		m.SendTimer().ObserveDuration()
		m.BroadcastDropped()
		m.InvitationTransition("ACCEPTED")
		m.InvitationsSwept(3)
		m.CommandError("sendMessage", "FORBIDDEN")
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New("volun-net")
	m.MessageSent("DIRECT")
	m.InvitationsSwept(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `volun_net_chat_messages_sent_total{type="DIRECT"} 1`)
	assert.Contains(t, body, "volun_net_chat_invitations_expired_total 2")
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/hub"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/identity"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/idgen"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/registry"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/repository"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/service"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/testutil"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/jwt"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/middleware"
)

type harness struct {
	router  *gin.Engine
	server  *httptest.Server
	manager *jwt.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, "alice", "bob", "carol", "eve")
	testutil.SeedChat(t, db, "c1", domain.ChatTypeGroup, "alice", "bob")

	manager, err := jwt.NewManager(time.Hour, 24*time.Hour, "test")
	require.NoError(t, err)

	repo := repository.NewGormRepository(db)
	h := hub.NewHub(nil)

	snowflake, err := idgen.NewSnowflake(1, 1704067200000)
	require.NoError(t, err)

	reg := registry.NewLocalRegistry(nil)
	auth := service.NewMembershipAuthority(repo)
	pipeline := service.NewMessagePipeline(repo, auth, h, snowflake, nil, nil, nil)
	invitations := service.NewInvitationService(repo, repo, auth, reg, idgen.NewULID(), nil, time.Hour, 24*time.Hour, nil)
	typing := service.NewTypingBroadcaster(h, time.Minute)
	queries := service.NewQueryService(repo, auth, idgen.NewULID(), nil, 0)
	chat := service.NewChatService(h, reg, auth, pipeline, invitations, typing)
	require.NoError(t, chat.Start(t.Context()))
	t.Cleanup(func() { chat.Stop() })

	router := gin.New()
	NewHandler(queries, pipeline, invitations, service.NewSessionService(reg, manager), middleware.NewAuthMiddleware(manager)).RegisterRoutes(router)

	wsRouter := mux.NewRouter()
	ws := NewWSHandler(h, chat, identity.NewJWTVerifier(manager), nil, config.WebSocketConfig{
		PingInterval:   time.Minute,
		PongWait:       time.Minute,
		WriteWait:      time.Second,
		MaxMessageSize: 16384,
		SendBuffer:     32,
	})
	ws.RegisterRoutes(wsRouter)
	wsRouter.NotFoundHandler = router
	server := httptest.NewServer(wsRouter)
	t.Cleanup(server.Close)

	return &harness{router: router, server: server, manager: manager}
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	access, _, _, _, err := h.manager.GenerateTokenPair(jwt.Subject{UserID: userID, Username: userID})
	require.NoError(t, err)
	return access
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (h *harness) do(t *testing.T, method, path, userID string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(t, userID))
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestRecentMessages_Endpoint(t *testing.T) {
	h := newHarness(t)

	for _, content := range []string{"first", "second"} {
		code, _ := h.do(t, http.MethodPost, "/api/v1/chats/c1/messages", "alice", map[string]string{"content": content})
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := h.do(t, http.MethodGet, "/api/v1/chats/messages/recent?limit=10", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var data struct {
		Messages []domain.MessagePayload `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Messages, 2)
	assert.Equal(t, "second", data.Messages[0].Content)
	assert.Equal(t, "first", data.Messages[1].Content)
	assert.Equal(t, "alice", data.Messages[0].Sender.ID)

	code, env = h.do(t, http.MethodGet, "/api/v1/chats/messages/recent", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
}

func TestHistory_ForbiddenForOutsider(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(t, http.MethodGet, "/api/v1/chats/c1/messages", "eve", nil)
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, _ = h.do(t, http.MethodPost, "/api/v1/chats/c1/messages", "eve", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestInvitationFlow_Endpoints(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(t, http.MethodPost, "/api/v1/chats/c1/invitations", "alice", map[string]string{"inviteeId": "carol"})
	require.Equal(t, http.StatusCreated, code)
	var inv domain.InvitationPayload
	require.NoError(t, json.Unmarshal(env.Data, &inv))

	code, env = h.do(t, http.MethodGet, "/api/v1/invitations", "carol", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), inv.ID)

	path := "/api/v1/invitations/" + inv.ID + "/respond"
	code, _ = h.do(t, http.MethodPost, path, "carol", map[string]string{"response": "ACCEPTED"})
	require.Equal(t, http.StatusOK, code)

	code, env = h.do(t, http.MethodPost, path, "carol", map[string]string{"response": "DECLINED"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	code, _ = h.do(t, http.MethodGet, "/api/v1/chats/c1/messages", "carol", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCreateChat_Endpoint(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(t, http.MethodPost, "/api/v1/chats", "alice", map[string]interface{}{"type": "INDIVIDUAL", "memberIds": []string{"carol"}})
	require.Equal(t, http.StatusCreated, code)

	code, env := h.do(t, http.MethodGet, "/api/v1/chats", "carol", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "INDIVIDUAL")

	code, _ = h.do(t, http.MethodPost, "/api/v1/chats", "alice", map[string]interface{}{"type": "INDIVIDUAL"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func (h *harness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/chat/ws?token=" + h.token(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env domain.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	var data map[string]interface{}
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return env.Type, data
}

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/chat/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_CommandsAndErrors(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, "alice")
	eve := h.dial(t, "eve")

	require.NoError(t, alice.WriteJSON(map[string]interface{}{"type": "ping"}))
	typ, _ := readFrame(t, alice)
	assert.Equal(t, domain.EventPong, typ)

	require.NoError(t, eve.WriteJSON(map[string]interface{}{"type": "joinRoom", "data": map[string]string{"chatId": "c1"}}))
	typ, data := readFrame(t, eve)
	assert.Equal(t, domain.EventError, typ)
	assert.Equal(t, domain.ErrCodeForbidden, data["code"])
	assert.Equal(t, "c1", data["chatId"])

	require.NoError(t, eve.WriteJSON(map[string]interface{}{
		"type": "sendMessage",
		"data": map[string]string{"chatId": "c1", "content": "sneaky", "clientMessageId": "tmp-9"},
	}))
	typ, data = readFrame(t, eve)
	assert.Equal(t, domain.EventError, typ)
	assert.Equal(t, "tmp-9", data["clientMessageId"])
	assert.Equal(t, "sneaky", data["content"])

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	typ, data = readFrame(t, alice)
	assert.Equal(t, domain.EventError, typ)
	assert.Equal(t, domain.ErrCodeBadRequest, data["code"])

	require.NoError(t, alice.WriteJSON(map[string]interface{}{"type": "joinRoom", "data": map[string]string{"chatId": "c1"}}))
	typ, _ = readFrame(t, alice)
	assert.Equal(t, domain.EventRoomJoined, typ)

	require.NoError(t, alice.WriteJSON(map[string]interface{}{
		"type": "sendMessage",
		"data": map[string]string{"chatId": "c1", "content": "hello", "clientMessageId": "tmp-1"},
	}))
	typ, data = readFrame(t, alice)
	assert.Equal(t, domain.EventMessage, typ)
	assert.Equal(t, "hello", data["content"])
	assert.Equal(t, "tmp-1", data["clientMessageId"])
}

func TestLogout_EndsSessionAndRevokesTokens(t *testing.T) {
	h := newHarness(t)
	stale := h.token(t, "alice")
	alice := h.dial(t, "alice")

	// A pong proves the connection is registered.
	require.NoError(t, alice.WriteJSON(map[string]interface{}{"type": "ping"}))
	typ, _ := readFrame(t, alice)
	require.Equal(t, domain.EventPong, typ)

	code, env := h.do(t, http.MethodPost, "/api/v1/sessions/logout", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var out struct {
		ConnectionClosed bool `json:"connectionClosed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.True(t, out.ConnectionClosed)

	typ, data := readFrame(t, alice)
	assert.Equal(t, domain.EventError, typ)
	assert.Equal(t, domain.ErrCodeSessionEnded, data["code"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer "+stale)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/chat/ws?token=" + stale
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, _ = h.do(t, http.MethodGet, "/api/v1/chats", "bob", nil)
	assert.Equal(t, http.StatusOK, code)
}

package ws_test

import (
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"maternacare/internal/notify"
	"maternacare/internal/presence"
	"maternacare/internal/security"
	"maternacare/internal/service"
	"maternacare/internal/store/sqlite"
	"maternacare/internal/ws"
)

type frame struct {
	Event   string          `json:"event"`
	ID      string          `json:"id"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

type gatewayFixture struct {
	srv    *httptest.Server
	db     *sql.DB
	tokens *security.TokenService
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "gw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))

	_, err = db.Exec(`
		INSERT INTO users (id, name, email, is_active, is_deleted, is_verified)
		VALUES ('u1', 'Alice', 'alice@example.com', 1, 0, 1),
		       ('u2', 'Bianca', 'bianca@example.com', 1, 0, 1)
	`)
	require.NoError(t, err)

	userRepo := sqlite.NewUserRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	log := zap.NewNop()
	tokens := security.NewTokenService("test-secret")
	convSvc := service.NewConversationService(convRepo)
	handler := ws.MakeHandler(
		log,
		ws.NewHub(),
		presence.NewMemoryRegistry(),
		tokens,
		userRepo,
		convSvc,
		service.NewMessageService(convSvc, msgRepo),
		service.NewChatListService(convRepo, msgRepo),
		notify.NewLogDispatcher(log),
		nil,
	)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &gatewayFixture{srv: srv, db: db, tokens: tokens}
}

func (f *gatewayFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := f.tokens.CreateWithTTL(userID, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntilReply collects broadcast frames until the reply with the given
// correlation id arrives.
func readUntilReply(t *testing.T, conn *websocket.Conn, id string) ([]frame, frame) {
	t.Helper()
	var events []frame
	for {
		f := readFrame(t, conn)
		if f.Event == "reply" && f.ID == id {
			return events, f
		}
		events = append(events, f)
	}
}

func send(t *testing.T, conn *websocket.Conn, event, id string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ws.Envelope{Event: event, ID: id, Payload: raw}))
}

func eventNames(events []frame) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Event
	}
	return names
}

func TestRejectsMissingAndInvalidToken(t *testing.T) {
	f := newGatewayFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=not-a-jwt", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestConnectBroadcastsPresence(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")

	hello := readFrame(t, conn)
	assert.Equal(t, "onlineUser", hello.Event)

	var online []string
	require.NoError(t, json.Unmarshal(hello.Payload, &online))
	assert.Contains(t, online, "u1")
}

func TestSendMessageFlow(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn) // presence

	// Missing receiver is rejected without mutation.
	send(t, conn, "send-message", "r0", map[string]any{"text": "hi"})
	events, reply := readUntilReply(t, conn, "r0")
	require.NotNil(t, reply.Success)
	assert.False(t, *reply.Success)
	assert.Equal(t, "receiverId is required", reply.Message)
	assert.Equal(t, []string{"io-error"}, eventNames(events))

	// Messaging yourself is rejected without creating a conversation.
	send(t, conn, "send-message", "r-self", map[string]any{"receiverId": "u1", "text": "hi me"})
	events, reply = readUntilReply(t, conn, "r-self")
	require.NotNil(t, reply.Success)
	assert.False(t, *reply.Success)
	assert.Equal(t, "cannot open a conversation with yourself", reply.Message)
	assert.Equal(t, []string{"io-error"}, eventNames(events))

	var selfCount int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&selfCount))
	assert.Zero(t, selfCount)

	send(t, conn, "send-message", "r1", map[string]any{"receiverId": "u2", "text": "hi"})
	events, reply = readUntilReply(t, conn, "r1")
	require.NotNil(t, reply.Success)
	require.True(t, *reply.Success, "unexpected failure: %s", reply.Message)
	assert.Equal(t, []string{"new-message::u1", "message::u1", "chat-list::u1"}, eventNames(events))

	var msg struct {
		ID           string `json:"id"`
		Conversation string `json:"conversation"`
		Sender       string `json:"sender"`
		Receiver     string `json:"receiver"`
		Text         string `json:"text"`
		Seen         bool   `json:"seen"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &msg))
	assert.Equal(t, "u1", msg.Sender)
	assert.Equal(t, "u2", msg.Receiver)
	assert.Equal(t, "hi", msg.Text)
	assert.False(t, msg.Seen)
	require.NotEmpty(t, msg.Conversation)

	// A second message reuses the conversation.
	send(t, conn, "send-message", "r2", map[string]any{"receiverId": "u2", "text": "are you there?"})
	_, reply = readUntilReply(t, conn, "r2")
	require.True(t, *reply.Success)

	var convCount int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&convCount))
	assert.Equal(t, 1, convCount)
}

func TestMarkSeenFlow(t *testing.T) {
	f := newGatewayFixture(t)
	sender := f.dial(t, "u1")
	readFrame(t, sender) // presence

	send(t, sender, "send-message", "s1", map[string]any{"receiverId": "u2", "text": "one"})
	_, reply := readUntilReply(t, sender, "s1")
	require.True(t, *reply.Success)
	send(t, sender, "send-message", "s2", map[string]any{"receiverId": "u2", "text": "two"})
	_, reply = readUntilReply(t, sender, "s2")
	require.True(t, *reply.Success)

	var msg struct {
		Conversation string `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &msg))

	receiver := f.dial(t, "u2")
	readFrame(t, receiver) // presence

	type summary struct {
		ChatID             string `json:"chatId"`
		UnreadMessageCount int    `json:"unreadMessageCount"`
	}

	send(t, receiver, "list-my-conversations", "l1", map[string]any{})
	_, reply = readUntilReply(t, receiver, "l1")
	require.True(t, *reply.Success)
	var summaries []summary
	require.NoError(t, json.Unmarshal(reply.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].UnreadMessageCount)

	send(t, receiver, "mark-seen", "m1", map[string]any{"conversationId": msg.Conversation})
	events, reply := readUntilReply(t, receiver, "m1")
	require.True(t, *reply.Success)
	assert.Contains(t, eventNames(events), "chat-list::u2")

	send(t, receiver, "list-my-conversations", "l2", map[string]any{})
	_, reply = readUntilReply(t, receiver, "l2")
	require.True(t, *reply.Success)
	require.NoError(t, json.Unmarshal(reply.Data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].UnreadMessageCount)

	// Unknown conversation fails without mutation.
	send(t, receiver, "mark-seen", "m2", map[string]any{"conversationId": "nope"})
	_, reply = readUntilReply(t, receiver, "m2")
	assert.False(t, *reply.Success)
	assert.Equal(t, "chat id is not valid", reply.Message)
}

func TestOpenConversation(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn) // presence

	send(t, conn, "open-conversation", "o1", map[string]any{"receiverId": "ghost"})
	_, reply := readUntilReply(t, conn, "o1")
	assert.False(t, *reply.Success)
	assert.Equal(t, "user is not found!", reply.Message)

	send(t, conn, "send-message", "s1", map[string]any{"receiverId": "u2", "text": "hello"})
	_, reply = readUntilReply(t, conn, "s1")
	require.True(t, *reply.Success)

	send(t, conn, "open-conversation", "o2", map[string]any{"receiverId": "u2"})
	events, reply := readUntilReply(t, conn, "o2")
	require.True(t, *reply.Success)
	assert.Contains(t, eventNames(events), "message::u1")

	var history []json.RawMessage
	require.NoError(t, json.Unmarshal(reply.Data, &history))
	assert.Len(t, history, 1)
}

func TestDisconnectRemovesPresence(t *testing.T) {
	f := newGatewayFixture(t)
	watcher := f.dial(t, "u1")
	readFrame(t, watcher) // own presence

	second := f.dial(t, "u2")
	readFrame(t, second)

	joined := readFrame(t, watcher)
	require.Equal(t, "onlineUser", joined.Event)
	var online []string
	require.NoError(t, json.Unmarshal(joined.Payload, &online))
	assert.Contains(t, online, "u2")

	require.NoError(t, second.Close())

	left := readFrame(t, watcher)
	require.Equal(t, "onlineUser", left.Event)
	require.NoError(t, json.Unmarshal(left.Payload, &online))
	assert.NotContains(t, online, "u2")
	assert.Contains(t, online, "u1")
}

func TestCheck(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn) // presence

	send(t, conn, "check", "c1", map[string]any{})
	_, reply := readUntilReply(t, conn, "c1")
	require.NotNil(t, reply.Success)
	assert.True(t, *reply.Success)

	send(t, conn, "no-such-event", "c2", map[string]any{})
	_, reply = readUntilReply(t, conn, "c2")
	assert.False(t, *reply.Success)
	assert.Equal(t, "unknown event", reply.Message)
}

func TestListOnlineUsers(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn) // presence

	send(t, conn, "list-online-users", "q1", map[string]any{})
	_, reply := readUntilReply(t, conn, "q1")
	require.True(t, *reply.Success)

	var users []struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "Alice", users[0].Name)
}

func TestDeleteConversation(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "u1")
	readFrame(t, conn) // presence

	send(t, conn, "send-message", "s1", map[string]any{"receiverId": "u2", "text": "hi"})
	_, reply := readUntilReply(t, conn, "s1")
	require.True(t, *reply.Success)
	var msg struct {
		Conversation string `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &msg))

	send(t, conn, "delete-conversation", "d1", map[string]any{"conversationId": msg.Conversation})
	_, reply = readUntilReply(t, conn, "d1")
	require.True(t, *reply.Success)

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&n))
	assert.Zero(t, n)
}

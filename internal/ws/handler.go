package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"maternacare/internal/domain"
	"maternacare/internal/notify"
	"maternacare/internal/presence"
	"maternacare/internal/security"
	"maternacare/internal/service"
)

// gateway binds one process's connection handling to its collaborators.
type gateway struct {
	log      *zap.Logger
	hub      *Hub
	presence presence.Registry
	tokens   *security.TokenService
	users    domain.UserRepository
	convs    *service.ConversationService
	msgs     *service.MessageService
	chats    *service.ChatListService
	notifier notify.Dispatcher
}

// MakeHandler returns the HTTP handler for the /ws endpoint.
// Authenticates via bearer token (query param, Authorization header or
// Sec-WebSocket-Protocol), then dispatches events:
//   - check                 -> liveness ack
//   - list-online-users     -> presence snapshot resolved against the user store
//   - open-conversation     -> full ordered history with the receiver
//   - list-my-conversations -> chat summary list for the caller
//   - send-message          -> append + broadcast message, history and chat lists
//   - mark-seen             -> bulk seen flip + chat list broadcast
//   - delete-conversation   -> hard delete of the conversation
func MakeHandler(
	log *zap.Logger,
	hub *Hub,
	reg presence.Registry,
	tokens *security.TokenService,
	users domain.UserRepository,
	convs *service.ConversationService,
	msgs *service.MessageService,
	chats *service.ChatListService,
	notifier notify.Dispatcher,
	allowedOrigins []string,
) http.HandlerFunc {
	g := &gateway{
		log:      log,
		hub:      hub,
		presence: reg,
		tokens:   tokens,
		users:    users,
		convs:    convs,
		msgs:     msgs,
		chats:    chats,
		notifier: notifier,
	}

	upgrader := websocket.Upgrader{
		CheckOrigin:  makeCheckOrigin(allowedOrigins),
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr, err := extractToken(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := g.tokens.Parse(tokenStr)
		if err != nil {
			// Do not leak verification internals to the peer.
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		userID, _ := claims["sub"].(string)
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Best-effort account pre-check: failures are logged but do not
		// abort the connection. Literal source behavior, flagged as a
		// known gap in the design notes.
		if err := g.users.CheckAccount(r.Context(), userID); err != nil {
			g.log.Warn("account pre-check failed", zap.String("user", userID), zap.Error(err))
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		conn := newConnection(userID, ws)
		conn.start()

		g.hub.Subscribe(userID, conn)
		if err := g.presence.Add(r.Context(), userID); err != nil {
			g.log.Error("presence add", zap.String("user", userID), zap.Error(err))
		}
		g.broadcastPresence(r.Context())
		g.log.Info("connected", zap.String("user", userID))

		defer func() {
			g.hub.Unsubscribe(userID, conn)
			if err := g.presence.Remove(context.Background(), userID); err != nil {
				g.log.Error("presence remove", zap.String("user", userID), zap.Error(err))
			}
			g.broadcastPresence(context.Background())
			conn.Close(websocket.CloseNormalClosure, "")
			g.log.Info("disconnected", zap.String("user", userID))
		}()

		for {
			env, err := conn.ReadEnvelope()
			if err != nil {
				return
			}
			g.dispatch(r.Context(), conn, env)
		}
	}
}

func (g *gateway) dispatch(ctx context.Context, conn *connection, env *Envelope) {
	var res Result
	switch env.Event {
	case "check":
		res = Result{Success: true}
	case "list-online-users":
		res = g.handleListOnlineUsers(ctx)
	case "open-conversation":
		res = g.handleOpenConversation(ctx, conn.userID, env.Payload)
	case "list-my-conversations":
		res = g.handleListMyConversations(ctx, conn.userID)
	case "send-message":
		res = g.handleSendMessage(ctx, conn.userID, env.Payload)
	case "mark-seen":
		res = g.handleMarkSeen(ctx, conn.userID, env.Payload)
	case "delete-conversation":
		res = g.handleDeleteConversation(ctx, conn.userID, env.Payload)
	default:
		g.log.Warn("unknown event", zap.String("event", env.Event), zap.String("user", conn.userID))
		res = g.failure(errors.New("unknown event"))
	}
	if err := conn.Reply(env.ID, res); err != nil {
		g.log.Warn("reply failed", zap.String("user", conn.userID), zap.Error(err))
	}
}

func (g *gateway) handleListOnlineUsers(ctx context.Context) Result {
	ids, err := g.presence.Snapshot(ctx)
	if err != nil {
		return g.failure(err)
	}
	users, err := g.users.ListByIDs(ctx, ids)
	if err != nil {
		return g.failure(err)
	}
	return Result{Success: true, Data: users}
}

type openConversationRequest struct {
	ReceiverID string `json:"receiverId"`
}

func (g *gateway) handleOpenConversation(ctx context.Context, callerID string, payload json.RawMessage) Result {
	var req openConversationRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ReceiverID == "" {
		return g.failure(errors.New("receiverId is required"))
	}
	receiver, err := g.users.GetByID(ctx, req.ReceiverID)
	if err != nil {
		return g.failure(err)
	}
	if receiver == nil {
		return g.failure(errors.New("user is not found!"))
	}

	history, err := g.msgs.History(ctx, callerID, req.ReceiverID)
	if err != nil {
		return g.failure(err)
	}
	g.hub.Publish(Event{Kind: KindMessageHistory, UserID: callerID, Payload: dataPayload{Data: messages(history)}})
	return Result{Success: true, Data: messages(history)}
}

func (g *gateway) handleListMyConversations(ctx context.Context, callerID string) Result {
	summaries, err := g.chats.Summaries(ctx, callerID)
	if err != nil {
		return g.failure(err)
	}
	g.hub.Publish(Event{Kind: KindChatList, UserID: callerID, Payload: dataPayload{Data: summaries}})
	return Result{Success: true, Message: "Get chat list Successfully", Data: summaries}
}

type sendMessageRequest struct {
	ReceiverID string  `json:"receiverId"`
	Text       *string `json:"text"`
	File       *string `json:"file"`
}

func (g *gateway) handleSendMessage(ctx context.Context, callerID string, payload json.RawMessage) Result {
	var req sendMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ReceiverID == "" {
		return g.failure(errors.New("receiverId is required"))
	}

	msg, err := g.msgs.Send(ctx, service.SendInput{
		SenderID:   callerID,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		File:       req.File,
	})
	if err != nil {
		return g.failure(err)
	}

	// New-message notice to both personal channels.
	g.hub.Publish(Event{Kind: KindNewMessage, UserID: callerID, Payload: msg})
	g.hub.Publish(Event{Kind: KindNewMessage, UserID: req.ReceiverID, Payload: msg})

	// Full-history refresh for both parties. Intentionally a full re-fetch,
	// not a delta; see design notes.
	history, err := g.msgs.History(ctx, callerID, req.ReceiverID)
	if err != nil {
		return g.failure(err)
	}
	g.hub.Publish(Event{Kind: KindMessageHistory, UserID: callerID, Payload: dataPayload{Data: messages(history)}})
	g.hub.Publish(Event{Kind: KindMessageHistory, UserID: req.ReceiverID, Payload: dataPayload{Data: messages(history)}})

	g.refreshChatLists(ctx, callerID, req.ReceiverID)
	g.pushIfOffline(ctx, callerID, req.ReceiverID, msg)

	return Result{Success: true, Data: msg}
}

type markSeenRequest struct {
	ConversationID string `json:"conversationId"`
}

func (g *gateway) handleMarkSeen(ctx context.Context, callerID string, payload json.RawMessage) Result {
	var req markSeenRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ConversationID == "" {
		return g.failure(errors.New("conversationId is required"))
	}

	conv, err := g.msgs.MarkSeen(ctx, req.ConversationID, callerID)
	if err != nil {
		return g.failure(err)
	}

	g.refreshChatLists(ctx, conv.Participants...)
	return Result{Success: true}
}

type deleteConversationRequest struct {
	ConversationID string `json:"conversationId"`
}

func (g *gateway) handleDeleteConversation(ctx context.Context, callerID string, payload json.RawMessage) Result {
	var req deleteConversationRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ConversationID == "" {
		return g.failure(errors.New("conversationId is required"))
	}

	conv, err := g.convs.GetByID(ctx, req.ConversationID)
	if err != nil {
		return g.failure(err)
	}
	if err := g.convs.Delete(ctx, req.ConversationID); err != nil {
		return g.failure(err)
	}

	g.refreshChatLists(ctx, conv.Participants...)
	return Result{Success: true}
}

// refreshChatLists recomputes and broadcasts the chat summary list to each
// user's personal chat-list channel.
func (g *gateway) refreshChatLists(ctx context.Context, userIDs ...string) {
	for _, uid := range userIDs {
		summaries, err := g.chats.Summaries(ctx, uid)
		if err != nil {
			g.log.Error("chat list refresh", zap.String("user", uid), zap.Error(err))
			continue
		}
		g.hub.Publish(Event{Kind: KindChatList, UserID: uid, Payload: dataPayload{Data: summaries}})
	}
}

// pushIfOffline hands the message off to the push sink when the receiver has
// no live connection. Fire-and-forget; failures are only logged.
func (g *gateway) pushIfOffline(ctx context.Context, senderID, receiverID string, msg *domain.Message) {
	online, err := g.presence.Snapshot(ctx)
	if err != nil {
		g.log.Warn("presence snapshot", zap.Error(err))
		return
	}
	for _, id := range online {
		if id == receiverID {
			return
		}
	}
	receiver, err := g.users.GetByID(ctx, receiverID)
	if err != nil || receiver == nil || receiver.PushToken == nil {
		return
	}
	sender, err := g.users.GetByID(ctx, senderID)
	if err != nil || sender == nil {
		return
	}
	body := "You received a file"
	if msg.Text != nil && *msg.Text != "" {
		body = *msg.Text
	}
	if err := g.notifier.Dispatch(ctx, []string{*receiver.PushToken}, notify.Payload{
		Title: sender.Name,
		Body:  body,
	}); err != nil {
		g.log.Warn("push dispatch", zap.String("user", receiverID), zap.Error(err))
	}
}

func (g *gateway) broadcastPresence(ctx context.Context) {
	ids, err := g.presence.Snapshot(ctx)
	if err != nil {
		g.log.Error("presence snapshot", zap.Error(err))
		return
	}
	g.hub.Publish(Event{Kind: KindPresence, Payload: ids})
}

// failure maps an error to the caller-facing result and best-effort
// broadcasts it on io-error. Storage internals are kept opaque.
func (g *gateway) failure(err error) Result {
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound):
		msg = trimSentinel(err.Error())
	case errors.Unwrap(err) == nil:
		// Validation errors constructed at the gateway boundary. Wrapped
		// storage errors stay opaque.
		msg = err.Error()
	}
	g.hub.Publish(Event{Kind: KindError, Payload: Result{Success: false, Message: msg}})
	return Result{Success: false, Message: msg}
}

// trimSentinel strips the sentinel prefix from wrapped errors, leaving the
// human-readable detail ("invalid input: receiverId is required" -> detail).
func trimSentinel(s string) string {
	if i := strings.LastIndex(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}

// messages normalizes a possibly-nil slice so the wire payload is always an
// array, never null.
func messages(ms []*domain.Message) []*domain.Message {
	if ms == nil {
		return []*domain.Message{}
	}
	return ms
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		_, ok := allowed[origin]
		return ok
	}
}

// extractToken pulls the bearer credential from the handshake: token query
// param, Authorization header, or Sec-WebSocket-Protocol.
func extractToken(r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], nil
		}
	}

	return "", domain.ErrUnauthorized
}

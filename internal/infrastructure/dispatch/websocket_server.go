package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
	"tagfall/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ProviderDirectory answers the available-provider query; the poll scheduler
// implements it.
type ProviderDirectory interface {
	AvailableProviders() []domain.AvailableProvider
}

// WebSocketServer owns the realtime channel: it upgrades connections,
// subscribes them to the hub, replies to client requests and pumps hub
// events. The connect sequence is subscribe first, snapshot second, live
// events third, so nothing published between the two is lost.
type WebSocketServer struct {
	hub        *Hub
	messaging  ports.MessagingService
	moderation ports.ModerationService
	presence   ports.PresenceService
	providers  ProviderDirectory

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

type clientRequest struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type snapshotFrame struct {
	Type         string                     `json:"type"`
	Content      []*domain.Content          `json:"content"`
	Moderators   []domain.Moderator         `json:"moderators"`
	BlockedCount int                        `json:"blocked_count"`
	Providers    []domain.AvailableProvider `json:"providers"`
}

type responseFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type errorFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

func NewWebSocketServer(
	hub *Hub,
	messaging ports.MessagingService,
	moderation ports.ModerationService,
	presence ports.PresenceService,
	providers ProviderDirectory,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	return &WebSocketServer{
		hub:          hub,
		messaging:    messaging,
		moderation:   moderation,
		presence:     presence,
		providers:    providers,
		pingInterval: 30 * time.Second,
		pongTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

// SetPingInterval sets the ping cadence for new connections.
func (s *WebSocketServer) SetPingInterval(interval time.Duration) {
	if interval > 0 {
		s.pingInterval = interval
	}
}

// SetPongTimeout sets how long a connection may stay silent before it is
// considered dead.
func (s *WebSocketServer) SetPongTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.pongTimeout = timeout
	}
}

// SetWriteTimeout bounds every write on the connection.
func (s *WebSocketServer) SetWriteTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.writeTimeout = timeout
	}
}

// HandleWebSocket is the gin handler for GET /ws?t=tag1,tag2. A moderator
// identity placed in the gin context by the auth middleware enables the
// mutation request types and presence.
func (s *WebSocketServer) HandleWebSocket(c *gin.Context) {
	tags := splitTags(c.Query("t"))
	if len(tags) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter t is required"})
		return
	}

	moderator, isModerator := moderatorFromContext(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := domain.SessionID(uuid.NewString())
	session := s.hub.Subscribe(sessionID, tags, isModerator)
	session.Moderator = moderator
	defer s.hub.Unsubscribe(sessionID)

	if isModerator {
		s.presence.Join(sessionID, moderator)
		defer s.presence.Leave(sessionID)
	}

	s.logger.Infow("websocket session connected",
		"session_id", sessionID,
		"tags", tags,
		"moderator", isModerator,
	)

	ctx := c.Request.Context()

	// Snapshot after subscribe: an event published in between arrives on the
	// session channel and is rendered idempotently by the client.
	if err := s.sendSnapshot(ctx, conn, session); err != nil {
		s.logger.Warnw("snapshot send failed", "session_id", sessionID, "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	requestChan := make(chan clientRequest, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var req clientRequest
			if err := conn.ReadJSON(&req); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			requestChan <- req
		}
	}()

	for {
		select {
		case event := <-session.Events:
			if err := s.writeJSON(conn, event); err != nil {
				s.logger.Infow("event write failed", "session_id", sessionID, "error", err)
				return
			}

		case req := <-requestChan:
			if err := s.handleRequest(ctx, conn, session, req); err != nil {
				s.writeJSON(conn, errorFrame{Type: "error", RequestID: req.RequestID, Error: err.Error()})
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("ping failed", "session_id", sessionID, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("read failed", "session_id", sessionID, "error", err)
			}
			return

		case <-session.Done():
			return
		}
	}
}

func (s *WebSocketServer) sendSnapshot(ctx context.Context, conn *websocket.Conn, session *Session) error {
	var content []*domain.Content
	for _, tag := range session.Tags {
		items, err := s.messaging.Query(ctx, tag, ports.ContentFilter{Limit: 100})
		if err != nil {
			return err
		}
		content = append(content, items...)
	}

	blockedCount, err := s.moderation.BlockedUserCount(ctx)
	if err != nil {
		return err
	}

	return s.writeJSON(conn, snapshotFrame{
		Type:         "snapshot",
		Content:      content,
		Moderators:   s.presence.Current(),
		BlockedCount: blockedCount,
		Providers:    s.providers.AvailableProviders(),
	})
}

func (s *WebSocketServer) handleRequest(ctx context.Context, conn *websocket.Conn, session *Session, req clientRequest) error {
	switch req.Type {
	case "query":
		return s.handleQuery(ctx, conn, session, req)
	case "setStatus":
		return s.handleSetStatus(ctx, conn, session, req)
	case "blockUser":
		return s.handleBlockUser(ctx, conn, session, req)
	case "addToQueue":
		return s.handleAddToQueue(ctx, conn, session, req)
	case "markQueueItemCompleted":
		return s.handleMarkQueueItemCompleted(ctx, conn, session, req)
	case "getQueueItems":
		return s.handleGetQueueItems(ctx, conn, session, req)
	case "getAvailableProviders":
		return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID, Data: s.providers.AvailableProviders()})
	case "getCurrentModerators":
		return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID, Data: s.presence.Current()})
	default:
		return fmt.Errorf("unknown request type: %s", req.Type)
	}
}

func (s *WebSocketServer) handleQuery(ctx context.Context, conn *websocket.Conn, session *Session, req clientRequest) error {
	var payload struct {
		Tag       string   `json:"tag"`
		Providers []string `json:"providers"`
		States    []string `json:"states"`
		Limit     int      `json:"limit"`
	}
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("invalid query payload: %w", err)
	}

	// Moderation-state filtering is a review surface; viewers get the
	// default public filter regardless of what they ask for.
	filter := ports.ContentFilter{Limit: payload.Limit}
	for _, p := range payload.Providers {
		filter.Providers = append(filter.Providers, domain.ProviderID(p))
	}
	if session.IsModerator {
		for _, raw := range payload.States {
			state, err := parseState(raw)
			if err != nil {
				return err
			}
			filter.States = append(filter.States, state)
		}
	}

	items, err := s.messaging.Query(ctx, payload.Tag, filter)
	if err != nil {
		return err
	}
	return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID, Data: items})
}

func (s *WebSocketServer) handleSetStatus(ctx context.Context, conn *websocket.Conn, session *Session, req clientRequest) error {
	moderator, err := requireModerator(session)
	if err != nil {
		return err
	}

	var payload struct {
		Provider   string `json:"provider"`
		ProviderID string `json:"provider_id"`
		State      string `json:"state"`
	}
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("invalid setStatus payload: %w", err)
	}

	state, err := parseState(payload.State)
	if err != nil {
		return err
	}

	id := domain.ContentID{Provider: domain.ProviderID(payload.Provider), ProviderID: payload.ProviderID}
	if err := s.moderation.SetStatus(ctx, id, state, moderator); err != nil {
		return err
	}
	return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID})
}

func (s *WebSocketServer) handleBlockUser(ctx context.Context, conn *websocket.Conn, session *Session, req clientRequest) error {
	moderator, err := requireModerator(session)
	if err != nil {
		return err
	}

	var payload struct {
		Provider     string     `json:"provider"`
		UserName     string     `json:"user_name"`
		Capabilities string     `json:"capabilities"`
		ExpiresAt    *time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("invalid blockUser payload: %w", err)
	}
	if err := validation.ValidateUserName(payload.UserName); err != nil {
		return err
	}

	capabilities := domain.BlockedUserHidden
	if strings.EqualFold(payload.Capabilities, "moderated") {
		capabilities = domain.BlockedUserModerated
	}

	err = s.moderation.BlockUser(ctx,
		domain.ProviderID(payload.Provider), payload.UserName,
		moderator, payload.ExpiresAt, capabilities,
	)
	if err != nil {
		return err
	}
	return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID})
}

func (s *WebSocketServer) handleAddToQueue(ctx context.Context, conn *websocket.Conn, session *Session, req clientRequest) error {
	if _, err := requireModerator(session); err != nil {
		return err
	}

	var payload struct {
		Provider     string `json:"provider"`
		ProviderID   string `json:"provider_id"`
		SpeakerNotes string `json:"speaker_notes"`
	}
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("invalid addToQueue payload: %w", err)
	}
	if err := validation.ValidateNotes(payload.SpeakerNotes); err != nil {
		return err
	}

	id := domain.ContentID{Provider: domain.ProviderID(payload.Provider), ProviderID: payload.ProviderID}
	if err := s.moderation.AddToQueue(ctx, id, payload.SpeakerNotes); err != nil {
		return err
	}
	return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID})
}

func (s *WebSocketServer) handleMarkQueueItemCompleted(ctx context.Context, conn *websocket.Conn, session *Session, req clientRequest) error {
	if _, err := requireModerator(session); err != nil {
		return err
	}

	var payload struct {
		Provider   string `json:"provider"`
		ProviderID string `json:"provider_id"`
	}
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("invalid markQueueItemCompleted payload: %w", err)
	}

	id := domain.ContentID{Provider: domain.ProviderID(payload.Provider), ProviderID: payload.ProviderID}
	if err := s.moderation.MarkQueueItemCompleted(ctx, id); err != nil {
		return err
	}
	return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID})
}

func (s *WebSocketServer) handleGetQueueItems(ctx context.Context, conn *websocket.Conn, session *Session, req clientRequest) error {
	if _, err := requireModerator(session); err != nil {
		return err
	}

	var payload struct {
		IncludeCompleted bool `json:"include_completed"`
	}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return fmt.Errorf("invalid getQueueItems payload: %w", err)
		}
	}

	items, err := s.moderation.QueueItems(ctx, payload.IncludeCompleted)
	if err != nil {
		return err
	}
	return s.writeJSON(conn, responseFrame{Type: "response", RequestID: req.RequestID, Data: items})
}

func (s *WebSocketServer) writeJSON(conn *websocket.Conn, value any) error {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(value)
}

func requireModerator(session *Session) (domain.ModeratorID, error) {
	if !session.IsModerator {
		return "", fmt.Errorf("moderator role required")
	}
	return session.Moderator.ID, nil
}

func splitTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if t := domain.NormalizeTag(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseState(raw string) (domain.ModerationState, error) {
	switch strings.ToLower(raw) {
	case "pending":
		return domain.ModerationStatePending, nil
	case "approved":
		return domain.ModerationStateApproved, nil
	case "rejected":
		return domain.ModerationStateRejected, nil
	default:
		return domain.ModerationStatePending, fmt.Errorf("unknown moderation state: %s", raw)
	}
}

func moderatorFromContext(c *gin.Context) (domain.Moderator, bool) {
	id, ok := c.Get("moderator_id")
	if !ok {
		return domain.Moderator{}, false
	}
	moderator := domain.Moderator{ID: domain.ModeratorID(fmt.Sprint(id))}
	if name, ok := c.Get("moderator_name"); ok {
		moderator.DisplayName = fmt.Sprint(name)
	}
	if avatar, ok := c.Get("moderator_avatar"); ok {
		moderator.AvatarURI = fmt.Sprint(avatar)
	}
	return moderator, true
}

package providers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/pkg/cache"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const ProviderChatRelay domain.ProviderID = "CHATRELAY"

// ChatRelayConfig configures the push-based chat relay connection.
type ChatRelayConfig struct {
	URL            string
	Channel        string
	Enabled        bool
	PollInterval   time.Duration
	AvatarCacheTTL time.Duration
}

// ChatRelayProvider is a push adapter bridged into the pull contract. A
// background goroutine keeps a websocket open to the relay and buffers
// incoming chat lines; FetchNew removes the lines mentioning the sought tag
// and leaves the rest for other tags' drains. The polling cadence is
// therefore a drain cadence, not a request cadence.
type ChatRelayProvider struct {
	config  ChatRelayConfig
	logger  *zap.SugaredLogger
	avatars *cache.Cache

	mu      sync.Mutex
	pending []chatMessage
	lastErr error

	cancel context.CancelFunc
	done   chan struct{}
}

type chatUser struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	AvatarURI   string `json:"avatar_uri"`
	ProfileURI  string `json:"profile_uri"`
}

type chatMessage struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	User      chatUser  `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatRelayProvider(config ChatRelayConfig, logger *zap.SugaredLogger) *ChatRelayProvider {
	ttl := config.AvatarCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ChatRelayProvider{
		config:  config,
		logger:  logger,
		avatars: cache.New(ttl),
		done:    make(chan struct{}),
	}
}

func (p *ChatRelayProvider) ID() domain.ProviderID { return ProviderChatRelay }
func (p *ChatRelayProvider) DisplayName() string   { return "Chat Relay" }
func (p *ChatRelayProvider) Enabled() bool         { return p.config.Enabled }

func (p *ChatRelayProvider) PollInterval() time.Duration {
	if p.config.PollInterval > 0 {
		return p.config.PollInterval
	}
	return time.Second
}

// Start opens the relay connection and keeps it alive with backoff until
// Stop is called.
func (p *ChatRelayProvider) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.readLoop(ctx)
}

func (p *ChatRelayProvider) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	p.avatars.Close()
}

func (p *ChatRelayProvider) readLoop(ctx context.Context) {
	defer close(p.done)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.config.URL, nil)
		if err != nil {
			p.setErr(err)
			p.logger.Warnw("chat relay dial failed", "url", p.config.URL, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		p.setErr(nil)
		p.logger.Infow("chat relay connected", "url", p.config.URL, "channel", p.config.Channel)

		if p.config.Channel != "" {
			join, _ := json.Marshal(map[string]string{"action": "join", "channel": p.config.Channel})
			if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
				p.setErr(err)
				conn.Close()
				continue
			}
		}

		p.consume(ctx, conn)
		conn.Close()
	}
}

func (p *ChatRelayProvider) consume(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				p.setErr(err)
				p.logger.Warnw("chat relay read failed, reconnecting", "error", err)
			}
			return
		}

		var msg chatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			p.logger.Debugw("chat relay frame skipped", "error", err)
			continue
		}
		p.accept(msg)
	}
}

// accept validates one relay frame and buffers it for the next drain.
func (p *ChatRelayProvider) accept(msg chatMessage) {
	if msg.Text == "" || msg.User.Name == "" {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.ID == "" {
		// Relays without message ids still need a stable identity.
		msg.ID = msg.Timestamp.UTC().Format("20060102150405.000000000") + "-" + strings.ToLower(msg.User.Name)
	}

	// The relay sends the avatar only on a user's first line of a session;
	// remember it so later lines still render one.
	key := strings.ToLower(msg.User.Name)
	if msg.User.AvatarURI != "" {
		p.avatars.Set(key, msg.User.AvatarURI)
	} else if uri, ok := p.avatars.Get(key); ok {
		msg.User.AvatarURI = uri
	}

	p.mu.Lock()
	p.pending = append(p.pending, msg)
	p.mu.Unlock()
}

// pendingRetention bounds how long a buffered line waits for a drain that
// wants it. Each tracked tag drains separately, so a line for another tag
// must survive until that tag's FetchNew; lines no tracked tag ever claims
// expire instead of accumulating.
const pendingRetention = time.Minute

// FetchNew removes the buffered lines mentioning the tag and returns them.
// Lines for other tags stay buffered until their own drain or until they
// expire, matching a chat stream where several tags share one connection.
func (p *ChatRelayProvider) FetchNew(_ context.Context, tag string, _ time.Time) ([]domain.Content, error) {
	p.mu.Lock()
	drained := p.pending
	p.pending = nil
	p.mu.Unlock()

	needle := "#" + domain.NormalizeTag(tag)
	cutoff := time.Now().Add(-pendingRetention)
	items := make([]domain.Content, 0, len(drained))
	var kept []chatMessage
	for _, msg := range drained {
		if !strings.Contains(strings.ToLower(msg.Text), needle) {
			if msg.Timestamp.After(cutoff) {
				kept = append(kept, msg)
			}
			continue
		}
		items = append(items, domain.Content{
			Provider:   ProviderChatRelay,
			ProviderID: msg.ID,
			Author: domain.Author{
				DisplayName:     msg.User.DisplayName,
				UserName:        msg.User.Name,
				ProfileURI:      msg.User.ProfileURI,
				ProfileImageURI: msg.User.AvatarURI,
			},
			Text:          msg.Text,
			Type:          domain.ContentTypeChat,
			Timestamp:     msg.Timestamp,
			HashtagSought: domain.NormalizeTag(tag),
		})
	}

	if len(kept) > 0 {
		p.mu.Lock()
		p.pending = append(kept, p.pending...)
		p.mu.Unlock()
	}
	return items, nil
}

func (p *ChatRelayProvider) Health() domain.ProviderHealth {
	p.mu.Lock()
	defer p.mu.Unlock()

	health := domain.ProviderHealth{
		Provider:  ProviderChatRelay,
		Status:    domain.ProviderStatusHealthy,
		CheckedAt: time.Now(),
	}
	if !p.config.Enabled {
		health.Status = domain.ProviderStatusDisabled
		health.Message = "provider disabled"
	} else if p.lastErr != nil {
		health.Status = domain.ProviderStatusDegraded
		health.Message = p.lastErr.Error()
	}
	return health
}

func (p *ChatRelayProvider) setErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

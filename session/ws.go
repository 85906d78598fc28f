package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ytcr.app/receiver/internal/utils"
	"ytcr.app/receiver/messages"
)

const (
	defaultLoungePath = "/lounge"
	wsWriteTimeout    = 10 * time.Second
	wsSendQueue       = 64
	pairingCodeDigits = 12
)

// ScreenInfo is how the receiver introduces itself to a connecting client.
type ScreenInfo struct {
	Name  string `json:"screenName"`
	App   string `json:"screenApp"`
	Brand string `json:"brand"`
	Model string `json:"model"`
}

// WSOptions configures a WSChannel.
type WSOptions struct {
	Addr   string
	Path   string
	Screen ScreenInfo
	// InboundRate limits inbound frames per second for each client. Zero
	// disables the limit.
	InboundRate  float64
	InboundBurst int
	Logger       zerolog.Logger
}

// WSChannel is a Channel served over a websocket. One client is attached at a
// time; a newer client replaces the older one. It stands in for the real
// lounge transport during development.
type WSChannel struct {
	opts     WSOptions
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener Listener
	srv      *http.Server
	ln       net.Listener
	client   *wsClient
	codes    []string
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewWSChannel returns an unstarted WSChannel.
func NewWSChannel(opts WSOptions) *WSChannel {
	if opts.Path == "" {
		opts.Path = defaultLoungePath
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = 1
	}
	return &WSChannel{opts: opts}
}

// Addr returns the bound listen address, or "" before Begin.
func (c *WSChannel) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln == nil {
		return ""
	}
	return c.ln.Addr().String()
}

// SetListener implements Channel.
func (c *WSChannel) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *WSChannel) currentListener() Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

// Begin implements Channel.
func (c *WSChannel) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", c.opts.Addr)
	if err != nil {
		return fmt.Errorf("ws channel listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(c.opts.Path, c.serveLounge)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	c.srv = srv
	c.ln = ln

	go func() {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		c.opts.Logger.Error().Str("Method", "Begin").Err(err).Msg("server stopped")
		if l := c.currentListener(); l != nil {
			l.OnTerminate(fmt.Errorf("ws channel serve: %w", err))
		}
	}()

	c.opts.Logger.Info().Str("Method", "Begin").Str("Addr", ln.Addr().String()).Str("Path", c.opts.Path).Msg("listening")
	return nil
}

// End implements Channel.
func (c *WSChannel) End(ctx context.Context) error {
	c.mu.Lock()
	srv := c.srv
	client := c.client
	c.srv = nil
	c.ln = nil
	c.client = nil
	c.mu.Unlock()

	if srv == nil {
		return nil
	}
	if client != nil {
		client.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("ws channel shutdown: %w", err)
	}
	return nil
}

// RegisterPairingCode implements Channel. The code is remembered and pushed
// to the attached client.
func (c *WSChannel) RegisterPairingCode(ctx context.Context, code string) error {
	c.mu.Lock()
	if c.srv == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.codes = append(c.codes, code)
	client := c.client
	c.mu.Unlock()

	c.opts.Logger.Info().Str("Method", "RegisterPairingCode").Msg("pairing code registered")
	if client == nil {
		return nil
	}
	return c.write(ctx, client, []messages.Outbound{messages.PairingCode(code)})
}

// PairingCodes returns the codes registered so far.
func (c *WSChannel) PairingCodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.codes...)
}

// Send implements Channel.
func (c *WSChannel) Send(ctx context.Context, msgs []messages.Outbound) error {
	c.mu.Lock()
	started := c.srv != nil
	client := c.client
	c.mu.Unlock()

	if !started {
		return ErrNotStarted
	}
	if client == nil {
		return ErrNoClient
	}
	return c.write(ctx, client, msgs)
}

func (c *WSChannel) write(ctx context.Context, client *wsClient, msgs []messages.Outbound) error {
	b, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("ws channel encode: %w", err)
	}

	select {
	case <-client.closed:
		return websocket.ErrCloseSent
	case <-ctx.Done():
		return ctx.Err()
	case client.send <- b:
		return nil
	}
}

// PairingCodeRequestService implements Channel.
func (c *WSChannel) PairingCodeRequestService() PairingCodeRequestService {
	return localCodes{}
}

type localCodes struct{}

func (localCodes) Request(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return utils.PairingCode(pairingCodeDigits)
}

func (c *WSChannel) serveLounge(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.opts.Logger.Error().Str("Method", "serveLounge").Str("Remote", r.RemoteAddr).Err(err).Msg("upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, wsSendQueue),
		closed: make(chan struct{}),
	}

	c.mu.Lock()
	old := c.client
	c.client = client
	c.mu.Unlock()
	if old != nil {
		c.opts.Logger.Info().Str("Method", "serveLounge").Msg("replacing attached client")
		old.close()
	}

	c.opts.Logger.Info().Str("Method", "serveLounge").Str("Remote", r.RemoteAddr).Msg("client attached")
	go client.writeLoop()

	if hello, err := json.Marshal(c.opts.Screen); err == nil {
		select {
		case client.send <- hello:
		default:
		}
	}

	c.readLoop(client)

	c.mu.Lock()
	if c.client == client {
		c.client = nil
	}
	c.mu.Unlock()
	client.close()
	c.opts.Logger.Info().Str("Method", "serveLounge").Str("Remote", r.RemoteAddr).Msg("client detached")
}

func (c *WSChannel) readLoop(client *wsClient) {
	var limiter *rate.Limiter
	if c.opts.InboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.opts.InboundRate), c.opts.InboundBurst)
	}

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if limiter != nil && !limiter.Allow() {
			c.opts.Logger.Warn().Str("Method", "readLoop").Msg("inbound rate exceeded, frame dropped")
			continue
		}

		batch, err := messages.DecodeBatch(data)
		if err != nil {
			c.opts.Logger.Warn().Str("Method", "readLoop").Int("Decoded", len(batch)).Err(err).Msg("bad frame")
		}
		if len(batch) == 0 {
			continue
		}
		if l := c.currentListener(); l != nil {
			l.OnMessages(batch)
		}
	}
}

func (cl *wsClient) writeLoop() {
	for {
		select {
		case <-cl.closed:
			return
		case b := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cl.close()
				return
			}
		}
	}
}

func (cl *wsClient) close() {
	cl.once.Do(func() {
		close(cl.closed)
		_ = cl.conn.Close()
	})
}

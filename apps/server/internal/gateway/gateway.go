package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jass-lite/apps/server/internal/auth"
	"jass-lite/apps/server/internal/codec"
	"jass-lite/apps/server/internal/lobby"
	"jass-lite/apps/server/internal/session"
	"jass-lite/jass"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 256
	maxMessageSize = 65536
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	authTimeout    = 5 * time.Second
)

// Gateway-level error codes. Rule rejections come from the session itself.
const (
	CodeProtocolError  = "PROTOCOL_ERROR"
	CodeAlreadyInMatch = "ALREADY_IN_MATCH"
	CodeNoActiveMatch  = "NO_ACTIVE_MATCH"
	CodeMatchClosed    = "MATCH_CLOSED"
	CodeInternal       = "INTERNAL_ERROR"
)

// Connection represents one authenticated WebSocket client.
type Connection struct {
	ID       string
	PlayerID uint64
	Username string
	Token    string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway

	lastPing  atomic.Int64
	closeOnce sync.Once
	done      chan struct{}
}

// Gateway manages WebSocket connections and routes frames to the lobby or the
// player's current session.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	userConns   map[uint64]*Connection
	nextConnID  uint64
	seq         atomic.Uint64

	lobby    *lobby.Lobby
	auth     auth.Service
	upgrader websocket.Upgrader
}

type Options struct {
	// AllowedOrigins restricts the Origin header on upgrade; empty allows any.
	AllowedOrigins []string
}

func New(lby *lobby.Lobby, authService auth.Service, opts Options) *Gateway {
	g := &Gateway{
		connections: make(map[string]*Connection),
		userConns:   make(map[uint64]*Connection),
		lobby:       lby,
		auth:        authService,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// RequestToken reads the session token from the query string or a Bearer header.
func RequestToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}

// HandleWebSocket authenticates the request, then upgrades it.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := RequestToken(r)
	if token == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), authTimeout)
	ident, ok := g.auth.ResolveSession(ctx, token)
	cancel()
	if !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	g.mu.RLock()
	_, online := g.userConns[ident.AccountID]
	g.mu.RUnlock()
	if online {
		http.Error(w, "player already connected", http.StatusConflict)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	if _, online := g.userConns[ident.AccountID]; online {
		g.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "player already connected"))
		conn.Close()
		return
	}
	g.nextConnID++
	c := &Connection{
		ID:       fmt.Sprintf("conn_%d", g.nextConnID),
		PlayerID: ident.AccountID,
		Username: ident.Username,
		Token:    token,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		Gateway:  g,
		done:     make(chan struct{}),
	}
	c.lastPing.Store(time.Now().UnixMilli())
	g.connections[c.ID] = c
	g.userConns[c.PlayerID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s (player=%d %s), total: %d", c.ID, c.PlayerID, c.Username, total)

	go c.readPump()
	go c.writePump()
}

// HandleHealth reports liveness plus a few gauges.
func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": g.ConnectionCount(),
		"queued":      g.lobby.QueueLength(),
		"matches":     len(g.lobby.ListSessions()),
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastPing.Store(time.Now().UnixMilli())
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			return
		}
		if !c.handleMessage(message) {
			return
		}
	}
}

// handleMessage dispatches one frame. It returns false when the connection should close.
func (c *Connection) handleMessage(data []byte) bool {
	req, err := codec.DecodeClient(data)
	if err != nil {
		var perr *codec.ProtocolError
		if errors.As(err, &perr) {
			log.Printf("[Gateway] Protocol error from player %d: %s", c.PlayerID, perr.Reason)
			c.sendError(0, CodeProtocolError, perr.Reason)
			return true
		}
		log.Printf("[Gateway] Failed to decode from player %d: %v", c.PlayerID, err)
		c.sendError(0, CodeProtocolError, "invalid message")
		return true
	}

	switch body := req.Body.(type) {
	case codec.SearchGame:
		c.handleSearch(req)
	case codec.CancelSearchGame:
		c.handleCancelSearch(req)
	case codec.Logout:
		c.handleLogout(req)
		return false
	case codec.ChooseGameMode:
		c.handleChooseGameMode(req, body)
	case codec.PlayCard:
		c.handlePlayCard(req, body)
	default:
		log.Printf("[Gateway] Unhandled message %T from player %d", req.Body, c.PlayerID)
	}
	return true
}

func (c *Connection) binding() session.Binding {
	return session.Binding{
		Player: jass.Player{ID: c.PlayerID, Username: c.Username},
		Token:  c.Token,
	}
}

func (c *Connection) handleSearch(req *codec.Request) {
	queued, s, err := c.Gateway.lobby.Search(c.binding(), c.Gateway.broadcastToUser)
	if err != nil {
		if errors.Is(err, lobby.ErrAlreadyInMatch) {
			c.sendError(req.ID, CodeAlreadyInMatch, err.Error())
			return
		}
		log.Printf("[Gateway] Search for player %d failed: %v", c.PlayerID, err)
		c.sendError(req.ID, CodeInternal, "search failed")
		return
	}
	status := &codec.SearchStatus{Searching: s == nil, Queued: queued}
	matchID := ""
	if s != nil {
		matchID = s.ID
	}
	c.reply(matchID, req.ID, status)
}

func (c *Connection) handleCancelSearch(req *codec.Request) {
	c.Gateway.lobby.Cancel(c.PlayerID)
	c.reply("", req.ID, &codec.SearchStatus{Searching: false, Queued: c.Gateway.lobby.QueueLength()})
}

func (c *Connection) handleLogout(req *codec.Request) {
	c.Gateway.lobby.Leave(c.PlayerID)
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	c.Gateway.auth.Logout(ctx, c.Token)
	cancel()
	log.Printf("[Gateway] Player %d logged out", c.PlayerID)
}

func (c *Connection) handleChooseGameMode(req *codec.Request, body codec.ChooseGameMode) {
	s := c.currentSession(req)
	if s == nil {
		return
	}
	err := s.ChooseGameMode(req.ID, c.PlayerID, c.frameToken(req), body.Mode, body.Trump)
	c.afterSessionCall(req, s, err)
}

func (c *Connection) handlePlayCard(req *codec.Request, body codec.PlayCard) {
	s := c.currentSession(req)
	if s == nil {
		return
	}
	err := s.PlayCard(req.ID, c.PlayerID, c.frameToken(req), body.Card)
	c.afterSessionCall(req, s, err)
}

func (c *Connection) currentSession(req *codec.Request) *session.Session {
	s := c.Gateway.lobby.SessionFor(c.PlayerID)
	if s == nil || (req.MatchID != "" && req.MatchID != s.ID) {
		c.sendError(req.ID, CodeNoActiveMatch, "not in this match")
		return nil
	}
	return s
}

// frameToken prefers the token carried in the frame so stale tokens are
// detected by the session; the connection token is the fallback.
func (c *Connection) frameToken(req *codec.Request) string {
	if req.Token != "" {
		return req.Token
	}
	return c.Token
}

func (c *Connection) afterSessionCall(req *codec.Request, s *session.Session, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, session.ErrSessionClosed) {
		c.sendError(req.ID, CodeMatchClosed, "match is over")
		return
	}
	if code, ok := jass.RejectCodeOf(err); ok {
		// already answered by the session
		log.Printf("[Gateway] Player %d request %d in %s rejected: %s", c.PlayerID, req.ID, s.ID, code)
		return
	}
	log.Printf("[Gateway] Player %d request %d in %s failed: %v", c.PlayerID, req.ID, s.ID, err)
}

func (c *Connection) reply(matchID string, replyTo uint64, payload any) {
	env, err := codec.WrapServerEnvelope(matchID, c.Gateway.seq.Add(1), replyTo, payload)
	if err != nil {
		log.Printf("[Gateway] Failed to wrap %T: %v", payload, err)
		return
	}
	data, err := env.Marshal()
	if err != nil {
		log.Printf("[Gateway] Failed to marshal %s: %v", env.Type, err)
		return
	}
	c.enqueue(data)
}

func (c *Connection) sendError(replyTo uint64, code, msg string) {
	c.reply("", replyTo, &codec.ErrorResponse{Code: code, Message: msg})
}

func (c *Connection) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Send buffer full for player %d, dropping frame", c.PlayerID)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	if g.userConns[c.PlayerID] == c {
		delete(g.userConns, c.PlayerID)
	}
	total := len(g.connections)
	g.mu.Unlock()

	// Leave calls into the session, whose actor sends through broadcastToUser.
	g.lobby.Leave(c.PlayerID)
	log.Printf("[Gateway] Client disconnected: %s (player=%d), total: %d", c.ID, c.PlayerID, total)
}

// broadcastToUser is the session Sender. It never blocks.
func (g *Gateway) broadcastToUser(playerID uint64, data []byte) {
	g.mu.RLock()
	c := g.userConns[playerID]
	g.mu.RUnlock()

	if c != nil {
		c.enqueue(data)
	}
}

// ConnectionCount returns the number of live connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// Close drops every connection; their read pumps then leave the lobby.
func (g *Gateway) Close() {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		_ = c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.Conn.Close()
	}
}

package socketio

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"roomchat/internal/chat"
	"roomchat/internal/hub"
	"roomchat/internal/metrics"
	"roomchat/internal/store"
)

const (
	maxPayload   int64         = 1000000
	writeTimeout time.Duration = 10 * time.Second
	pingInterval time.Duration = 25 * time.Second
	pingTimeout  time.Duration = 20 * time.Second
)

var errNotConnected = errors.New("socket not connected")

type Deps struct {
	Relay   *chat.Relay
	Hub     *hub.Hub
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server speaks Engine.IO v4 / Socket.IO v5 over WebSocket only and feeds
// client events into the chat relay.
type Server struct {
	relay   *chat.Relay
	hub     *hub.Hub
	log     *zap.Logger
	metrics *metrics.Metrics

	upgrader websocket.Upgrader
}

func NewServer(deps Deps) *Server {
	return &Server{
		relay:   deps.Relay,
		hub:     deps.Hub,
		log:     deps.Logger,
		metrics: deps.Metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("transport"); t != "" && t != "websocket" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(gin.H{"code": 0, "message": "Transport unknown"})
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(maxPayload)

	c := newConn(ws)
	session := s.relay.Open(c.sid)
	s.hub.Register(c.sid, c)
	s.metrics.Connections.Inc()
	s.log.Info("new websocket connection", zap.String("sid", c.sid), zap.String("remote", r.RemoteAddr))

	defer func() {
		s.hub.Unregister(c.sid)
		session.Disconnect()
		c.close()
		s.metrics.Connections.Dec()
		s.log.Info("disconnect", zap.String("sid", c.sid))
	}()

	open := map[string]any{
		"sid":          c.sid,
		"upgrades":     []string{},
		"pingInterval": pingInterval.Milliseconds(),
		"pingTimeout":  pingTimeout.Milliseconds(),
		"maxPayload":   maxPayload,
	}
	openBytes, _ := json.Marshal(open)
	if err := c.writeText(string(engineOpen) + string(openBytes)); err != nil {
		return
	}

	go c.pingLoop()
	c.readLoop(func(msg string) {
		s.handleMessage(c, session, msg)
	})
}

func (s *Server) handleMessage(c *conn, session *chat.Session, msg string) {
	if msg == "" {
		return
	}

	switch enginePacketType(msg[0]) {
	case enginePong:
		c.markPong()
	case engineMessage:
		s.handleSocketPayload(c, session, msg[1:])
	case engineClose:
		c.close()
	}
}

func (s *Server) handleSocketPayload(c *conn, session *chat.Session, payload string) {
	if payload == "" {
		return
	}

	switch socketPacketType(payload[0]) {
	case socketConnect:
		s.handleConnect(c, payload)
	case socketDisconnect:
		c.close()
	case socketEvent:
		s.handleEvent(c, session, payload)
	}
}

func (s *Server) handleConnect(c *conn, payload string) {
	if c.connected.Load() {
		return
	}

	// Any auth payload after the namespace is accepted and ignored.
	ns, _ := parseOptionalNamespace(payload[1:])
	if ns != defaultNamespace {
		if packet, err := buildSocketConnectErrorPacket(ns, "Invalid namespace"); err == nil {
			_ = c.writeText(string(engineMessage) + packet)
		}
		return
	}

	c.connected.Store(true)
	packet, err := buildSocketConnectPacket(ns, c.sid)
	if err != nil {
		return
	}
	_ = c.writeText(string(engineMessage) + packet)
}

type joinArgs struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type locationArgs struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (s *Server) handleEvent(c *conn, session *chat.Session, payload string) {
	if !c.connected.Load() {
		return
	}

	pkt, err := parseSocketEventPacket(payload)
	if err != nil {
		s.log.Debug("malformed event packet", zap.String("sid", c.sid), zap.Error(err))
		return
	}
	if pkt.Namespace != defaultNamespace {
		return
	}

	switch pkt.Event {
	case "join":
		var body joinArgs
		if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
			s.ack(c, pkt, store.ErrUsernameRoomRequired)
			return
		}
		s.ack(c, pkt, session.Join(body.Username, body.Room))

	case "sendMessage":
		var text string
		if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &text) != nil {
			s.ack(c, pkt, chat.ErrMessageRequired)
			return
		}
		s.ack(c, pkt, session.SendMessage(text))

	case "sendLocation":
		var body locationArgs
		if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil ||
			body.Latitude == nil || body.Longitude == nil {
			s.ack(c, pkt, chat.ErrInvalidLocation)
			return
		}
		s.ack(c, pkt, session.SendLocation(*body.Latitude, *body.Longitude))

	default:
		s.log.Debug("unknown event", zap.String("sid", c.sid), zap.String("event", pkt.Event))
	}
}

// ack answers the client callback: no arguments on success, the error text
// otherwise.
func (s *Server) ack(c *conn, pkt socketEventPacket, err error) {
	if pkt.ID == nil {
		return
	}
	var args []any
	if err != nil {
		args = append(args, err.Error())
	}
	packet, buildErr := buildSocketAckPacket(pkt.Namespace, *pkt.ID, args...)
	if buildErr != nil {
		return
	}
	_ = c.writeText(string(engineMessage) + packet)
}

type conn struct {
	ws *websocket.Conn

	sid string

	connected atomic.Bool

	sendMu sync.Mutex

	pingMu       sync.Mutex
	awaitingPong bool
	pingSentAt   time.Time
	nextPingAt   time.Time

	closed atomic.Bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:         ws,
		sid:        uuid.NewString(),
		nextPingAt: time.Now().Add(pingInterval),
	}
}

// Emit implements hub.Writer.
func (c *conn) Emit(event string, payload any) error {
	if !c.connected.Load() || c.closed.Load() {
		return errNotConnected
	}
	packet, err := buildSocketEventPacket(defaultNamespace, event, payload)
	if err != nil {
		return err
	}
	return c.writeText(string(engineMessage) + packet)
}

func (c *conn) Close() error {
	c.close()
	return nil
}

func (c *conn) close() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.ws.Close()
}

func (c *conn) writeText(msg string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *conn) readLoop(onMessage func(string)) {
	defer c.close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(string(data))
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if c.closed.Load() {
			return
		}
		now := time.Now()
		c.pingMu.Lock()
		awaiting := c.awaitingPong
		pingSentAt := c.pingSentAt
		nextPingAt := c.nextPingAt
		if awaiting && now.Sub(pingSentAt) > pingTimeout {
			c.pingMu.Unlock()
			c.close()
			return
		}
		if !awaiting && !now.Before(nextPingAt) {
			c.awaitingPong = true
			c.pingSentAt = now
			c.nextPingAt = now.Add(pingInterval)
			c.pingMu.Unlock()
			_ = c.writeText(string(enginePing))
			continue
		}
		c.pingMu.Unlock()
	}
}

func (c *conn) markPong() {
	c.pingMu.Lock()
	c.awaitingPong = false
	c.pingMu.Unlock()
}

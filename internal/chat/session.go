package chat

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"roomchat/internal/model"
)

type State int

const (
	StateUnjoined State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// blockedMarker is rejected wherever it appears in a message, case-sensitively.
const blockedMarker = "NULL"

// Target region for location classification (lat/lon degrees, inclusive).
const (
	regionMinLat = 18.0
	regionMaxLat = 54.0
	regionMinLon = 73.0
	regionMaxLon = 135.0
)

// Session is the protocol state of one connection. Its methods are safe for
// concurrent use and are applied in call order.
type Session struct {
	relay *Relay
	id    string

	mu    sync.Mutex
	state State
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Join(username, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.relay
	switch s.state {
	case StateJoined:
		return r.reject("join", ErrAlreadyJoined)
	case StateClosed:
		return r.reject("join", ErrSessionClosed)
	}

	p, view, err := r.directory.Join(s.id, username, room)
	if err != nil {
		r.log.Debug("join rejected", zap.String("connection_id", s.id), zap.Error(err))
		return r.reject("join", err)
	}
	s.state = StateJoined
	r.metrics.Joins.Inc()
	r.metrics.Participants.Inc()
	r.log.Info("join",
		zap.String("connection_id", s.id),
		zap.String("username", p.Username),
		zap.String("room", p.Room),
		zap.Int("members", len(view.Connections)))

	r.router.deliver([]string{s.id}, EventMessage, r.newMessage(AdminName, "Welcome!"), "")
	r.router.deliver(view.Connections, EventMessage, r.newMessage(AdminName, p.Username+" has joined!"), s.id)
	r.router.deliver(view.Connections, EventRoomData, model.RoomData{Room: view.Room, Users: view.Users}, "")
	return nil
}

func (s *Session) SendMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.relay
	if s.state != StateJoined {
		return r.reject("sendMessage", ErrNotJoined)
	}
	if strings.TrimSpace(text) == "" {
		return r.reject("sendMessage", ErrMessageRequired)
	}
	if r.filter != nil && r.filter.IsProfane(text) {
		return r.reject("sendMessage", ErrProfanity)
	}
	if strings.Contains(text, blockedMarker) {
		return r.reject("sendMessage", ErrBlockedContent)
	}

	p, view, ok := r.directory.Resolve(s.id)
	if !ok {
		return r.reject("sendMessage", ErrNotJoined)
	}
	r.metrics.Messages.Inc()
	r.log.Debug("send message", zap.String("connection_id", s.id), zap.String("room", p.Room))

	r.router.deliver(view.Connections, EventMessage, r.newMessage(p.Username, text), "")
	return nil
}

func (s *Session) SendLocation(latitude, longitude float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.relay
	if s.state != StateJoined {
		return r.reject("sendLocation", ErrNotJoined)
	}
	if !validCoordinate(latitude, 90) || !validCoordinate(longitude, 180) {
		return r.reject("sendLocation", ErrInvalidLocation)
	}

	p, view, ok := r.directory.Resolve(s.id)
	if !ok {
		return r.reject("sendLocation", ErrNotJoined)
	}

	region := "outside"
	if InRegion(latitude, longitude) {
		region = "inside"
	}
	r.metrics.Locations.WithLabelValues(region).Inc()
	r.log.Info("send location",
		zap.String("username", p.Username),
		zap.Float64("latitude", latitude),
		zap.Float64("longitude", longitude),
		zap.String("region", region))

	msg := model.LocationMessage{
		Username:  p.Username,
		URL:       MapURL(latitude, longitude),
		CreatedAt: r.now().UnixMilli(),
	}
	r.router.deliver(view.Connections, EventLocationMessage, msg, "")
	return nil
}

// Disconnect ends the session. It is safe to call more than once.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.relay
	prev := s.state
	s.state = StateClosed
	if prev != StateJoined {
		return
	}

	p, view, ok := r.directory.Leave(s.id)
	if !ok {
		return
	}
	r.metrics.Leaves.Inc()
	r.metrics.Participants.Dec()
	r.log.Info("leave",
		zap.String("connection_id", s.id),
		zap.String("username", p.Username),
		zap.String("room", p.Room))

	r.router.deliver(view.Connections, EventMessage, r.newMessage(AdminName, p.Username+" has left!"), "")
	r.router.deliver(view.Connections, EventRoomData, model.RoomData{Room: view.Room, Users: view.Users}, "")
}

// InRegion reports whether the coordinate falls inside the target region.
func InRegion(latitude, longitude float64) bool {
	return latitude >= regionMinLat && latitude <= regionMaxLat &&
		longitude >= regionMinLon && longitude <= regionMaxLon
}

// MapURL links to the coordinate on Google Maps.
func MapURL(latitude, longitude float64) string {
	return "https://www.google.com/maps?q=" +
		strconv.FormatFloat(latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(longitude, 'f', -1, 64)
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}

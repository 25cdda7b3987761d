// Package chat implements the per-connection session protocol of the room
// relay: joining a room, sending messages and locations, and leaving.
package chat

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"roomchat/internal/metrics"
	"roomchat/internal/model"
	"roomchat/internal/store"
)

const (
	EventMessage         = "message"
	EventLocationMessage = "locationMessage"
	EventRoomData        = "roomData"

	// AdminName is the sender shown on system notices.
	AdminName = "Admin"
)

var (
	ErrNotJoined       = errors.New("You must join a room first")
	ErrAlreadyJoined   = store.ErrAlreadyJoined
	ErrSessionClosed   = errors.New("Connection is closed")
	ErrMessageRequired = errors.New("Message is required")
	ErrProfanity       = errors.New("Profanity is not allowed!")
	ErrBlockedContent  = errors.New("NULL is not allowed!")
	ErrInvalidLocation = errors.New("Location is invalid")
)

// Classifier decides whether a chat message is profane.
type Classifier interface {
	IsProfane(text string) bool
}

type Deps struct {
	Directory *store.Directory
	Emitter   Emitter
	Filter    Classifier
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Relay owns the shared directory and hands out one Session per connection.
type Relay struct {
	directory *store.Directory
	filter    Classifier
	router    *Router
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewRelay(deps Deps) *Relay {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	dir := deps.Directory
	if dir == nil {
		dir = store.New()
	}
	return &Relay{
		directory: dir,
		filter:    deps.Filter,
		router:    NewRouter(dir, deps.Emitter, log, m),
		log:       log,
		metrics:   m,
		now:       now,
	}
}

func (r *Relay) Directory() *store.Directory { return r.directory }

// Router is the by-room entry point for callers outside the session
// protocol, such as server-side notices.
func (r *Relay) Router() *Router { return r.router }

// Open starts the session of a newly accepted connection.
func (r *Relay) Open(connectionID string) *Session {
	return &Session{relay: r, id: connectionID, state: StateUnjoined}
}

func (r *Relay) newMessage(username, text string) model.Message {
	return model.Message{Username: username, Text: text, CreatedAt: r.now().UnixMilli()}
}

func (r *Relay) reject(op string, err error) error {
	r.metrics.Rejected.WithLabelValues(op, reasonFor(err)).Inc()
	return err
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, store.ErrUsernameRoomRequired):
		return "required"
	case errors.Is(err, store.ErrUsernameInUse):
		return "duplicate"
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	case errors.Is(err, ErrMessageRequired):
		return "empty"
	case errors.Is(err, ErrProfanity):
		return "profanity"
	case errors.Is(err, ErrBlockedContent):
		return "blocked"
	case errors.Is(err, ErrInvalidLocation):
		return "invalid_location"
	default:
		return "other"
	}
}

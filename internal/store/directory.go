package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"roomchat/internal/model"
)

var (
	ErrUsernameRoomRequired = errors.New("Username and room are required")
	ErrUsernameInUse        = errors.New("Username is in use")
	ErrAlreadyJoined        = errors.New("You have already joined a room")
)

// Directory is the authoritative connection-keyed store of participants.
// Room membership is never stored separately; every room query is computed
// from the participant entries under the same lock.
type Directory struct {
	mu sync.RWMutex

	byConn  map[string]*entry
	joinSeq int64
	now     func() time.Time
}

type entry struct {
	participant model.Participant
	roomKey     string
	nameKey     string
	seq         int64
}

// RoomView is a consistent snapshot of one room taken while the directory
// lock was held.
type RoomView struct {
	Room        string
	Users       []model.User
	Connections []string
}

type Options struct {
	Now func() time.Time
}

func New() *Directory {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Directory {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Directory{
		byConn: make(map[string]*entry),
		now:    now,
	}
}

// NormalizeRoom returns the key under which rooms are compared.
func NormalizeRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (d *Directory) AddUser(connectionID, username, room string) (model.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.addLocked(connectionID, username, room)
	if err != nil {
		return model.Participant{}, err
	}
	return e.participant, nil
}

func (d *Directory) RemoveUser(connectionID string) (model.Participant, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.byConn[connectionID]
	if !ok {
		return model.Participant{}, false
	}
	delete(d.byConn, connectionID)
	return e.participant, true
}

func (d *Directory) GetUser(connectionID string) (model.Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.byConn[connectionID]
	if !ok {
		return model.Participant{}, false
	}
	return e.participant, true
}

// Join adds the participant and returns the resulting room snapshot in one
// atomic step.
func (d *Directory) Join(connectionID, username, room string) (model.Participant, RoomView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.addLocked(connectionID, username, room)
	if err != nil {
		return model.Participant{}, RoomView{}, err
	}
	return e.participant, d.viewLocked(e.roomKey, e.participant.Room), nil
}

// Leave removes the participant and returns the snapshot of the members
// left behind. ok is false when the connection had not joined.
func (d *Directory) Leave(connectionID string) (model.Participant, RoomView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.byConn[connectionID]
	if !ok {
		return model.Participant{}, RoomView{}, false
	}
	delete(d.byConn, connectionID)
	return e.participant, d.viewLocked(e.roomKey, e.participant.Room), true
}

// Resolve looks up the acting participant together with its room snapshot.
func (d *Directory) Resolve(connectionID string) (model.Participant, RoomView, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.byConn[connectionID]
	if !ok {
		return model.Participant{}, RoomView{}, false
	}
	return e.participant, d.viewLocked(e.roomKey, e.participant.Room), true
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byConn)
}

func (d *Directory) addLocked(connectionID, username, room string) (*entry, error) {
	username = strings.TrimSpace(username)
	room = strings.TrimSpace(room)
	if username == "" || room == "" {
		return nil, ErrUsernameRoomRequired
	}
	if _, exists := d.byConn[connectionID]; exists {
		return nil, ErrAlreadyJoined
	}

	roomKey := NormalizeRoom(room)
	nameKey := normalizeUsername(username)
	for _, other := range d.byConn {
		if other.roomKey == roomKey && other.nameKey == nameKey {
			return nil, ErrUsernameInUse
		}
	}

	d.joinSeq++
	e := &entry{
		participant: model.Participant{
			ConnectionID: connectionID,
			Username:     username,
			Room:         room,
			JoinedAt:     d.now().UnixMilli(),
		},
		roomKey: roomKey,
		nameKey: nameKey,
		seq:     d.joinSeq,
	}
	d.byConn[connectionID] = e
	return e, nil
}

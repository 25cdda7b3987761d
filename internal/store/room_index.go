package store

import (
	"sort"

	"github.com/samber/lo"
	"roomchat/internal/model"
)

// UsersInRoom lists the members of room in join order.
func (d *Directory) UsersInRoom(room string) []model.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return toUsers(d.membersLocked(NormalizeRoom(room)))
}

// ConnectionsInRoom lists the connection IDs of room in join order.
func (d *Directory) ConnectionsInRoom(room string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return toConnections(d.membersLocked(NormalizeRoom(room)))
}

// Rooms summarizes every non-empty room, sorted by normalized name. The
// display name is taken from the longest-present member.
func (d *Directory) Rooms() []model.RoomSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	groups := lo.GroupBy(d.sortedLocked(), func(e *entry) string { return e.roomKey })
	keys := lo.Keys(groups)
	sort.Strings(keys)

	return lo.Map(keys, func(key string, _ int) model.RoomSummary {
		members := groups[key]
		return model.RoomSummary{Room: members[0].participant.Room, Users: len(members)}
	})
}

func (d *Directory) viewLocked(roomKey, room string) RoomView {
	members := d.membersLocked(roomKey)
	return RoomView{
		Room:        room,
		Users:       toUsers(members),
		Connections: toConnections(members),
	}
}

func (d *Directory) membersLocked(roomKey string) []*entry {
	return lo.Filter(d.sortedLocked(), func(e *entry, _ int) bool {
		return e.roomKey == roomKey
	})
}

func (d *Directory) sortedLocked() []*entry {
	entries := lo.Values(d.byConn)
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

func toUsers(members []*entry) []model.User {
	return lo.Map(members, func(e *entry, _ int) model.User {
		return model.User{Username: e.participant.Username}
	})
}

func toConnections(members []*entry) []string {
	return lo.Map(members, func(e *entry, _ int) string {
		return e.participant.ConnectionID
	})
}

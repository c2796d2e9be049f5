package dhandha

import (
	"log/slog"
	"sync"
)

// Sessioner is the view of a connection the registry and hub need.
type Sessioner interface {
	ID() string
	Identity() string
	Send(message []byte)
	Close()
}

// PersonalRoom names the room every connection of one identity
// auto-joins at handshake time.
func PersonalRoom(identity string) string {
	return "user_" + identity
}

// TaskRoom names the conversation room of one task.
func TaskRoom(taskID string) string {
	return "task_" + taskID
}

// Registry tracks which sessions are members of which rooms. It is
// owned by one Hub instance; multiple hubs in one process keep
// independent registries. Rooms exist only while they have members.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Sessioner // room name -> session id -> session
	joined map[string]map[string]struct{}  // session id -> room names

	Slogger *slog.Logger
}

func NewRegistry(slogger *slog.Logger) *Registry {
	if slogger == nil {
		slogger = slog.Default()
	}
	return &Registry{
		rooms:   make(map[string]map[string]Sessioner),
		joined:  make(map[string]map[string]struct{}),
		Slogger: slogger,
	}
}

// Join subscribes the session to the named room. Rejoining is a no-op.
func (reg *Registry) Join(room string, s Sessioner) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	members, ok := reg.rooms[room]
	if !ok {
		members = make(map[string]Sessioner)
		reg.rooms[room] = members
	}
	if _, ok := members[s.ID()]; ok {
		return
	}
	members[s.ID()] = s

	if _, ok := reg.joined[s.ID()]; !ok {
		reg.joined[s.ID()] = make(map[string]struct{})
	}
	reg.joined[s.ID()][room] = struct{}{}
	reg.Slogger.Debug("joined room", "room", room, "session", s.ID(), "user", s.Identity())
}

// Leave unsubscribes the session from the named room. Leaving a room
// never joined is a no-op.
func (reg *Registry) Leave(room string, s Sessioner) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.leaveLocked(room, s.ID())
}

func (reg *Registry) leaveLocked(room, sessionID string) {
	members, ok := reg.rooms[room]
	if !ok {
		return
	}
	if _, ok := members[sessionID]; !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(reg.rooms, room)
	}
	if rooms, ok := reg.joined[sessionID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(reg.joined, sessionID)
		}
	}
	reg.Slogger.Debug("left room", "room", room, "session", sessionID)
}

// DropSession releases every membership of the session in one step.
// Called on disconnect; no leave events are emitted.
func (reg *Registry) DropSession(s Sessioner) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms, ok := reg.joined[s.ID()]
	if !ok {
		return
	}
	for room := range rooms {
		members := reg.rooms[room]
		delete(members, s.ID())
		if len(members) == 0 {
			delete(reg.rooms, room)
		}
	}
	delete(reg.joined, s.ID())
	reg.Slogger.Debug("dropped session", "session", s.ID(), "user", s.Identity())
}

// InRoom reports whether the session is currently a member of the room.
func (reg *Registry) InRoom(room string, s Sessioner) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.rooms[room][s.ID()]
	return ok
}

// Fanout delivers the message once to every session currently in any
// of the rooms, excluding the originating session. Sessions in more
// than one of the rooms still receive a single copy. Membership is
// snapshotted under the read lock; a session that disconnects between
// the snapshot and the send simply discards the write.
func (reg *Registry) Fanout(message []byte, except Sessioner, rooms ...string) {
	reg.mu.RLock()
	targets := make(map[string]Sessioner)
	for _, room := range rooms {
		for id, s := range reg.rooms[room] {
			if except != nil && id == except.ID() {
				continue
			}
			targets[id] = s
		}
	}
	reg.mu.RUnlock()

	for _, s := range targets {
		s.Send(message)
	}
}

// Sessions returns every session currently known to the registry.
func (reg *Registry) Sessions() []Sessioner {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	seen := make(map[string]Sessioner)
	for _, members := range reg.rooms {
		for id, s := range members {
			seen[id] = s
		}
	}
	out := make([]Sessioner, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	return out
}

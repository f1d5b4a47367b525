// Package rooms implements the room based broadcast registry.
//
// Connections are kept in one table keyed by ConnID. Rooms and the
// per-connection membership sets only hold ids, so closing a connection is
// a walk over the rooms it joined followed by one table removal.
package rooms

import (
	"encoding/json"
	"sync"

	"enceladus/pkg/state/logger"
)

// Subscriber is a live outbound connection. Send must not block on a slow
// peer.
type Subscriber interface {
	Send(payload []byte) error
}

type ConnID uint64

type Registry struct {
	mu     sync.RWMutex
	nextID ConnID
	conns  map[ConnID]Subscriber
	rooms  map[Room]map[ConnID]struct{}
	joined map[ConnID]map[Room]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[ConnID]Subscriber),
		rooms:  make(map[Room]map[ConnID]struct{}),
		joined: make(map[ConnID]map[Room]struct{}),
	}
}

// Register adds a connection without joining any room.
func (r *Registry) Register(s Subscriber) ConnID {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.conns[id] = s
	r.joined[id] = make(map[Room]struct{})
	r.mu.Unlock()
	connectedClients.Inc()
	return id
}

// Join parses names and adds the connection to every valid room. Invalid
// names are skipped. It returns the rooms actually joined.
func (r *Registry) Join(id ConnID, names []string) []Room {
	parsed := make([]Room, 0, len(names))
	for _, n := range names {
		if room, ok := Parse(n); ok {
			parsed = append(parsed, room)
		} else {
			logger.Debug("ws_join_ignored", "conn", id, "room", n)
		}
	}
	if len(parsed) == 0 {
		return parsed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	mine, ok := r.joined[id]
	if !ok {
		return nil
	}
	for _, room := range parsed {
		members := r.rooms[room]
		if members == nil {
			members = make(map[ConnID]struct{})
			r.rooms[room] = members
		}
		members[id] = struct{}{}
		mine[room] = struct{}{}
	}
	return parsed
}

type joinRequest struct {
	Join []json.RawMessage `json:"join"`
}

// HandleJoin applies a raw {"join": [...]} message. Entries that are not
// strings or not valid room names are dropped; a message that is not a
// join object is ignored entirely.
func (r *Registry) HandleJoin(id ConnID, raw []byte) []Room {
	var req joinRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Debug("ws_message_ignored", "conn", id, "error", err)
		return nil
	}
	names := make([]string, 0, len(req.Join))
	for _, entry := range req.Join {
		var name string
		if err := json.Unmarshal(entry, &name); err != nil {
			continue
		}
		names = append(names, name)
	}
	return r.Join(id, names)
}

// LeaveAll removes the connection from every room it joined and forgets it.
func (r *Registry) LeaveAll(id ConnID) {
	r.mu.Lock()
	mine, ok := r.joined[id]
	if ok {
		for room := range mine {
			members := r.rooms[room]
			delete(members, id)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
		delete(r.joined, id)
		delete(r.conns, id)
	}
	r.mu.Unlock()
	if ok {
		connectedClients.Dec()
	}
}

// Broadcast delivers payload to every current member of room and returns
// the number of successful deliveries. Failures are logged and dropped.
func (r *Registry) Broadcast(room Room, payload []byte) int {
	r.mu.RLock()
	members := r.rooms[room]
	targets := make([]Subscriber, 0, len(members))
	ids := make([]ConnID, 0, len(members))
	for id := range members {
		if s, ok := r.conns[id]; ok {
			targets = append(targets, s)
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for i, s := range targets {
		if err := s.Send(payload); err != nil {
			deliveriesTotal.WithLabelValues("failed").Inc()
			logger.Debug("broadcast_delivery_failed", "conn", ids[i], "room", room.String(), "error", err)
			continue
		}
		deliveriesTotal.WithLabelValues("ok").Inc()
		delivered++
	}
	return delivered
}

// Publish encodes m and broadcasts it to m.Room.
func (r *Registry) Publish(m Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		logger.Error("broadcast_encode_failed", "room", m.Room.String(), "error", err)
		return
	}
	n := r.Broadcast(m.Room, payload)
	logger.Debug("broadcast_sent", "room", m.Room.String(), "action", m.Action, "data_type", m.DataType, "delivered", n)
}

func (r *Registry) MemberCount(room Room) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// ActiveRooms returns the number of rooms with at least one member.
func (r *Registry) ActiveRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Connected returns the number of registered connections.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Rooms lists the rooms a connection has joined.
func (r *Registry) Rooms(id ConnID) []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Room, 0, len(r.joined[id]))
	for room := range r.joined[id] {
		out = append(out, room)
	}
	return out
}

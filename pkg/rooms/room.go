package rooms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type RoomKind uint8

const (
	// KindThread is the per-thread room, named "thread:<id>".
	KindThread RoomKind = iota + 1
	// KindThreadCreate receives thread creations, named "thread".
	KindThreadCreate
	// KindUser receives every user change, named "user".
	KindUser
)

const (
	threadRoomName = "thread"
	userRoomName   = "user"
)

// Room names a broadcast channel. The zero value is not a valid room.
type Room struct {
	Kind     RoomKind
	ThreadID int64
}

func ThreadRoom(id int64) Room { return Room{Kind: KindThread, ThreadID: id} }

var (
	ThreadCreate = Room{Kind: KindThreadCreate}
	Users        = Room{Kind: KindUser}
)

// Parse maps a room name to a Room. Anything outside the grammar
// ("thread:<id>", "thread", "user") is rejected.
func Parse(name string) (Room, bool) {
	switch name {
	case threadRoomName:
		return ThreadCreate, true
	case userRoomName:
		return Users, true
	}
	rest, ok := strings.CutPrefix(name, threadRoomName+":")
	if !ok {
		return Room{}, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id < 0 {
		return Room{}, false
	}
	return ThreadRoom(id), true
}

func (r Room) String() string {
	switch r.Kind {
	case KindThread:
		return threadRoomName + ":" + strconv.FormatInt(r.ThreadID, 10)
	case KindThreadCreate:
		return threadRoomName
	case KindUser:
		return userRoomName
	}
	return ""
}

func (r Room) Valid() bool {
	return r.Kind >= KindThread && r.Kind <= KindUser
}

func (r Room) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid room kind %d", r.Kind)
	}
	return json.Marshal(r.String())
}

func (r *Room) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, ok := Parse(name)
	if !ok {
		return fmt.Errorf("unknown room %q", name)
	}
	*r = parsed
	return nil
}

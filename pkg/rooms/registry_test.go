package rooms

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"enceladus/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	got  [][]byte
	fail bool
}

func (r *recorder) Send(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("gone")
	}
	r.got = append(r.got, p)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		want Room
		ok   bool
	}{
		{"thread:5", ThreadRoom(5), true},
		{"thread", ThreadCreate, true},
		{"user", Users, true},
		{"thread:", Room{}, false},
		{"thread:abc", Room{}, false},
		{"thread:-1", Room{}, false},
		{"Thread:5", Room{}, false},
		{"users", Room{}, false},
		{"", Room{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Parse(c.name)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
			if ok {
				assert.Equal(t, c.name, got.String())
			}
		})
	}
}

func TestFanOutAndCleanup(t *testing.T) {
	reg := NewRegistry()
	h := &recorder{}
	other := &recorder{}
	hid := reg.Register(h)
	oid := reg.Register(other)

	joined := reg.Join(hid, []string{"thread:5", "user"})
	assert.Len(t, joined, 2)
	reg.Join(oid, []string{"thread:5"})
	require.Equal(t, 2, reg.MemberCount(ThreadRoom(5)))

	assert.Equal(t, 2, reg.Broadcast(ThreadRoom(5), []byte("one")))
	assert.Equal(t, 1, h.count())

	reg.LeaveAll(hid)
	assert.Equal(t, 1, reg.MemberCount(ThreadRoom(5)))
	assert.Equal(t, 0, reg.MemberCount(Users))
	assert.Equal(t, 1, reg.Broadcast(ThreadRoom(5), []byte("two")))
	assert.Equal(t, 1, h.count())
	assert.Equal(t, 2, other.count())

	// second close is a no-op
	reg.LeaveAll(hid)
	assert.Equal(t, 1, reg.MemberCount(ThreadRoom(5)))
	assert.Equal(t, 1, reg.Connected())
}

func TestMalformedJoinKeepsValidNames(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register(&recorder{})

	got := reg.HandleJoin(id, []byte(`{"join":["thread:1", 7, "bogus", null, "user"]}`))
	assert.ElementsMatch(t, []Room{ThreadRoom(1), Users}, got)
	assert.ElementsMatch(t, []Room{ThreadRoom(1), Users}, reg.Rooms(id))

	assert.Empty(t, reg.HandleJoin(id, []byte(`not json`)))
	assert.Empty(t, reg.HandleJoin(id, []byte(`{"join":"thread:2"}`)))
	assert.Equal(t, 1, reg.Connected())
}

func TestFailedDeliveryDoesNotStopOthers(t *testing.T) {
	reg := NewRegistry()
	bad := &recorder{fail: true}
	good := &recorder{}
	reg.Join(reg.Register(bad), []string{"thread"})
	reg.Join(reg.Register(good), []string{"thread"})

	assert.Equal(t, 1, reg.Broadcast(ThreadCreate, []byte("x")))
	assert.Equal(t, 1, good.count())
}

func TestJoinUnknownConnection(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Join(42, []string{"user"}))
	assert.Equal(t, 0, reg.MemberCount(Users))
}

func TestPublishEnvelope(t *testing.T) {
	reg := NewRegistry()
	h := &recorder{}
	reg.Join(reg.Register(h), []string{"thread:3"})

	msg, err := Updated(ThreadRoom(3), models.KindSection, 9, models.SectionLock{AssignedAtUTC: 100})
	require.NoError(t, err)
	reg.Publish(msg)
	reg.Publish(Deleted(ThreadRoom(3), models.KindEvent, 4))
	require.Equal(t, 2, h.count())

	assert.JSONEq(t, `{"room":"thread:3","action":"update","data_type":"section",
		"data":{"id":9,"lock_held_by_user_id":null,"lock_assigned_at_utc":100}}`, string(h.got[0]))
	assert.JSONEq(t, `{"room":"thread:3","action":"delete","data_type":"event","data":{"id":4}}`, string(h.got[1]))
}

func TestRoomJSON(t *testing.T) {
	var r Room
	require.NoError(t, json.Unmarshal([]byte(`"thread:12"`), &r))
	assert.Equal(t, ThreadRoom(12), r)
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &r))
	_, err := json.Marshal(Room{})
	assert.Error(t, err)
}

func TestConcurrentChurn(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := reg.Register(&recorder{})
			reg.Join(id, []string{"user", fmt.Sprintf("thread:%d", i%4)})
			reg.Broadcast(Users, []byte("ping"))
			reg.LeaveAll(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Connected())
	assert.Equal(t, 0, reg.MemberCount(Users))
	for i := int64(0); i < 4; i++ {
		assert.Equal(t, 0, reg.MemberCount(ThreadRoom(i)))
	}
	assert.Equal(t, 0, reg.ActiveRooms())
}

// README: Subscriber group fan-out tests.
package stream

import (
	"fmt"
	"testing"

	"ridewire/internal/types"
)

// testClient builds a client with no underlying socket; TrySend and the
// outbound queue work the same either way.
func testClient(id types.ID) *Client {
	return NewClient(nil, id, "customer")
}

func drain(t *testing.T, c *Client) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		select {
		case msg := <-c.Outbound():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestBroadcastReachesGroupMembersOnly(t *testing.T) {
	hub := NewHub()
	a := testClient("a")
	b := testClient("b")
	other := testClient("other")

	hub.Subscribe(a, "ride1")
	hub.Subscribe(b, "ride1")
	hub.Subscribe(other, "ride2")

	if n := hub.Broadcast("ride1", []byte("hello")); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	for _, c := range []*Client{a, b} {
		msgs := drain(t, c)
		if len(msgs) != 1 || string(msgs[0]) != "hello" {
			t.Fatalf("client %s received %q", c.UserID, msgs)
		}
	}
	if msgs := drain(t, other); len(msgs) != 0 {
		t.Fatalf("client outside group received %q", msgs)
	}
}

func TestBroadcastPreservesOrder(t *testing.T) {
	hub := NewHub()
	c := testClient("a")
	hub.Subscribe(c, "ride1")

	for i := 0; i < 5; i++ {
		hub.Broadcast("ride1", []byte(fmt.Sprintf("msg-%d", i)))
	}
	msgs := drain(t, c)
	if len(msgs) != 5 {
		t.Fatalf("received %d messages, want 5", len(msgs))
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("msg-%d", i); string(m) != want {
			t.Fatalf("message %d = %q, want %q", i, m, want)
		}
	}
}

func TestSlowSubscriberIsDroppedWithoutStallingOthers(t *testing.T) {
	hub := NewHub()
	slow := testClient("slow")
	fast := testClient("fast")
	hub.Subscribe(slow, "ride1")
	hub.Subscribe(fast, "ride1")

	// fill the slow client's queue without draining it
	for i := 0; i < sendQueueSize; i++ {
		if !slow.TrySend([]byte("backlog")) {
			t.Fatalf("queue filled early at %d", i)
		}
	}

	n := hub.Broadcast("ride1", []byte("fresh"))
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if got := hub.GroupSize("ride1"); got != 1 {
		t.Fatalf("group size after drop = %d, want 1", got)
	}
	select {
	case <-slow.Done():
	default:
		t.Fatal("slow client was not closed")
	}
	msgs := drain(t, fast)
	if len(msgs) != 1 || string(msgs[0]) != "fresh" {
		t.Fatalf("fast client received %q", msgs)
	}
}

func TestUnsubscribeTearsDownEmptyGroup(t *testing.T) {
	hub := NewHub()
	c := testClient("a")
	hub.Subscribe(c, "ride1")
	if hub.GroupSize("ride1") != 1 {
		t.Fatal("subscribe did not register")
	}

	hub.Unsubscribe(c, "ride1")
	if hub.GroupSize("ride1") != 0 {
		t.Fatal("group not empty after unsubscribe")
	}
	if n := hub.Broadcast("ride1", []byte("x")); n != 0 {
		t.Fatalf("delivered to torn-down group: %d", n)
	}
}

func TestDropDetachesFromAllGroups(t *testing.T) {
	hub := NewHub()
	c := testClient("a")
	stayer := testClient("b")
	hub.Subscribe(c, "ride1")
	hub.Subscribe(c, "ride2")
	hub.Subscribe(stayer, "ride2")

	hub.Drop(c)

	if hub.GroupSize("ride1") != 0 {
		t.Fatal("ride1 group still has the dropped client")
	}
	if hub.GroupSize("ride2") != 1 {
		t.Fatalf("ride2 group size = %d, want 1", hub.GroupSize("ride2"))
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("dropped client was not closed")
	}

	// dropping twice is harmless
	hub.Drop(c)
}

func TestTrySendAfterClose(t *testing.T) {
	c := testClient("a")
	c.Close()
	if c.TrySend([]byte("x")) {
		t.Fatal("TrySend succeeded on a closed client")
	}
}

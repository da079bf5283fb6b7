package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qsrdesk/go-support-backend/internal/domain"
)

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(context.Background(), zerolog.Nop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// fakeClient registers a connection-less client; broadcasts only touch the
// send channel.
func fakeClient() *Client {
	return &Client{send: make(chan []byte, 8)}
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected delivery: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_RoomScopedDelivery(t *testing.T) {
	h := newRunningHub(t)

	viewer := fakeClient()
	bystander := fakeClient()
	h.register <- viewer
	h.register <- bystander
	h.join <- subscription{client: viewer, ticketID: "ticket-1"}
	h.join <- subscription{client: bystander, ticketID: "ticket-2"}

	msg := &domain.TicketMessage{ID: "m1", TicketID: "ticket-1", AuthorType: domain.AuthorAI, Content: "try this"}
	if err := h.PublishNewMessage("ticket-1", msg); err != nil {
		t.Fatalf("PublishNewMessage: %v", err)
	}

	data := recv(t, viewer)
	var event struct {
		Type    string               `json:"type"`
		Payload domain.TicketMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Type != newMessageType {
		t.Fatalf("event type = %q, want %q", event.Type, newMessageType)
	}
	if event.Payload.ID != "m1" || event.Payload.Content != "try this" {
		t.Fatalf("unexpected payload: %+v", event.Payload)
	}

	assertSilent(t, bystander)
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	h := newRunningHub(t)

	c := fakeClient()
	h.register <- c
	h.join <- subscription{client: c, ticketID: "ticket-1"}
	h.leave <- subscription{client: c, ticketID: "ticket-1"}

	msg := &domain.TicketMessage{ID: "m1", TicketID: "ticket-1", Content: "x"}
	if err := h.PublishNewMessage("ticket-1", msg); err != nil {
		t.Fatalf("PublishNewMessage: %v", err)
	}
	assertSilent(t, c)
}

func TestHub_UnregisterRemovesFromRooms(t *testing.T) {
	h := newRunningHub(t)

	c := fakeClient()
	h.register <- c
	h.join <- subscription{client: c, ticketID: "ticket-1"}
	h.unregister <- c

	// The send channel is closed on unregister.
	select {
	case _, open := <-c.send:
		if open {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed after unregister")
	}

	if err := h.PublishNewMessage("ticket-1", &domain.TicketMessage{ID: "m1"}); err != nil {
		t.Fatalf("PublishNewMessage: %v", err)
	}
	if n := h.ClientCount(); n != 0 {
		t.Fatalf("client count = %d, want 0", n)
	}
}

func TestHub_JoinWithoutRegisterIgnored(t *testing.T) {
	h := newRunningHub(t)

	stranger := fakeClient()
	h.join <- subscription{client: stranger, ticketID: "ticket-1"}

	if err := h.PublishNewMessage("ticket-1", &domain.TicketMessage{ID: "m1"}); err != nil {
		t.Fatalf("PublishNewMessage: %v", err)
	}
	assertSilent(t, stranger)
}

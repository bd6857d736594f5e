package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSSEClientMap(t *testing.T) {
	t.Run("success - message delivered to a subscribed client", func(t *testing.T) {
		// arrange
		cm := NewSSEClientMap[string]()
		cm.AddClient("client-1")

		// act
		cm.SendToClients("stage build started")

		// assert
		select {
		case msg := <-cm.GetClient("client-1"):
			assert.Equal(t, "stage build started", msg)
		default:
			t.Fatal("expected a buffered message for the client")
		}
	})

	t.Run("success - stalled client does not block the sender", func(t *testing.T) {
		// arrange
		cm := NewSSEClientMap[string]()
		cm.AddClient("stalled")

		// act
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 2*clientChannelBuffer; i++ {
				cm.SendToClients("output line")
			}
		}()

		// assert
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("sender blocked on a client that never reads")
		}
		cm.RemoveClient("stalled")
	})

	t.Run("success - removing a client during sends does not deadlock", func(t *testing.T) {
		// arrange
		cmap := NewSSEClientMap[int]()
		cmap.AddClient("a")
		cmap.AddClient("b")

		// act
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 2*clientChannelBuffer; i++ {
				cmap.SendToClients(i)
			}
		}()
		cmap.RemoveClient("a")

		// assert
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("sender and client removal deadlocked")
		}
		assert.NotNil(t, cmap.GetClient("b"))
		assert.Nil(t, cmap.GetClient("a"))
	})

	t.Run("success - removing an unknown client is a no-op", func(t *testing.T) {
		// arrange
		cm := NewSSEClientMap[string]()

		// act & assert
		assert.NotPanics(t, func() { cm.RemoveClient("missing") })
	})
}

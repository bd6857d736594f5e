package service

import (
	"sync"
)

// Number of events a client channel buffers before the sender starts
// dropping messages for that client.
const clientChannelBuffer = 64

func NewSSEClientMap[T any]() *SSEClientMap[T] {
	return &SSEClientMap[T]{
		clients: make(map[string]chan T),
	}
}

// SSEClientMap fans run events out to subscribed stream handlers. Sends
// never block, so a stalled client cannot hold up the run worker or a
// concurrent RemoveClient.
type SSEClientMap[T any] struct {
	m       sync.Mutex
	clients map[string]chan T
}

func (cm *SSEClientMap[T]) AddClient(uid string) {
	cm.m.Lock()
	defer cm.m.Unlock()
	cm.clients[uid] = make(chan T, clientChannelBuffer)
}

func (cm *SSEClientMap[T]) RemoveClient(uid string) {
	cm.m.Lock()
	defer cm.m.Unlock()
	if c, ok := cm.clients[uid]; ok {
		close(c)
		delete(cm.clients, uid)
	}
	if len(cm.clients) == 0 {
		cm.clients = make(map[string]chan T)
	}
}

// SendToClients delivers the message to every client with buffer space
// left. Clients whose buffer is full miss the message.
func (cm *SSEClientMap[T]) SendToClients(message T) {
	cm.m.Lock()
	defer cm.m.Unlock()
	for i := range cm.clients {
		select {
		case cm.clients[i] <- message:
		default:
		}
	}
}

func (cm *SSEClientMap[T]) GetClient(uid string) chan T {
	cm.m.Lock()
	defer cm.m.Unlock()
	return cm.clients[uid]
}

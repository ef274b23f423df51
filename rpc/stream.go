package rpc

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/karuha/arenachain/events"
)

// sendBuffer is the per-connection queue depth. A subscriber that falls this
// far behind is dropped rather than allowed to block block production.
const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only public data; cross-origin browser clients are fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventStream fans chain events out to WebSocket subscribers. It registers
// itself on the emitter at construction and pushes every event, JSON-encoded,
// to each connected client.
type EventStream struct {
	mu     sync.Mutex
	conns  map[*streamConn]struct{}
	closed bool
}

type streamConn struct {
	ws   *websocket.Conn
	send chan events.Event
}

// NewEventStream creates an EventStream subscribed to all events on emitter.
func NewEventStream(emitter *events.Emitter) *EventStream {
	es := &EventStream{conns: make(map[*streamConn]struct{})}
	emitter.SubscribeAll(es.broadcast)
	return es
}

// ServeWS upgrades the HTTP request to a WebSocket and streams events until
// the client disconnects.
func (es *EventStream) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[rpc] websocket upgrade: %v", err)
		return
	}

	conn := &streamConn{ws: ws, send: make(chan events.Event, sendBuffer)}

	es.mu.Lock()
	if es.closed {
		es.mu.Unlock()
		_ = ws.Close()
		return
	}
	es.conns[conn] = struct{}{}
	es.mu.Unlock()

	go es.writeLoop(conn)
	es.readLoop(conn)
}

// broadcast queues ev on every subscriber. Slow subscribers are disconnected.
func (es *EventStream) broadcast(ev events.Event) {
	es.mu.Lock()
	defer es.mu.Unlock()
	for conn := range es.conns {
		select {
		case conn.send <- ev:
		default:
			delete(es.conns, conn)
			close(conn.send)
		}
	}
}

// Close disconnects all subscribers. Events emitted afterwards are dropped.
func (es *EventStream) Close() {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.closed {
		return
	}
	es.closed = true
	for conn := range es.conns {
		delete(es.conns, conn)
		close(conn.send)
	}
}

func (es *EventStream) remove(conn *streamConn) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if _, ok := es.conns[conn]; ok {
		delete(es.conns, conn)
		close(conn.send)
	}
}

func (es *EventStream) writeLoop(conn *streamConn) {
	defer conn.ws.Close()
	for ev := range conn.send {
		if err := conn.ws.WriteJSON(ev); err != nil {
			es.remove(conn)
			return
		}
	}
	_ = conn.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards inbound messages; its only job is to notice the client
// going away.
func (es *EventStream) readLoop(conn *streamConn) {
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			es.remove(conn)
			return
		}
	}
}

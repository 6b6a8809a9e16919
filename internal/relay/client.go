package relay

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 25 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
	maxFrame     = 4096
)

// clientMessage is a control frame sent by a client.
type clientMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// Client is one WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
	rooms  map[string]bool
}

func newClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:    id,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: map[string]bool{},
	}
}

// enqueue hands a frame to the write pump without blocking.  It reports
// false when the buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) setRoom(room string, in bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if in {
		c.rooms[room] = true
	} else {
		delete(c.rooms, room)
	}
}

func (c *Client) roomList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// readPump handles join and leave frames until the connection fails.
// Room membership is recorded and acknowledged; broadcasts ignore it.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if json.Unmarshal(data, &msg) != nil || msg.Room == "" {
			continue
		}
		var ack string
		switch msg.Type {
		case "join":
			c.setRoom(msg.Room, true)
			ack = "joined"
		case "leave":
			c.setRoom(msg.Room, false)
			ack = "left"
		default:
			continue
		}
		payload, _ := json.Marshal(map[string]string{"room": msg.Room})
		frame, _ := json.Marshal(Envelope{Event: ack, Payload: payload})
		c.enqueue(frame)
	}
}

// writePump writes queued frames and keeps the connection alive with
// pings.  It exits when the send channel is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

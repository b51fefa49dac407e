package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/events"
)

const (
	replayCount = 50
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	// must be less than pongWait
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
}

func (c wsClient) send(e events.Event) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(e)
}

func (c wsClient) ping() error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// readLoop discards client frames and closes done when the peer goes away.
func (c wsClient) readLoop(done chan<- struct{}) {
	defer close(done)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsEventsHandler replays recent bus events then streams new ones.
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := wsClient{conn: conn}
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for _, e := range s.bus.RecentEvents(replayCount) {
		if err := client.send(e); err != nil {
			log.Printf("ws replay failed: %v", err)
			return
		}
	}

	done := make(chan struct{})
	go client.readLoop(done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if err := client.send(e); err != nil {
				log.Printf("ws write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"diettracker/services"
)

const (
	wsPingEvery = 25 * time.Second
	wsIdleLimit = 60 * time.Second
	// Clients only send pongs and close frames.
	wsMaxInbound = 512
)

type RealtimeController struct {
	Hub *services.RealtimeHub
}

func NewRealtimeController(hub *services.RealtimeHub) *RealtimeController {
	return &RealtimeController{Hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // tighten behind ALB/CloudFront if needed
}

// FoodLogsWS streams food_log.created events for the authenticated user.
func (rc *RealtimeController) FoodLogsWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	cl := &services.WSClient{UserID: currentUser(c), Conn: conn}
	rc.Hub.Register(cl)
	defer rc.Hub.Unregister(cl)

	conn.SetReadLimit(wsMaxInbound)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleLimit))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleLimit))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(wsPingEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if cl.Ping() != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

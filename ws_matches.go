package main

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"gitea.kood.tech/petrkubec/match-engine/events"
	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/match"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// wsClient is one socket subscribed to a user's match events.
type wsClient struct {
	userID string
	conn   *websocket.Conn
	events <-chan match.MatchEvent
}

// GET /ws/matches streams match.created and match.removed events for the caller.
func matchEventsHandler(hub *events.Hub, secret []byte, allowedOrigins []string, log *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r, secret)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			log.Debug("websocket upgrade failed", "user_id", userID, "error", err)
			return
		}

		ch, cleanup := hub.Subscribe(userID)
		c := &wsClient{userID: userID, conn: conn, events: ch}
		log.Debug("match events subscriber connected", "user_id", userID)

		go clientWriter(c)
		clientReader(c)

		cleanup()
		log.Debug("match events subscriber left", "user_id", userID)
	}
}

// originChecker allows requests without an Origin header and those from the
// configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// clientReader only services control frames; clients have nothing to send.
// It returns once the peer goes away.
func clientReader(c *wsClient) {
	defer c.conn.Close()

	c.conn.SetReadLimit(1 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func clientWriter(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.events:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

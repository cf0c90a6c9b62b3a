package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/memorygame/server/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + 10*time.Second
)

// handleWatch upgrades to a WebSocket and streams a snapshot on connect and after
// every mutation of the game. Clients only read; flips go through POST /flip.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r)
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("gameId", g.ID()).Msg("websocket upgrade")
		return
	}
	defer conn.Close()
	logger := log.With().Str("gameId", g.ID()).Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Debug().Msg("watcher connected")

	// Buffer of one: a slow client skips intermediate snapshots but sees the newest.
	updates := make(chan game.Snapshot, 1)
	push := func(snap game.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	cancel := g.Subscribe(push)
	defer cancel()
	push(g.Snapshot())

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	var sent uint64
	for {
		select {
		case snap := <-updates:
			// observers may deliver out of order across goroutines
			if snap.Version <= sent {
				continue
			}
			sent = snap.Version
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug().Err(err).Msg("write snapshot")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-g.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			logger.Debug().Msg("watcher disconnected")
			return
		}
	}
}

// readPump drains client frames so control messages are processed, and closes
// done when the connection ends.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

// checkOrigin accepts same-host requests, requests without an Origin header,
// and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

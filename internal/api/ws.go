package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// noticePoll is how often the notice feed is checked for new entries.
const noticePoll = 200 * time.Millisecond

// StreamNotices streams page notices of the caller's console over WebSocket,
// one JSON FeedEntry per message, starting with the backlog. The stream ends
// when the client goes away or the console is closed by logout.
func (s *Server) StreamNotices(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// The client never sends anything; reading only detects that it left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	offset := 0
	ticker := time.NewTicker(noticePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			entries, next := c.Feed.Since(offset)
			for _, entry := range entries {
				if err := conn.WriteJSON(entry); err != nil {
					log.Debug().Err(err).Msg("Notice stream write failed")
					return
				}
			}
			offset = next
		case <-c.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logged out"))
			return
		case <-gone:
			return
		}
	}
}

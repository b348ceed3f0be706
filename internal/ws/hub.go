package ws

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/cardsum/cardsum_service/internal/telemetry"
)

var (
	mu    sync.RWMutex
	rooms = map[string]map[*websocket.Conn]struct{}{}
)

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

const roomUser = "card.room.user"

type Event string

const (
	EventCardSummarizing Event = "card.event.summarizing"
	EventCardSummarized  Event = "card.event.summarized"
	EventCardRendered    Event = "card.event.rendered"
	EventCardSaved       Event = "card.event.saved"
	EventCardError       Event = "card.event.error"
)

type PayloadEvent struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

func HandleWS(c *websocket.Conn) {
	tlog := telemetry.L().With().Str("module", "ws").Logger()
	tlog.Info().Msg("ws_connected")
	defer func() {
		mu.Lock()
		for room := range rooms {
			delete(rooms[room], c)
		}
		mu.Unlock()
		_ = c.Close()
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}

		switch cm.Action {
		case ActionJoin:
			joinRoom(c, cm.Room)
		case ActionLeave:
			leaveRoom(c, cm.Room)
		}
	}
}

func joinRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	if rooms[room] == nil {
		rooms[room] = map[*websocket.Conn]struct{}{}
	}
	rooms[room][c] = struct{}{}
	mu.Unlock()
}

func leaveRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	delete(rooms[room], c)
	mu.Unlock()
}

func userRoom(userID int64) string {
	return roomUser + "." + strconv.FormatInt(userID, 10)
}

// BroadcastStage pushes a pipeline stage event to the owning user's room.
func BroadcastStage(userID int64, ev Event, data any) {
	pl := PayloadEvent{Event: ev, Data: data}

	mu.RLock()
	conns := rooms[userRoom(userID)]
	mu.RUnlock()

	for c := range conns {
		_ = c.WriteJSON(pl)
	}
}

// BroadcastError reports a failed generation to the owning user.
func BroadcastError(userID int64, msg string) {
	BroadcastStage(userID, EventCardError, map[string]string{"error": msg})
}

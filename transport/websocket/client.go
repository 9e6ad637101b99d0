package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// client wraps one live connection. Writes are serialized: broadcasts for
// a room may originate from either member's handler goroutine.
type client struct {
	id   string
	conn *websocket.Conn

	writeMutex sync.Mutex
}

func (that *client) send(action string, payload any) error {
	message := Message{Action: action}

	if payload != nil {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		message.Payload = payloadJSON
	}

	that.writeMutex.Lock()
	defer that.writeMutex.Unlock()

	if err := that.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

package broadcast

import (
	"encoding/json"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/domain"
)

// Message types exchanged over the push channel.
const (
	TypeHello          = "hello"
	TypeHeartbeat      = "heartbeat"
	TypeCheckboxUpdate = "checkbox-update"
)

// Message is the envelope of every frame sent to or received from a client.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// HelloData is sent once when a connection opens.
type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeatInterval"`
}

// HelloMessage announces the heartbeat interval in milliseconds.
func HelloMessage(interval time.Duration) Message {
	return Message{Type: TypeHello, Data: HelloData{HeartbeatInterval: interval.Milliseconds()}}
}

// HeartbeatMessage is pushed to clients on every heartbeat tick.
func HeartbeatMessage() Message {
	return Message{Type: TypeHeartbeat}
}

// UpdateMessage carries one cell change.
func UpdateMessage(update domain.Update) Message {
	return Message{Type: TypeCheckboxUpdate, Data: update}
}

// inbound is the only part of a client frame the server looks at.
type inbound struct {
	Type string `json:"type"`
}

func parseInbound(data []byte) (inbound, error) {
	var msg inbound
	err := json.Unmarshal(data, &msg)
	return msg, err
}

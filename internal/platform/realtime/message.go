package realtime

import "encoding/json"

type MessageType string

const (
	MessageConnected    MessageType = "connected"
	MessageSubscribe    MessageType = "subscribe"
	MessageUnsubscribe  MessageType = "unsubscribe"
	MessageSubscribed   MessageType = "subscribed"
	MessageUnsubscribed MessageType = "unsubscribed"
	MessageEvent        MessageType = "event"
	MessagePing         MessageType = "ping"
	MessagePong         MessageType = "pong"
	MessageError        MessageType = "error"
)

// Inbound is what a client sends: {"type":"subscribe","topics":["visit:<id>"]}.
type Inbound struct {
	Type   MessageType `json:"type"`
	Topics []string    `json:"topics,omitempty"`
}

type Outbound struct {
	Type   MessageType `json:"type"`
	Topics []string    `json:"topics,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

type ErrorData struct {
	Topic  string `json:"topic,omitempty"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (m *Outbound) JSON() ([]byte, error) {
	return json.Marshal(m)
}

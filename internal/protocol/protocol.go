package protocol

import (
	"encoding/json"
	"errors"
)

const Version = "1.0"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeAdd       = "ADD"
	TypeRemove    = "REMOVE"
	TypeSnapshot  = "SNAPSHOT"
	TypeError     = "ERROR"
)

var (
	ErrUnknownType = errors.New("protocol: unknown message type")
	ErrBadFrame    = errors.New("protocol: malformed frame")
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

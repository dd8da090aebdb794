package keygen

import (
	"fmt"

	"github.com/bftkit/thresholdcore/internal/codec"
)

// Every message of the protocol is broadcast as a 1-byte MessageType followed by the encoded message.
type MessageType byte

const (
	MessageTypeCommit MessageType = iota + 1
	MessageTypeValue
	MessageTypeConfirm
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeCommit:
		return "commit"
	case MessageTypeValue:
		return "value"
	case MessageTypeConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

func encodeMessage(t MessageType, msg codec.Marshaler) ([]byte, error) {
	data, err := codec.MarshalUsing(func(target codec.Target) {
		target.WriteBytes([]byte{byte(t)})
		target.Write(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", t, err)
	}
	return data, nil
}

// PeekMessageType returns the type of an encoded message without decoding it.
func PeekMessageType(data []byte) (MessageType, bool) {
	if len(data) == 0 {
		return 0, false
	}
	t := MessageType(data[0])
	return t, t >= MessageTypeCommit && t <= MessageTypeConfirm
}

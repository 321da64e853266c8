package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ChatLabel is the data channel the presenter opens on every link.
const ChatLabel = "chat"

var ErrNoChatChannel = errors.New("endpoint: chat channel not open")

// ChatMessage travels over the chat data channel, msgpack encoded.
type ChatMessage struct {
	From   string    `msgpack:"from"`
	Text   string    `msgpack:"text"`
	SentAt time.Time `msgpack:"sentAt"`
}

func EncodeChat(msg ChatMessage) ([]byte, error) {
	data, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("encode chat: %w", err)
	}
	return data, nil
}

func DecodeChat(data []byte) (ChatMessage, error) {
	var msg ChatMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return ChatMessage{}, fmt.Errorf("decode chat: %w", err)
	}
	return msg, nil
}

package protocol

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUntagged is returned for a message with neither cmd nor s.
var ErrUntagged = errors.New("message has neither cmd nor s")

// TagError is returned when a message carries both discriminators.
type TagError struct {
	Cmd string
	S   string
}

func (e *TagError) Error() string {
	return fmt.Sprintf("message is tagged twice: cmd=%q s=%q", e.Cmd, e.S)
}

// Validate checks that exactly one discriminator is set.
func (m *Message) Validate() error {
	switch {
	case m.Cmd == "" && m.S == "":
		return ErrUntagged
	case m.Cmd != "" && m.S != "":
		return &TagError{Cmd: m.Cmd, S: m.S}
	}
	return nil
}

// Marshal encodes m without its transfer list.
func Marshal(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Unmarshal decodes and validates a message.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Clone copies m the way a structured clone would: the body goes through the
// wire encoding and the transfer list moves to the copy unchanged.
func Clone(m *Message) (*Message, error) {
	data, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	out, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	out.Transfer = m.Transfer
	return out, nil
}

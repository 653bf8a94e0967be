// Package protocol defines the wire messages sent to relay clients.
//
// Every server-to-client frame is either a single JSON object describing
// one event in the response lifecycle, or a raw binary frame carrying
// synthesized audio bytes. Client-to-server frames are plain text
// utterances and carry no envelope.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType tags an outbound JSON frame.
type MessageType string

const (
	// TypeStartOfResponse opens a model response cycle.
	TypeStartOfResponse MessageType = "start_of_response"
	// TypeTextChunk carries one segmented sentence of response text.
	TypeTextChunk MessageType = "text_chunk"
	// TypeEndOfResponse closes a model response cycle.
	TypeEndOfResponse MessageType = "end_of_response"
	// TypeError reports a failed cycle to the client.
	TypeError MessageType = "error"
)

// Outbound is the JSON envelope for one server-to-client text frame.
// Exactly one frame per websocket message.
type Outbound struct {
	Type    MessageType `json:"type"`
	Data    string      `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// StartOfResponse marks the beginning of a streamed response.
func StartOfResponse() Outbound {
	return Outbound{Type: TypeStartOfResponse}
}

// TextChunk wraps one completed sentence.
func TextChunk(sentence string) Outbound {
	return Outbound{Type: TypeTextChunk, Data: sentence}
}

// EndOfResponse marks the end of a streamed response.
func EndOfResponse() Outbound {
	return Outbound{Type: TypeEndOfResponse}
}

// ErrorMessage reports a failed cycle with a client-facing message.
func ErrorMessage(message string) Outbound {
	return Outbound{Type: TypeError, Message: message}
}

// Encode renders the frame as wire JSON after validating its shape.
func Encode(msg Outbound) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal outbound frame: %w", err)
	}
	return data, nil
}

// Decode parses a wire frame back into its envelope. Used by clients
// and by tests asserting on emitted frames.
func Decode(data []byte) (Outbound, error) {
	var msg Outbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Outbound{}, fmt.Errorf("invalid outbound frame: %w", err)
	}
	if err := validate(msg); err != nil {
		return Outbound{}, err
	}
	return msg, nil
}

func validate(msg Outbound) error {
	switch msg.Type {
	case TypeStartOfResponse, TypeEndOfResponse:
		return nil
	case TypeTextChunk:
		if strings.TrimSpace(msg.Data) == "" {
			return fmt.Errorf("text_chunk frame requires data")
		}
		return nil
	case TypeError:
		if strings.TrimSpace(msg.Message) == "" {
			return fmt.Errorf("error frame requires message")
		}
		return nil
	case "":
		return fmt.Errorf("outbound frame missing type")
	default:
		return fmt.Errorf("unknown outbound frame type %q", msg.Type)
	}
}

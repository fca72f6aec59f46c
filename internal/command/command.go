// Package command defines the messages a session sends to the background
// service and the in-process bus that carries them.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Action names a command. The values are the wire names.
type Action string

const (
	AdCounter        Action = "adCounter"
	WarningDetected  Action = "warningDetected"
	PageReload       Action = "pageReload"
	Mute             Action = "mute"
	Unmute           Action = "unmute"
	TrustedSkipClick Action = "trustedSkipClick"
)

var (
	ErrUnknownAction     = errors.New("unknown command action")
	ErrInvalidCoordinate = errors.New("invalid click coordinates")
)

// Known reports whether a is one of the defined actions.
func (a Action) Known() bool {
	switch a {
	case AdCounter, WarningDetected, PageReload, Mute, Unmute, TrustedSkipClick:
		return true
	}
	return false
}

// Message is a command as it travels on the wire.
type Message struct {
	Action Action  `json:"action"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
}

// Response answers a request. Only TrustedSkipClick produces one.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Failed builds an unsuccessful response from err.
func Failed(err error) Response {
	return Response{Error: err.Error()}
}

// Validate rejects unknown actions and unusable click coordinates.
func (m Message) Validate() error {
	if !m.Action.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, m.Action)
	}
	if m.Action == TrustedSkipClick && (!validCoordinate(m.X) || !validCoordinate(m.Y)) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, m.X, m.Y)
	}
	return nil
}

func validCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Encode validates and marshals m.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode unmarshals and validates a message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decoding command: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message headers shared by publisher and consumer. The consumer routes
// and triages on these before it ever touches the body.
const (
	HeaderEventType     = "EventType"
	HeaderSource        = "Source"
	HeaderVersion       = "Version"
	HeaderCorrelationID = "CorrelationId"
)

const (
	// Source identifies the producing service on every message.
	Source = "todo-service"
	// SchemaVersion is informational; consumers tolerate values they
	// do not recognize.
	SchemaVersion = "1.0"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Marshal serializes an event into the envelope body. Field names are
// camelCase and read back case-insensitively.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Unmarshal decodes an envelope body into the typed event named by the
// EventType header. An unrecognized type yields ErrUnknownEventType.
func Unmarshal(t Type, body []byte) (Event, error) {
	dec, ok := decoders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	return dec(body)
}

var decoders = map[Type]func([]byte) (Event, error){
	TypeTodoCreated:         decode[TodoCreated],
	TypeTodoCompleted:       decode[TodoCompleted],
	TypeTodoUpdated:         decode[TodoUpdated],
	TypeTodoReopened:        decode[TodoReopened],
	TypeTodoPriorityChanged: decode[TodoPriorityChanged],
}

func decode[E Event](body []byte) (Event, error) {
	var ev E
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

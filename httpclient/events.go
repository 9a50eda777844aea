package httpclient

import (
	"bufio"
	"io"
	"strings"
)

// Event is one server-sent event.
type Event struct {
	// Name is the "event:" field, empty for unnamed events.
	Name string `json:"event,omitempty"`
	ID   string `json:"id,omitempty"`
	// Data joins multi-line data with newlines.
	Data string `json:"data"`
}

// EventReader parses a text/event-stream body.
type EventReader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewEventReader reads events from body.
func NewEventReader(body io.ReadCloser) *EventReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &EventReader{scanner: sc, body: body}
}

// Next returns the next event, or io.EOF once the stream ends.
func (r *EventReader) Next() (*Event, error) {
	var ev Event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if hasData {
				return &ev, nil
			}
			ev = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if hasData {
				ev.Data += "\n" + value
			} else {
				ev.Data, hasData = value, true
			}
		case "event":
			ev.Name = value
		case "id":
			ev.ID = value
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if hasData {
		return &ev, nil
	}
	return nil, io.EOF
}

// Close releases the stream.
func (r *EventReader) Close() error {
	return r.body.Close()
}

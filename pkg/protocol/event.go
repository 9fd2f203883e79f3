package protocol

import (
	"errors"
	"fmt"

	"github.com/vango-dev/billform/pkg/dom"
)

// EventType identifies a client event.
type EventType uint8

const (
	EventClick EventType = 0x01
	EventInput EventType = 0x02
	EventFocus EventType = 0x03
	EventBlur  EventType = 0x04
)

// ErrUnknownEventType is returned for an event byte the decoder does not know.
var ErrUnknownEventType = errors.New("protocol: unknown event type")

var eventNames = map[EventType]string{
	EventClick: "click",
	EventInput: "input",
	EventFocus: "focus",
	EventBlur:  "blur",
}

// String returns the DOM event name.
func (et EventType) String() string {
	if name, ok := eventNames[et]; ok {
		return name
	}
	return "unknown"
}

// ParseEventType maps a DOM event name to its type.
func ParseEventType(name string) (EventType, bool) {
	for et, n := range eventNames {
		if n == name {
			return et, true
		}
	}
	return 0, false
}

// Event is one user interaction on a node.
type Event struct {
	Seq   uint64
	Type  EventType
	HID   string
	Value string // textContent of the target, input events only
}

// DOM converts the wire event to the form handlers receive.
func (ev *Event) DOM() dom.Event {
	return dom.Event{Type: ev.Type.String(), Value: ev.Value}
}

// EncodeEvent encodes an event payload.
//
//	[Seq: varint][Type: byte][HID: string]([Value: string] for input)
func EncodeEvent(ev *Event) []byte {
	e := NewEncoder()
	e.WriteUvarint(ev.Seq)
	e.WriteByte(byte(ev.Type))
	e.WriteString(ev.HID)
	if ev.Type == EventInput {
		e.WriteString(ev.Value)
	}
	return e.Bytes()
}

// DecodeEvent decodes an event payload.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	typ, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ev := &Event{Seq: seq, Type: EventType(typ)}
	if _, ok := eventNames[ev.Type]; !ok {
		return nil, fmt.Errorf("%w 0x%02x", ErrUnknownEventType, typ)
	}
	if ev.HID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ev.Type == EventInput {
		if ev.Value, err = d.ReadString(); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

package protocol

// ControlType identifies the type of control message.
type ControlType uint8

const (
	ControlPing   ControlType = 0x01 // Client/server ping
	ControlPong   ControlType = 0x02 // Response to ping
	ControlResync ControlType = 0x10 // Client asks for the whole tree
	ControlClose  ControlType = 0x20 // Session close
)

// String returns the string representation of the control type.
func (ct ControlType) String() string {
	switch ct {
	case ControlPing:
		return "Ping"
	case ControlPong:
		return "Pong"
	case ControlResync:
		return "Resync"
	case ControlClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// CloseReason indicates why a session is being closed.
type CloseReason uint8

const (
	CloseNormal         CloseReason = 0x00
	CloseGoingAway      CloseReason = 0x01
	CloseServerShutdown CloseReason = 0x03
	CloseError          CloseReason = 0x04
)

// Control is a decoded control message. Timestamp is set for ping and
// pong, Reason and Message for close.
type Control struct {
	Type      ControlType
	Timestamp uint64 // Unix milliseconds
	Reason    CloseReason
	Message   string
}

// NewPing creates a ping carrying the sender's clock.
func NewPing(unixMilli uint64) *Control {
	return &Control{Type: ControlPing, Timestamp: unixMilli}
}

// Pong answers a ping, echoing its timestamp.
func (c *Control) Pong() *Control {
	return &Control{Type: ControlPong, Timestamp: c.Timestamp}
}

// NewClose creates a close message.
func NewClose(reason CloseReason, message string) *Control {
	return &Control{Type: ControlClose, Reason: reason, Message: message}
}

// EncodeControl encodes a control payload.
func EncodeControl(c *Control) []byte {
	e := NewEncoder()
	e.WriteByte(byte(c.Type))
	switch c.Type {
	case ControlPing, ControlPong:
		e.WriteUint64(c.Timestamp)
	case ControlClose:
		e.WriteByte(byte(c.Reason))
		e.WriteString(c.Message)
	}
	return e.Bytes()
}

// DecodeControl decodes a control payload. Unknown types decode to a bare
// Control so that newer clients do not break the session.
func DecodeControl(data []byte) (*Control, error) {
	d := NewDecoder(data)
	b, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	c := &Control{Type: ControlType(b)}
	switch c.Type {
	case ControlPing, ControlPong:
		c.Timestamp, err = d.ReadUint64()
	case ControlClose:
		var reason byte
		if reason, err = d.ReadByte(); err != nil {
			return nil, err
		}
		c.Reason = CloseReason(reason)
		c.Message, err = d.ReadString()
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

package protocol

import "fmt"

// ErrorCode classifies an Error frame. Codes below 0x0100 blame the
// client's input; codes from 0x0100 up are server faults.
type ErrorCode uint16

const (
	ErrUnknown         ErrorCode = 0x0000
	ErrInvalidFrame    ErrorCode = 0x0001
	ErrInvalidEvent    ErrorCode = 0x0002
	ErrHandlerNotFound ErrorCode = 0x0003 // event aimed at a released or unknown HID
	ErrHandlerPanic    ErrorCode = 0x0004
	ErrSessionExpired  ErrorCode = 0x0005
	ErrRateLimited     ErrorCode = 0x0006

	ErrServerError ErrorCode = 0x0100
)

var errorCodeNames = map[ErrorCode]string{
	ErrInvalidFrame:    "InvalidFrame",
	ErrInvalidEvent:    "InvalidEvent",
	ErrHandlerNotFound: "HandlerNotFound",
	ErrHandlerPanic:    "HandlerPanic",
	ErrSessionExpired:  "SessionExpired",
	ErrRateLimited:     "RateLimited",
	ErrServerError:     "ServerError",
}

func (ec ErrorCode) String() string {
	if name, ok := errorCodeNames[ec]; ok {
		return name
	}
	return "Unknown"
}

// ServerFault reports whether the code blames the server.
func (ec ErrorCode) ServerFault() bool {
	return ec >= ErrServerError
}

// ErrorMessage is the payload of an Error frame. A fatal error is followed
// by a close of the connection, and the client reloads the page.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	Fatal   bool
}

// NewError returns a non-fatal error payload.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError returns a fatal error payload.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

func (em *ErrorMessage) Error() string {
	s := fmt.Sprintf("%s (0x%04x): %s", em.Code, uint16(em.Code), em.Message)
	if em.Fatal {
		return "fatal " + s
	}
	return s
}

// EncodeErrorMessage encodes em as code, message, fatal.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage is the inverse of EncodeErrorMessage.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	em := &ErrorMessage{Code: ErrorCode(code)}
	if em.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	if em.Fatal, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return em, nil
}

package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/protocol"
)

// ReadLoop reads frames from the connection until it fails or the session
// closes. Events are queued for the event loop; control frames are answered
// here.
func (s *Session) ReadLoop() {
	defer s.Close()
	s.conn.SetReadLimit(s.config.MaxMessageSize)

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}
		s.touch()

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Warn("frame decode error", "error", err)
			s.sendError(protocol.NewError(protocol.ErrInvalidFrame, "invalid frame"))
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			s.handleEventFrame(frame.Payload)
		case protocol.FrameControl:
			s.handleControlFrame(frame.Payload)
		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type.String())
		}
	}
}

func (s *Session) handleEventFrame(payload []byte) {
	ev, err := protocol.DecodeEvent(payload)
	if err != nil {
		s.logger.Warn("event decode error", "error", err)
		s.sendError(protocol.NewError(protocol.ErrInvalidEvent, "invalid event"))
		return
	}

	switch err := s.QueueEvent(ev); {
	case errors.Is(err, ErrRateLimited):
		s.logger.Warn("event dropped, rate exceeded", "hid", ev.HID, "type", ev.Type.String())
		s.sendError(protocol.NewError(protocol.ErrRateLimited, "too many events"))
	case err != nil:
		s.logger.Warn("event dropped, queue full", "hid", ev.HID, "type", ev.Type.String())
		s.sendError(protocol.NewError(protocol.ErrRateLimited, "event queue full"))
	}
}

func (s *Session) handleControlFrame(payload []byte) {
	c, err := protocol.DecodeControl(payload)
	if err != nil {
		s.logger.Warn("control decode error", "error", err)
		return
	}

	switch c.Type {
	case protocol.ControlPing:
		s.sendControl(c.Pong())

	case protocol.ControlPong:
		s.logger.Debug("received pong", "rtt", time.Since(time.UnixMilli(int64(c.Timestamp))))

	case protocol.ControlResync:
		s.logger.Info("resync requested")
		s.Dispatch(s.resync)

	case protocol.ControlClose:
		s.logger.Info("client closing", "reason", c.Reason, "message", c.Message)
		s.Close()
	}
}

// WriteLoop sends heartbeat pings until the session closes.
func (s *Session) WriteLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sendControl(protocol.NewPing(uint64(time.Now().UnixMilli()))); err != nil {
				s.logger.Warn("heartbeat failed", "error", err)
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// sendPatches sends one patches frame with the next sequence number.
func (s *Session) sendPatches(patches []dom.Patch, flags protocol.FrameFlags) {
	seq := s.sendSeq.Add(1)
	payload := protocol.EncodePatches(&protocol.PatchesFrame{Seq: seq, Patches: patches})
	frame := &protocol.Frame{Type: protocol.FramePatches, Flags: flags, Payload: payload}
	if err := s.sendFrame(frame); err != nil {
		s.logger.Warn("send patches failed", "seq", seq, "count", len(patches), "error", err)
		return
	}
	s.patchCount.Add(uint64(len(patches)))
	s.metrics.RecordPatches(len(patches))
}

func (s *Session) sendControl(c *protocol.Control) error {
	return s.sendFrame(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(c)))
}

// sendError reports err to the client. A fatal error is followed by a close
// from the caller.
func (s *Session) sendError(em *protocol.ErrorMessage) {
	if err := s.sendFrame(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em))); err != nil {
		s.logger.Debug("send error frame failed", "code", em.Code.String(), "error", err)
	}
}

// sendFrame writes one binary message under the write lock.
func (s *Session) sendFrame(f *protocol.Frame) error {
	if len(f.Payload) > protocol.MaxPayloadSize {
		return protocol.ErrFrameTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.conn == nil {
		return ErrNoConnection
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, f.Encode())
}

// SendClose tells the client why the session is ending, then closes it.
func (s *Session) SendClose(reason protocol.CloseReason, message string) {
	if err := s.sendControl(protocol.NewClose(reason, message)); err != nil {
		s.logger.Debug("send close failed", "error", err)
	}
	s.Close()
}

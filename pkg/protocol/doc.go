// Package protocol implements the binary wire format spoken between a live
// receipt page and its server session.
//
// Every WebSocket message carries exactly one frame:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// A full resync of a long item table does not fit the 64KB a 16-bit length
// allows, so the length is 32 bits and payloads are capped by
// MaxPayloadSize instead.
//
// # Frame Types
//
//   - FrameEvent (0x01): client → server, one user interaction
//   - FramePatches (0x02): server → client, the patches of one flush
//   - FrameControl (0x03): ping, pong, resync request, close
//   - FrameError (0x05): error report, optionally fatal
//
// # Encoding
//
// Integers are protobuf-style varints, strings are varint length-prefixed
// UTF-8 and fixed-width integers are big-endian. Decoders enforce
// allocation, collection and nesting limits on everything read from the
// network.
//
// # Patches
//
//	[Seq: varint][Count: varint]{[Op: byte][op-specific fields]}*
//
// InsertNode and ReplaceNode carry a serialized subtree: kind, tag, HID,
// text, attributes, listened events and children.
//
// # Usage
//
//	data := protocol.EncodePatches(&protocol.PatchesFrame{Seq: 3, Patches: doc.Drain()})
//	frame := protocol.NewFrame(protocol.FramePatches, data)
//
//	ev, err := protocol.DecodeEvent(frame.Payload)
package protocol

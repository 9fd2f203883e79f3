package protocol

import (
	"errors"
	"fmt"

	"github.com/vango-dev/billform/pkg/dom"
)

// ErrUnknownPatchOp is returned for an op byte the decoder does not know.
var ErrUnknownPatchOp = errors.New("protocol: unknown patch op")

// PatchesFrame carries the patches journalled by one flush.
type PatchesFrame struct {
	Seq     uint64
	Patches []dom.Patch
}

// EncodePatches encodes a patches frame payload.
func EncodePatches(pf *PatchesFrame) []byte {
	e := NewEncoder()
	EncodePatchesTo(e, pf)
	return e.Bytes()
}

// EncodePatchesTo encodes a patches frame payload using e.
func EncodePatchesTo(e *Encoder, pf *PatchesFrame) {
	e.WriteUvarint(pf.Seq)
	e.WriteUvarint(uint64(len(pf.Patches)))
	for i := range pf.Patches {
		encodePatch(e, &pf.Patches[i])
	}
}

func encodePatch(e *Encoder, p *dom.Patch) {
	e.WriteByte(byte(p.Op))
	switch p.Op {
	case dom.PatchSetText:
		e.WriteString(p.HID)
		e.WriteString(p.Value)
	case dom.PatchSetAttr:
		e.WriteString(p.HID)
		e.WriteString(p.Key)
		e.WriteString(p.Value)
	case dom.PatchRemoveAttr:
		e.WriteString(p.HID)
		e.WriteString(p.Key)
	case dom.PatchInsertNode:
		e.WriteString(p.ParentID)
		e.WriteString(p.Before)
		encodeSnapshot(e, p.Node)
	case dom.PatchRemoveNode:
		e.WriteString(p.HID)
	case dom.PatchMoveNode:
		e.WriteString(p.HID)
		e.WriteString(p.ParentID)
		e.WriteString(p.Before)
	case dom.PatchReplaceNode:
		e.WriteString(p.HID)
		encodeSnapshot(e, p.Node)
	case dom.PatchDispatch:
		e.WriteString(p.Key)
		e.WriteString(p.Value)
	}
}

func encodeSnapshot(e *Encoder, s *dom.Snapshot) {
	if s == nil {
		// An empty text node keeps the stream decodable.
		s = &dom.Snapshot{Kind: dom.KindText}
	}
	e.WriteByte(byte(s.Kind))
	e.WriteString(s.HID)
	if s.Kind == dom.KindText {
		e.WriteString(s.Text)
		return
	}
	e.WriteString(s.Tag)
	e.WriteUvarint(uint64(len(s.Attrs)))
	for _, a := range s.Attrs {
		e.WriteString(a.Key)
		e.WriteString(a.Value)
	}
	e.WriteUvarint(uint64(len(s.Events)))
	for _, ev := range s.Events {
		e.WriteString(ev)
	}
	e.WriteUvarint(uint64(len(s.Children)))
	for _, c := range s.Children {
		encodeSnapshot(e, c)
	}
}

// DecodePatches decodes a patches frame payload.
func DecodePatches(data []byte) (*PatchesFrame, error) {
	d := NewDecoder(data)
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	pf := &PatchesFrame{Seq: seq, Patches: make([]dom.Patch, count)}
	for i := range pf.Patches {
		if err := decodePatch(d, &pf.Patches[i]); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}
	return pf, nil
}

func decodePatch(d *Decoder, p *dom.Patch) error {
	op, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Op = dom.PatchOp(op)

	var fields []*string
	switch p.Op {
	case dom.PatchSetText:
		fields = []*string{&p.HID, &p.Value}
	case dom.PatchSetAttr:
		fields = []*string{&p.HID, &p.Key, &p.Value}
	case dom.PatchRemoveAttr:
		fields = []*string{&p.HID, &p.Key}
	case dom.PatchInsertNode:
		fields = []*string{&p.ParentID, &p.Before}
	case dom.PatchRemoveNode:
		fields = []*string{&p.HID}
	case dom.PatchMoveNode:
		fields = []*string{&p.HID, &p.ParentID, &p.Before}
	case dom.PatchReplaceNode:
		fields = []*string{&p.HID}
	case dom.PatchDispatch:
		fields = []*string{&p.Key, &p.Value}
	default:
		return fmt.Errorf("%w 0x%02x", ErrUnknownPatchOp, op)
	}
	for _, f := range fields {
		if *f, err = d.ReadString(); err != nil {
			return err
		}
	}
	if p.Op == dom.PatchInsertNode || p.Op == dom.PatchReplaceNode {
		p.Node, err = decodeSnapshot(d, 0)
	}
	return err
}

func decodeSnapshot(d *Decoder, depth int) (*dom.Snapshot, error) {
	if depth >= MaxSnapshotDepth {
		return nil, ErrMaxDepthExceeded
	}
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	s := &dom.Snapshot{Kind: dom.Kind(kind)}
	if s.HID, err = d.ReadString(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case dom.KindText:
		s.Text, err = d.ReadString()
		return s, err
	case dom.KindElement:
	default:
		return nil, fmt.Errorf("protocol: unknown node kind %d", kind)
	}

	if s.Tag, err = d.ReadString(); err != nil {
		return nil, err
	}
	n, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if n > 0 {
		s.Attrs = make([]dom.Attr, n)
		for i := range s.Attrs {
			if s.Attrs[i].Key, err = d.ReadString(); err != nil {
				return nil, err
			}
			if s.Attrs[i].Value, err = d.ReadString(); err != nil {
				return nil, err
			}
		}
	}
	if n, err = d.ReadCount(); err != nil {
		return nil, err
	}
	if n > 0 {
		s.Events = make([]string, n)
		for i := range s.Events {
			if s.Events[i], err = d.ReadString(); err != nil {
				return nil, err
			}
		}
	}
	if n, err = d.ReadCount(); err != nil {
		return nil, err
	}
	if n > 0 {
		s.Children = make([]*dom.Snapshot, n)
		for i := range s.Children {
			if s.Children[i], err = decodeSnapshot(d, depth+1); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

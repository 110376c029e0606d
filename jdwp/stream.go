package jdwp

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Sender is the connection a PacketStream is sent through.
// WaitForReply blocks until the reply carrying id arrives or the connection
// is torn down.
type Sender interface {
	Send(p *Packet) error
	WaitForReply(ctx context.Context, id int32) (*Packet, error)
}

// Location identifies an executable position: type tag, class, method and
// code index.
type Location struct {
	Tag      uint8
	ClassID  int32
	MethodID int64
	Index    uint64
}

// PacketStream builds an outbound packet through sequential Write calls, or
// consumes an inbound payload through sequential Read calls.
//
// Reads are bounds-checked: reading past the payload records ErrTruncatedPacket,
// returns zero values from then on, and is reported by Err.
type PacketStream struct {
	sender       Sender
	pkt          *Packet
	out          []byte
	pos          int
	methodIDSize int
	err          error
	sent         bool
}

// NewCommandStream starts an outbound command packet.
func NewCommandStream(s Sender, id int32, cmdSet, cmd uint8, methodIDSize int) *PacketStream {
	return &PacketStream{
		sender:       s,
		pkt:          &Packet{ID: id, CmdSet: cmdSet, Cmd: cmd},
		methodIDSize: methodIDSize,
	}
}

// NewReplyStream starts an outbound reply to req.
func NewReplyStream(s Sender, req *Packet, methodIDSize int) *PacketStream {
	return &PacketStream{
		sender:       s,
		pkt:          &Packet{ID: req.ID, Flags: FlagReply},
		methodIDSize: methodIDSize,
	}
}

// NewReadStream wraps an inbound packet for reading.
func NewReadStream(p *Packet, methodIDSize int) *PacketStream {
	return &PacketStream{pkt: p, methodIDSize: methodIDSize, sent: true}
}

// ID returns the packet id.
func (s *PacketStream) ID() int32 {
	return s.pkt.ID
}

// Packet returns the packet, with the written payload attached for outbound streams.
func (s *PacketStream) Packet() *Packet {
	if !s.sent {
		s.pkt.Data = s.out
	}
	return s.pkt
}

// Err returns the first decode error, if any.
func (s *PacketStream) Err() error {
	return s.err
}

// Remaining returns the number of unread payload bytes.
func (s *PacketStream) Remaining() int {
	return len(s.pkt.Data) - s.pos
}

// SetErrorCode sets the error code of an outbound reply.
func (s *PacketStream) SetErrorCode(code ErrorCode) {
	s.pkt.ErrorCode = code
}

// Send commits the packet to the sender. Calling Send again is a no-op.
func (s *PacketStream) Send() error {
	if s.sent {
		return nil
	}
	s.pkt.Data = s.out
	s.sent = true
	return s.sender.Send(s.pkt)
}

// WaitForReply sends the command if needed and blocks for its reply.
// Returns ErrConnectionClosed on teardown and *VMError when the reply carries
// a non-zero error code.
func (s *PacketStream) WaitForReply(ctx context.Context) (*PacketStream, error) {
	if err := s.Send(); err != nil {
		return nil, err
	}
	reply, err := s.sender.WaitForReply(ctx, s.pkt.ID)
	if err != nil {
		return nil, err
	}
	if reply.ErrorCode != ErrorNone {
		return nil, &VMError{Code: reply.ErrorCode}
	}
	return NewReadStream(reply, s.methodIDSize), nil
}

// --- Write primitives ---

// WriteUint8 appends one byte.
func (s *PacketStream) WriteUint8(v uint8) {
	s.out = append(s.out, v)
}

// WriteBool appends a boolean as one byte.
func (s *PacketStream) WriteBool(v bool) {
	if v {
		s.out = append(s.out, 1)
		return
	}
	s.out = append(s.out, 0)
}

// WriteInt16 appends a big-endian 16-bit value.
func (s *PacketStream) WriteInt16(v int16) {
	s.out = binary.BigEndian.AppendUint16(s.out, uint16(v))
}

// WriteInt32 appends a big-endian 32-bit value.
func (s *PacketStream) WriteInt32(v int32) {
	s.out = binary.BigEndian.AppendUint32(s.out, uint32(v))
}

// WriteInt64 appends a big-endian 64-bit value.
func (s *PacketStream) WriteInt64(v int64) {
	s.out = binary.BigEndian.AppendUint64(s.out, uint64(v))
}

// WriteString appends a length-prefixed UTF-8 string.
func (s *PacketStream) WriteString(v string) {
	s.WriteInt32(int32(len(v)))
	s.out = append(s.out, v...)
}

// WriteBytes appends raw bytes with no length prefix.
func (s *PacketStream) WriteBytes(b []byte) {
	s.out = append(s.out, b...)
}

// WriteObjectID appends an object id.
func (s *PacketStream) WriteObjectID(v int32) {
	s.WriteInt32(v)
}

// WriteReferenceTypeID appends a reference type id.
func (s *PacketStream) WriteReferenceTypeID(v int32) {
	s.WriteInt32(v)
}

// WriteFrameID appends a frame id.
func (s *PacketStream) WriteFrameID(v int32) {
	s.WriteInt32(v)
}

// WriteFieldID appends a field id.
func (s *PacketStream) WriteFieldID(v int64) {
	s.WriteInt64(v)
}

// WriteMethodID appends a method id using the negotiated width.
func (s *PacketStream) WriteMethodID(v int64) {
	if s.methodIDSize == 8 {
		s.WriteInt64(v)
		return
	}
	s.WriteInt32(int32(v))
}

// WriteLocation appends a location.
func (s *PacketStream) WriteLocation(loc Location) {
	s.WriteUint8(loc.Tag)
	s.WriteReferenceTypeID(loc.ClassID)
	s.WriteMethodID(loc.MethodID)
	s.WriteInt64(int64(loc.Index))
}

// --- Read primitives ---

// need reports whether n more bytes are available, recording a truncation otherwise.
func (s *PacketStream) need(n int, what string) bool {
	if s.err != nil {
		return false
	}
	if n < 0 || n > s.Remaining() {
		s.err = &ProtocolError{
			Kind: ErrTruncatedPacket,
			Code: ErrorIllegalArgument,
			Op:   "read " + what,
			Err:  fmt.Errorf("need %d bytes at offset %d, have %d", n, s.pos, s.Remaining()),
		}
		return false
	}
	return true
}

// ReadUint8 reads one byte.
func (s *PacketStream) ReadUint8() uint8 {
	if !s.need(1, "byte") {
		return 0
	}
	v := s.pkt.Data[s.pos]
	s.pos++
	return v
}

// ReadBool reads a one-byte boolean.
func (s *PacketStream) ReadBool() bool {
	return s.ReadUint8() != 0
}

// ReadInt16 reads a big-endian 16-bit value.
func (s *PacketStream) ReadInt16() int16 {
	if !s.need(2, "short") {
		return 0
	}
	v := int16(binary.BigEndian.Uint16(s.pkt.Data[s.pos:]))
	s.pos += 2
	return v
}

// ReadInt32 reads a big-endian 32-bit value.
func (s *PacketStream) ReadInt32() int32 {
	if !s.need(4, "int") {
		return 0
	}
	v := int32(binary.BigEndian.Uint32(s.pkt.Data[s.pos:]))
	s.pos += 4
	return v
}

// ReadInt64 reads a big-endian 64-bit value.
func (s *PacketStream) ReadInt64() int64 {
	if !s.need(8, "long") {
		return 0
	}
	v := int64(binary.BigEndian.Uint64(s.pkt.Data[s.pos:]))
	s.pos += 8
	return v
}

// ReadString reads a length-prefixed UTF-8 string.
func (s *PacketStream) ReadString() string {
	n := s.ReadInt32()
	if s.err != nil {
		return ""
	}
	if !s.need(int(n), "string") {
		return ""
	}
	v := string(s.pkt.Data[s.pos : s.pos+int(n)])
	s.pos += int(n)
	return v
}

// ReadBytes reads n raw bytes.
func (s *PacketStream) ReadBytes(n int) []byte {
	if !s.need(n, "bytes") {
		return nil
	}
	v := append([]byte(nil), s.pkt.Data[s.pos:s.pos+n]...)
	s.pos += n
	return v
}

// ReadObjectID reads an object id.
func (s *PacketStream) ReadObjectID() int32 {
	return s.ReadInt32()
}

// ReadReferenceTypeID reads a reference type id.
func (s *PacketStream) ReadReferenceTypeID() int32 {
	return s.ReadInt32()
}

// ReadFrameID reads a frame id.
func (s *PacketStream) ReadFrameID() int32 {
	return s.ReadInt32()
}

// ReadFieldID reads a field id.
func (s *PacketStream) ReadFieldID() int64 {
	return s.ReadInt64()
}

// ReadMethodID reads a method id using the negotiated width.
func (s *PacketStream) ReadMethodID() int64 {
	if s.methodIDSize == 8 {
		return s.ReadInt64()
	}
	return int64(s.ReadInt32())
}

// ReadLocation reads a location.
func (s *PacketStream) ReadLocation() Location {
	return Location{
		Tag:      s.ReadUint8(),
		ClassID:  s.ReadReferenceTypeID(),
		MethodID: s.ReadMethodID(),
		Index:    uint64(s.ReadInt64()),
	}
}

package jdwp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPacketSize is the largest packet accepted from either side (16 MiB),
// header included.
const MaxPacketSize = 16 * 1024 * 1024

// Encode serializes a packet into its wire form.
func Encode(p *Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(HeaderSize+len(p.Data)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.ID))
	buf[8] = p.Flags
	if p.IsReply() {
		binary.BigEndian.PutUint16(buf[9:11], uint16(p.ErrorCode))
	} else {
		buf[9] = p.CmdSet
		buf[10] = p.Cmd
	}
	copy(buf[HeaderSize:], p.Data)
	return buf
}

// Decode parses a complete wire packet held in b.
func Decode(b []byte) (*Packet, error) {
	if len(b) < HeaderSize {
		return nil, Malformed("decode header", fmt.Errorf("need %d bytes, have %d", HeaderSize, len(b)))
	}
	length := binary.BigEndian.Uint32(b[0:4])
	if int64(length) != int64(len(b)) {
		return nil, Malformed("decode header", fmt.Errorf("length field %d does not match %d bytes", length, len(b)))
	}
	p := parseHeader(b[:HeaderSize])
	p.Data = append([]byte(nil), b[HeaderSize:]...)
	return p, nil
}

func parseHeader(h []byte) *Packet {
	p := &Packet{
		ID:    int32(binary.BigEndian.Uint32(h[4:8])),
		Flags: h[8],
	}
	if p.IsReply() {
		p.ErrorCode = ErrorCode(int16(binary.BigEndian.Uint16(h[9:11])))
	} else {
		p.CmdSet = h[9]
		p.Cmd = h[10]
	}
	return p
}

// PacketReader decodes packets from a byte stream.
type PacketReader struct {
	reader io.Reader
}

// NewPacketReader creates a new packet reader.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{reader: r}
}

// ReadPacket reads a single packet from the stream, looping on short reads.
//
// Errors:
//   - io.EOF: stream ended cleanly at a packet boundary
//   - ErrMalformedPacket: length below the header size or above MaxPacketSize
//   - io.ErrUnexpectedEOF (wrapped): stream ended mid-packet
func (r *PacketReader) ReadPacket() (*Packet, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r.reader, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read packet header: %w", err)
	}

	length := int64(binary.BigEndian.Uint32(header[0:4]))
	payloadLen := length - HeaderSize
	if payloadLen < 0 {
		return nil, Malformed("read packet header", fmt.Errorf("length %d shorter than header", length))
	}
	if length > MaxPacketSize {
		return nil, Malformed("read packet header", fmt.Errorf("length %d exceeds maximum %d", length, MaxPacketSize))
	}

	p := parseHeader(header[:])
	p.Data = make([]byte, payloadLen)
	if _, err := io.ReadFull(r.reader, p.Data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read packet payload: %w", err)
	}
	return p, nil
}

// WritePacket writes a packet in a single Write call.
func WritePacket(w io.Writer, p *Packet) error {
	if _, err := w.Write(Encode(p)); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// Package jdwp implements the Java Debug Wire Protocol packet layer used by
// the proxy: packet values, payload streams, wire framing and the handshake.
package jdwp

import (
	"fmt"
	"math"
	"sync/atomic"
)

// FlagReply marks a packet as a reply to an earlier command.
const FlagReply uint8 = 0x80

// HeaderSize is the fixed header size: length(4) + id(4) + flags(1) + 2 bytes
// of either cmd_set/cmd or error_code.
const HeaderSize = 11

// Packet is a single JDWP packet. Packets are immutable once sent.
type Packet struct {
	ID        int32
	Flags     uint8
	CmdSet    uint8
	Cmd       uint8
	ErrorCode ErrorCode
	Data      []byte
}

// IsReply returns true if the Reply flag is set.
func (p *Packet) IsReply() bool {
	return p.Flags&FlagReply != 0
}

// Len returns the total wire length including the header.
func (p *Packet) Len() int {
	return HeaderSize + len(p.Data)
}

func (p *Packet) String() string {
	if p.IsReply() {
		return fmt.Sprintf("reply id=%d error=%d len=%d", p.ID, p.ErrorCode, len(p.Data))
	}
	return fmt.Sprintf("command id=%d cmd=%d/%d len=%d", p.ID, p.CmdSet, p.Cmd, len(p.Data))
}

// NewCommand builds a command packet.
func NewCommand(id int32, cmdSet, cmd uint8, data []byte) *Packet {
	return &Packet{ID: id, CmdSet: cmdSet, Cmd: cmd, Data: data}
}

// NewReply builds a reply packet echoing the id of req.
func NewReply(req *Packet, code ErrorCode, data []byte) *Packet {
	return &Packet{ID: req.ID, Flags: FlagReply, ErrorCode: code, Data: data}
}

// IDFactory hands out packet ids for packets originated by the proxy.
// Ids start at math.MinInt32 and increase, so proxy-issued ids are negative
// until the counter wraps (a known limitation).
type IDFactory struct {
	next atomic.Int32
}

// NewIDFactory creates a factory whose first id is math.MinInt32.
func NewIDFactory() *IDFactory {
	f := &IDFactory{}
	f.next.Store(math.MinInt32)
	return f
}

// Next returns the next packet id.
func (f *IDFactory) Next() int32 {
	return f.next.Add(1) - 1
}

package jdwp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"command empty", Packet{ID: 1, CmdSet: CmdSetVirtualMachine, Cmd: VMVersion}},
		{"command payload", Packet{ID: -2147483648, CmdSet: 99, Cmd: 1, Data: []byte{1, 2, 3, 4}}},
		{"reply ok", Packet{ID: 42, Flags: FlagReply, Data: []byte("abc")}},
		{"reply error", Packet{ID: -7, Flags: FlagReply, ErrorCode: ErrorAbsentInformation}},
		{"reply negative code", Packet{ID: 3, Flags: FlagReply, ErrorCode: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := Encode(&tt.pkt)
			if len(wire) != HeaderSize+len(tt.pkt.Data) {
				t.Fatalf("encoded length = %d, want %d", len(wire), HeaderSize+len(tt.pkt.Data))
			}

			got, err := Decode(wire)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			assertPacketEqual(t, got, &tt.pkt)

			streamed, err := NewPacketReader(bytes.NewReader(wire)).ReadPacket()
			if err != nil {
				t.Fatalf("ReadPacket failed: %v", err)
			}
			assertPacketEqual(t, streamed, &tt.pkt)
		})
	}
}

func TestEncode_HeaderLayout(t *testing.T) {
	wire := Encode(&Packet{ID: 0x01020304, CmdSet: 2, Cmd: 9, Data: []byte{0xAA}})
	want := []byte{0, 0, 0, 12, 1, 2, 3, 4, 0, 2, 9, 0xAA}
	if !bytes.Equal(wire, want) {
		t.Errorf("wire = %x, want %x", wire, want)
	}

	reply := Encode(&Packet{ID: 5, Flags: FlagReply, ErrorCode: ErrorInvalidObject})
	wantReply := []byte{0, 0, 0, 11, 0, 0, 0, 5, 0x80, 0, 20}
	if !bytes.Equal(reply, wantReply) {
		t.Errorf("reply wire = %x, want %x", reply, wantReply)
	}
}

func TestPacketReader_MultiplePackets(t *testing.T) {
	var buf bytes.Buffer
	packets := []*Packet{
		NewCommand(1, CmdSetVirtualMachine, VMIDSizes, nil),
		NewReply(&Packet{ID: 1}, ErrorNone, []byte{0, 0, 0, 8}),
		NewCommand(2, CmdSetEvent, EventComposite, []byte{2, 0, 0, 0, 0}),
	}
	for _, p := range packets {
		if err := WritePacket(&buf, p); err != nil {
			t.Fatalf("WritePacket failed: %v", err)
		}
	}

	r := NewPacketReader(&buf)
	for i, want := range packets {
		got, err := r.ReadPacket()
		if err != nil {
			t.Fatalf("packet %d: ReadPacket failed: %v", i, err)
		}
		assertPacketEqual(t, got, want)
	}
	if _, err := r.ReadPacket(); err != io.EOF {
		t.Errorf("expected io.EOF after last packet, got %v", err)
	}
}

func TestPacketReader_LengthBelowHeader(t *testing.T) {
	wire := Encode(&Packet{ID: 1, CmdSet: 1, Cmd: 1})
	binary.BigEndian.PutUint32(wire[0:4], 5)

	_, err := NewPacketReader(bytes.NewReader(wire)).ReadPacket()
	if !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("expected ErrMalformedPacket, got %v", err)
	}
}

func TestPacketReader_TooLarge(t *testing.T) {
	wire := Encode(&Packet{ID: 1, CmdSet: 1, Cmd: 1})
	binary.BigEndian.PutUint32(wire[0:4], MaxPacketSize+1)

	_, err := NewPacketReader(bytes.NewReader(wire)).ReadPacket()
	if !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("expected ErrMalformedPacket, got %v", err)
	}
}

func TestPacketReader_PartialPayload(t *testing.T) {
	wire := Encode(&Packet{ID: 1, CmdSet: 1, Cmd: 1, Data: []byte{1, 2, 3, 4}})

	_, err := NewPacketReader(bytes.NewReader(wire[:len(wire)-2])).ReadPacket()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestPacketReader_PartialHeader(t *testing.T) {
	_, err := NewPacketReader(bytes.NewReader([]byte{0, 0, 0})).ReadPacket()
	if err == nil || err == io.EOF {
		t.Fatalf("expected partial header error, got %v", err)
	}
}

// oneByteReader returns at most one byte per Read to exercise short reads.
type oneByteReader struct {
	r io.Reader
}

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestPacketReader_ShortReads(t *testing.T) {
	want := &Packet{ID: 9, CmdSet: 2, Cmd: 5, Data: bytes.Repeat([]byte{7}, 300)}
	r := NewPacketReader(oneByteReader{r: bytes.NewReader(Encode(want))})

	got, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket failed: %v", err)
	}
	assertPacketEqual(t, got, want)
}

func TestDecode_LengthMismatch(t *testing.T) {
	wire := Encode(&Packet{ID: 1, CmdSet: 1, Cmd: 1, Data: []byte{1}})
	if _, err := Decode(wire[:len(wire)-1]); !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("expected ErrMalformedPacket, got %v", err)
	}
}

func assertPacketEqual(t *testing.T, got, want *Packet) {
	t.Helper()
	if got.ID != want.ID {
		t.Errorf("ID = %d, want %d", got.ID, want.ID)
	}
	if got.Flags != want.Flags {
		t.Errorf("Flags = %#x, want %#x", got.Flags, want.Flags)
	}
	if want.IsReply() {
		if got.ErrorCode != want.ErrorCode {
			t.Errorf("ErrorCode = %d, want %d", got.ErrorCode, want.ErrorCode)
		}
	} else if got.CmdSet != want.CmdSet || got.Cmd != want.Cmd {
		t.Errorf("cmd = %d/%d, want %d/%d", got.CmdSet, got.Cmd, want.CmdSet, want.Cmd)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Errorf("Data = %x, want %x", got.Data, want.Data)
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		set, cmd uint8
		want     string
	}{
		{CmdSetVirtualMachine, VMIDSizes, "VirtualMachine.IDSizes"},
		{CmdSetKVM, KVMSteppingInfo, "KVM.SteppingInfo"},
		{CmdSetEventRequest, 1, "EventRequest.1"},
		{99, 3, "99.3"},
	}
	for _, tt := range tests {
		if got := CommandName(tt.set, tt.cmd); got != tt.want {
			t.Errorf("CommandName(%d, %d) = %q, want %q", tt.set, tt.cmd, got, tt.want)
		}
	}
}

package jdwp

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

// recordingSender records sent packets and answers WaitForReply from a map.
type recordingSender struct {
	mu      sync.Mutex
	sent    []*Packet
	replies map[int32]*Packet
	waitErr error
}

func (r *recordingSender) Send(p *Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return nil
}

func (r *recordingSender) WaitForReply(_ context.Context, id int32) (*Packet, error) {
	if r.waitErr != nil {
		return nil, r.waitErr
	}
	return r.replies[id], nil
}

func TestPacketStream_WriteReadPrimitives(t *testing.T) {
	for _, size := range []int{4, 8} {
		s := NewCommandStream(&recordingSender{}, 1, CmdSetMethod, MethodLineTable, size)
		s.WriteUint8(0xFE)
		s.WriteBool(true)
		s.WriteInt16(-2)
		s.WriteInt32(-123456)
		s.WriteInt64(math.MaxInt64)
		s.WriteString("com/foo/Bar")
		s.WriteString("")
		s.WriteObjectID(77)
		s.WriteFieldID(MakeFieldID(5, 3))
		s.WriteMethodID(MakeMethodID(5, 2, 0, size))
		s.WriteLocation(Location{Tag: TypeTagClass, ClassID: 5, MethodID: 3, Index: 12})

		r := NewReadStream(s.Packet(), size)
		if v := r.ReadUint8(); v != 0xFE {
			t.Errorf("size %d: ReadUint8 = %#x", size, v)
		}
		if !r.ReadBool() {
			t.Errorf("size %d: ReadBool = false", size)
		}
		if v := r.ReadInt16(); v != -2 {
			t.Errorf("size %d: ReadInt16 = %d", size, v)
		}
		if v := r.ReadInt32(); v != -123456 {
			t.Errorf("size %d: ReadInt32 = %d", size, v)
		}
		if v := r.ReadInt64(); v != math.MaxInt64 {
			t.Errorf("size %d: ReadInt64 = %d", size, v)
		}
		if v := r.ReadString(); v != "com/foo/Bar" {
			t.Errorf("size %d: ReadString = %q", size, v)
		}
		if v := r.ReadString(); v != "" {
			t.Errorf("size %d: empty ReadString = %q", size, v)
		}
		if v := r.ReadObjectID(); v != 77 {
			t.Errorf("size %d: ReadObjectID = %d", size, v)
		}
		if v := FieldIndex(r.ReadFieldID()); v != 3 {
			t.Errorf("size %d: field index = %d", size, v)
		}
		if v := MethodIndex(r.ReadMethodID(), 0); v != 2 {
			t.Errorf("size %d: method index = %d", size, v)
		}
		loc := r.ReadLocation()
		if loc.ClassID != 5 || loc.MethodID != 3 || loc.Index != 12 || loc.Tag != TypeTagClass {
			t.Errorf("size %d: ReadLocation = %+v", size, loc)
		}
		if r.Err() != nil {
			t.Errorf("size %d: unexpected error: %v", size, r.Err())
		}
		if r.Remaining() != 0 {
			t.Errorf("size %d: Remaining = %d, want 0", size, r.Remaining())
		}
	}
}

func TestPacketStream_TruncatedString(t *testing.T) {
	// Declares 10 bytes but carries 3.
	p := &Packet{Data: []byte{0, 0, 0, 10, 'a', 'b', 'c'}}
	r := NewReadStream(p, 4)

	if v := r.ReadString(); v != "" {
		t.Errorf("ReadString = %q, want empty", v)
	}
	if !errors.Is(r.Err(), ErrTruncatedPacket) {
		t.Fatalf("Err = %v, want ErrTruncatedPacket", r.Err())
	}
	if CodeOf(r.Err()) != ErrorIllegalArgument {
		t.Errorf("CodeOf = %d, want %d", CodeOf(r.Err()), ErrorIllegalArgument)
	}

	// Subsequent reads stay zero and keep the first error.
	if v := r.ReadInt32(); v != 0 {
		t.Errorf("ReadInt32 after truncation = %d", v)
	}
}

func TestPacketStream_NegativeStringLength(t *testing.T) {
	p := &Packet{Data: []byte{0xFF, 0xFF, 0xFF, 0xFF, 'a'}}
	r := NewReadStream(p, 4)
	_ = r.ReadString()
	if !errors.Is(r.Err(), ErrTruncatedPacket) {
		t.Fatalf("Err = %v, want ErrTruncatedPacket", r.Err())
	}
}

func TestPacketStream_ShortFixedWidth(t *testing.T) {
	r := NewReadStream(&Packet{Data: []byte{1, 2}}, 8)
	if v := r.ReadMethodID(); v != 0 {
		t.Errorf("ReadMethodID = %d, want 0", v)
	}
	if !errors.Is(r.Err(), ErrTruncatedPacket) {
		t.Fatalf("Err = %v, want ErrTruncatedPacket", r.Err())
	}
}

func TestPacketStream_SendIdempotent(t *testing.T) {
	sender := &recordingSender{}
	s := NewCommandStream(sender, -5, CmdSetVirtualMachine, VMVersion, 4)
	s.WriteInt32(1)

	if err := s.Send(); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	if err := s.Send(); err != nil {
		t.Fatalf("second Send failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d packets, want 1", len(sender.sent))
	}
	if len(sender.sent[0].Data) != 4 {
		t.Errorf("payload length = %d, want 4", len(sender.sent[0].Data))
	}
}

func TestPacketStream_ReplyEchoesID(t *testing.T) {
	sender := &recordingSender{}
	req := &Packet{ID: 31, CmdSet: CmdSetVirtualMachine, Cmd: VMVersion}
	s := NewReplyStream(sender, req, 4)
	s.SetErrorCode(ErrorAbsentInformation)
	if err := s.Send(); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got := sender.sent[0]
	if !got.IsReply() || got.ID != 31 || got.ErrorCode != ErrorAbsentInformation {
		t.Errorf("reply = %v", got)
	}
}

func TestPacketStream_WaitForReply(t *testing.T) {
	sender := &recordingSender{replies: map[int32]*Packet{
		-10: {ID: -10, Flags: FlagReply, Data: []byte{0, 0, 0, 3}},
		-11: {ID: -11, Flags: FlagReply, ErrorCode: ErrorInvalidObject},
	}}

	s := NewCommandStream(sender, -10, CmdSetReferenceType, RTStatus, 4)
	reply, err := s.WaitForReply(t.Context())
	if err != nil {
		t.Fatalf("WaitForReply failed: %v", err)
	}
	if v := reply.ReadInt32(); v != 3 {
		t.Errorf("reply value = %d, want 3", v)
	}
	if len(sender.sent) != 1 {
		t.Errorf("WaitForReply should send once, sent %d", len(sender.sent))
	}

	_, err = NewCommandStream(sender, -11, CmdSetReferenceType, RTStatus, 4).WaitForReply(t.Context())
	var vmErr *VMError
	if !errors.As(err, &vmErr) || vmErr.Code != ErrorInvalidObject {
		t.Fatalf("expected VMError(20), got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("VMError(INVALID_OBJECT) should match ErrNotFound")
	}
}

func TestPacketStream_WaitForReplyClosed(t *testing.T) {
	sender := &recordingSender{waitErr: Closed("wait for reply")}
	_, err := NewCommandStream(sender, -1, 1, 1, 4).WaitForReply(t.Context())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestIDFactory_StartsAtMinInt32(t *testing.T) {
	f := NewIDFactory()
	if id := f.Next(); id != math.MinInt32 {
		t.Errorf("first id = %d, want %d", id, int32(math.MinInt32))
	}
	if id := f.Next(); id != math.MinInt32+1 {
		t.Errorf("second id = %d, want %d", id, int32(math.MinInt32+1))
	}
}

func TestIDFactory_ConcurrentUnique(t *testing.T) {
	f := NewIDFactory()
	const workers, per = 8, 500

	var mu sync.Mutex
	seen := make(map[int32]bool, workers*per)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range per {
				id := f.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Errorf("unique ids = %d, want %d", len(seen), workers*per)
	}
}

func TestIDs_MethodAndField(t *testing.T) {
	tests := []struct {
		classID int32
		index   int
		base    int
		size    int
	}{
		{1, 0, 0, 4},
		{1, 0, 1, 4},
		{12345, 7, 0, 8},
		{-3, 2, 1, 8},
	}
	for _, tt := range tests {
		id := MakeMethodID(tt.classID, tt.index, tt.base, tt.size)
		if got := MethodIndex(id, tt.base); got != tt.index {
			t.Errorf("MethodIndex(MakeMethodID(%+v)) = %d", tt, got)
		}
		if tt.size == 8 && int32(id>>32) != tt.classID {
			t.Errorf("8-byte method id high word = %d, want %d", int32(id>>32), tt.classID)
		}

		fid := MakeFieldID(tt.classID, tt.index)
		if got := FieldIndex(fid); got != tt.index {
			t.Errorf("FieldIndex = %d, want %d", got, tt.index)
		}
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ErrorNone},
		{"vm error", &VMError{Code: ErrorInvalidThread}, ErrorInvalidThread},
		{"not found method", NotFound(ErrorInvalidMethodID, "Method.LineTable"), ErrorInvalidMethodID},
		{"bare not found", ErrNotFound, ErrorInvalidObject},
		{"closed", Closed("send"), ErrorVMDead},
		{"other", errors.New("boom"), ErrorInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf = %d, want %d", got, tt.want)
			}
		})
	}
}

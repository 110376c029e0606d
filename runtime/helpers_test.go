package runtime

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/kdp/adapter"
	"github.com/pithecene-io/kdp/jdwp"
)

// fakeVM answers the vendor handshake and ThreadReference.Name; everything
// else gets NOT_IMPLEMENTED.
type fakeVM struct {
	vmVersion string
	bits      int32

	mu    sync.Mutex
	conns []net.Conn
}

func newFakeVM() *fakeVM {
	return &fakeVM{vmVersion: "1.2.0"}
}

// Dial is a DialFunc serving each call from a fresh pipe.
func (vm *fakeVM) Dial(_ context.Context, _ string) (net.Conn, error) {
	proxySide, vmSide := net.Pipe()
	vm.mu.Lock()
	vm.conns = append(vm.conns, vmSide)
	vm.mu.Unlock()
	go vm.serve(vmSide)
	return proxySide, nil
}

func (vm *fakeVM) close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, c := range vm.conns {
		_ = c.Close()
	}
}

func (vm *fakeVM) serve(conn net.Conn) {
	defer conn.Close()
	if err := jdwp.AcceptHandshake(conn); err != nil {
		return
	}
	r := jdwp.NewPacketReader(conn)
	for {
		p, err := r.ReadPacket()
		if err != nil {
			return
		}
		if p.IsReply() {
			continue
		}
		out := jdwp.NewReplyStream(nil, p, 4)
		switch [2]uint8{p.CmdSet, p.Cmd} {
		case [2]uint8{jdwp.CmdSetKVM, jdwp.KVMHandshake}:
			out.WriteString(vm.vmVersion)
			out.WriteInt32(vm.bits)
		case [2]uint8{jdwp.CmdSetThreadReference, jdwp.ThreadName}:
			out.WriteString("worker")
		default:
			out.SetErrorCode(jdwp.ErrorNotImplemented)
		}
		if err := jdwp.WritePacket(conn, out.Packet()); err != nil {
			return
		}
	}
}

// failingDial never reaches a VM.
func failingDial(_ context.Context, _ string) (net.Conn, error) {
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

// debugThreadName handshakes as a debugger on conn, asks for the id sizes
// (which waits for option negotiation) and one thread name, and returns
// the name.
// It runs on a helper goroutine, so failures are reported with Errorf.
func debugThreadName(t *testing.T, conn net.Conn) string {
	t.Helper()
	if err := jdwp.InitiateHandshake(conn); err != nil {
		t.Errorf("debugger handshake: %v", err)
		return ""
	}
	r := jdwp.NewPacketReader(conn)

	if call(t, conn, r, jdwp.NewCommandStream(nil, 1, jdwp.CmdSetVirtualMachine, jdwp.VMIDSizes, 4)) == nil {
		return ""
	}

	req := jdwp.NewCommandStream(nil, 2, jdwp.CmdSetThreadReference, jdwp.ThreadName, 4)
	req.WriteObjectID(1)
	reply := call(t, conn, r, req)
	if reply == nil {
		return ""
	}
	return jdwp.NewReadStream(reply, 4).ReadString()
}

// call writes req and reads until its reply arrives. It returns nil after
// reporting a failure.
func call(t *testing.T, conn net.Conn, r *jdwp.PacketReader, req *jdwp.PacketStream) *jdwp.Packet {
	t.Helper()
	p := req.Packet()
	if err := jdwp.WritePacket(conn, p); err != nil {
		t.Errorf("write %d/%d: %v", p.CmdSet, p.Cmd, err)
		return nil
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		got, err := r.ReadPacket()
		if err != nil {
			t.Errorf("read reply %d: %v", p.ID, err)
			return nil
		}
		if got.IsReply() && got.ID == p.ID {
			return got
		}
	}
}

// recordingAdapter collects published events.
type recordingAdapter struct {
	mu     sync.Mutex
	events []*adapter.SessionCompletedEvent
	err    error
	closed bool
}

func (a *recordingAdapter) Publish(_ context.Context, event *adapter.SessionCompletedEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return a.err
}

func (a *recordingAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *recordingAdapter) Events() []*adapter.SessionCompletedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*adapter.SessionCompletedEvent(nil), a.events...)
}

var _ adapter.Adapter = (*recordingAdapter)(nil)

package proxy

import (
	"net"
	"sync"

	"github.com/pithecene-io/kdp/jdwp"
)

// Transport frames packets over one connection.
// Reads happen on a single goroutine; writes are serialized.
type Transport struct {
	conn   net.Conn
	reader *jdwp.PacketReader

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewTransport wraps conn.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{
		conn:   conn,
		reader: jdwp.NewPacketReader(conn),
	}
}

// ReadPacket blocks for the next packet.
func (t *Transport) ReadPacket() (*jdwp.Packet, error) {
	return t.reader.ReadPacket()
}

// WritePacket writes p as one frame.
func (t *Transport) WritePacket(p *jdwp.Packet) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return jdwp.WritePacket(t.conn, p)
}

// Accept performs the debugger-side handshake: receive, then echo.
func (t *Transport) Accept() error {
	return jdwp.AcceptHandshake(t.conn)
}

// Initiate performs the VM-side handshake: send, then receive.
func (t *Transport) Initiate() error {
	return jdwp.InitiateHandshake(t.conn)
}

// RemoteAddr returns the peer address.
func (t *Transport) RemoteAddr() string {
	if a := t.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Close closes the connection, unblocking ReadPacket. It is idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.Close()
	})
	return err
}

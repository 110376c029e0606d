package jdwp

import (
	"bytes"
	"fmt"
	"io"
)

// Handshake is the literal exchanged before any framed packet.
const Handshake = "JDWP-Handshake"

// AcceptHandshake is the debugger-facing side: receive the handshake, then echo it.
func AcceptHandshake(rw io.ReadWriter) error {
	if err := expectHandshake(rw); err != nil {
		return err
	}
	if _, err := io.WriteString(rw, Handshake); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}
	return nil
}

// InitiateHandshake is the VM-facing side: send the handshake, then expect it back.
func InitiateHandshake(rw io.ReadWriter) error {
	if _, err := io.WriteString(rw, Handshake); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}
	return expectHandshake(rw)
}

func expectHandshake(r io.Reader) error {
	buf := make([]byte, len(Handshake))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	if !bytes.Equal(buf, []byte(Handshake)) {
		return Malformed("handshake", fmt.Errorf("unexpected handshake %q", buf))
	}
	return nil
}

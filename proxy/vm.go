package proxy

import (
	"context"

	"github.com/pithecene-io/kdp/jdwp"
)

func vmHandlers(l *Listener) map[cmdKey]handlerFunc {
	h := &vmSide{l: l}
	return map[cmdKey]handlerFunc{
		{jdwp.CmdSetEvent, jdwp.EventComposite}: h.composite,
		{jdwp.CmdSetKVM, jdwp.KVMSteppingInfo}:  h.steppingInfo,
	}
}

// vmSide handles commands and events sent by the VM.
type vmSide struct {
	l *Listener
}

// composite learns from an event before forwarding it unchanged: prepared
// classes go into the cache and suspend-all events are counted for legacy
// resume.
func (h *vmSide) composite(_ context.Context, p *jdwp.Packet) error {
	s := h.l.session
	in := h.l.read(p)
	policy := in.ReadUint8()
	n := in.ReadInt32()
	if in.Err() != nil {
		return errForward
	}
	if policy == jdwp.SuspendAll && s.Config.LegacyResume {
		s.AddSuspend()
	}

	for i := int32(0); i < n; i++ {
		kind := in.ReadUint8()
		in.ReadInt32() // request id
		if !h.skipEvent(in, kind) || in.Err() != nil {
			break
		}
	}
	return errForward
}

// skipEvent consumes one event body, caching ClassPrepare events. It reports
// false for kinds whose size it cannot determine.
func (h *vmSide) skipEvent(in *jdwp.PacketStream, kind uint8) bool {
	switch kind {
	case jdwp.EventKindSingleStep, jdwp.EventKindBreakpoint,
		jdwp.EventKindMethodEntry, jdwp.EventKindMethodExit:
		in.ReadObjectID()
		in.ReadLocation()
	case jdwp.EventKindException:
		in.ReadObjectID()
		in.ReadLocation()
		in.ReadUint8()
		in.ReadObjectID()
		in.ReadLocation()
	case jdwp.EventKindThreadStart, jdwp.EventKindThreadDeath, jdwp.EventKindVMStart:
		in.ReadObjectID()
	case jdwp.EventKindClassUnload:
		in.ReadString()
	case jdwp.EventKindClassPrepare:
		in.ReadObjectID()
		tag := in.ReadUint8()
		id := in.ReadReferenceTypeID()
		sig := in.ReadString()
		status := in.ReadInt32()
		if in.Err() != nil {
			return false
		}
		meta := h.l.session.remember(id, sig, tag, status, h.l)
		h.l.logger.Debug("class prepared", map[string]any{
			"class":      meta.Name,
			"id":         id,
			"class_file": meta.File != nil,
		})
	case jdwp.EventKindVMDeath:
	default:
		return false
	}
	return true
}

func (h *vmSide) steppingInfo(ctx context.Context, p *jdwp.Packet) error {
	if _, err := h.l.session.Options(ctx); err != nil {
		return err
	}
	in := h.l.read(p)
	classID := in.ReadReferenceTypeID()
	methodID := in.ReadMethodID()
	offset := uint64(in.ReadInt64())
	if err := in.Err(); err != nil {
		return err
	}

	meta, ok := h.l.session.Cache.Lookup(classID)
	if !ok {
		return jdwp.NotFound(jdwp.ErrorInvalidClass, "stepping info")
	}
	if meta.File == nil {
		return jdwp.NotFound(jdwp.ErrorAbsentInformation, "stepping info")
	}
	m, ok := meta.File.Method(jdwp.MethodIndex(methodID, h.l.session.indexBase()), 0)
	if !ok {
		return jdwp.NotFound(jdwp.ErrorInvalidMethodID, "stepping info")
	}
	next, dupStart, dupEnd, ok := SteppingInfo(m, offset)
	if !ok {
		return jdwp.NotFound(jdwp.ErrorAbsentInformation, "stepping info")
	}

	r := h.l.Reply(p)
	r.WriteInt64(next)
	r.WriteInt64(dupStart)
	r.WriteInt64(dupEnd)
	return r.Send()
}

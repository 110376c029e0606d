package proxy

import (
	"errors"

	"github.com/pithecene-io/kdp/cache"
	"github.com/pithecene-io/kdp/classfile"
	"github.com/pithecene-io/kdp/jdwp"
)

// vmClass is one entry of a VirtualMachine.AllClasses reply.
type vmClass struct {
	TypeTag   uint8
	ID        int32
	Signature string
	Status    int32
}

func (s *Session) readAllClasses(in *jdwp.PacketStream) ([]vmClass, error) {
	n := in.ReadInt32()
	out := make([]vmClass, 0, max(min(n, 1024), 0))
	for i := int32(0); i < n && in.Err() == nil; i++ {
		c := vmClass{
			TypeTag:   in.ReadUint8(),
			ID:        in.ReadReferenceTypeID(),
			Signature: in.ReadString(),
			Status:    in.ReadInt32(),
		}
		if in.Err() == nil {
			out = append(out, c)
		}
	}
	return out, in.Err()
}

// remember caches a class reported by the VM and, the first time it is seen,
// attaches its class file from the classpath. A missing class file is not an
// error: commands about that class are then forwarded to the VM.
func (s *Session) remember(id int32, sig string, tag uint8, status int32, l *Listener) cache.ClassMetadata {
	meta := s.Cache.ResolveByID(id, sig, tag, status)
	if meta.File != nil || meta.Kind == cache.ClassKindArray || s.Config.ClassPath == nil {
		return meta
	}

	cf, err := s.Config.ClassPath.Load(meta.Name)
	if err != nil {
		if !errors.Is(err, classfile.ErrClassNotFound) {
			l.logger.Warn("class file unreadable", map[string]any{
				"class": meta.Name,
				"error": err.Error(),
			})
		}
		return meta
	}
	s.Cache.AttachClassFile(id, cf)
	meta.File = cf
	return meta
}

// ReloadClass re-reads the class file of an internal name after it changed
// on disk. It reports whether a cached class was updated.
func (s *Session) ReloadClass(name string) bool {
	meta, ok := s.Cache.ResolveBySignature(cache.SignatureFromName(name))
	if !ok || s.Config.ClassPath == nil {
		return false
	}
	s.Config.ClassPath.Invalidate(name)
	cf, err := s.Config.ClassPath.Load(name)
	if err != nil {
		return false
	}
	return s.Cache.AttachClassFile(meta.ID, cf)
}

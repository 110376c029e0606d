package proxy

import (
	"context"
	"errors"
	"math"

	"github.com/pithecene-io/kdp/cache"
	"github.com/pithecene-io/kdp/classfile"
	"github.com/pithecene-io/kdp/jdwp"
)

// syntheticGroupID is the id of the single thread group the proxy reports.
// KVM has no thread groups; every thread belongs to this one.
const syntheticGroupID int32 = math.MaxInt32

const syntheticGroupName = "main"

// capabilitiesNewCount is the number of booleans in a CapabilitiesNew reply.
const capabilitiesNewCount = 32

// canGetBytecodes is the position of the only capability the proxy claims.
const canGetBytecodes = 2

func debuggerHandlers(l *Listener) map[cmdKey]handlerFunc {
	h := &debuggerSide{l: l}
	return map[cmdKey]handlerFunc{
		{jdwp.CmdSetVirtualMachine, jdwp.VMVersion}:              h.version,
		{jdwp.CmdSetVirtualMachine, jdwp.VMClassesBySignature}:   h.classesBySignature,
		{jdwp.CmdSetVirtualMachine, jdwp.VMAllClasses}:           h.allClasses,
		{jdwp.CmdSetVirtualMachine, jdwp.VMTopLevelThreadGroups}: h.topLevelThreadGroups,
		{jdwp.CmdSetVirtualMachine, jdwp.VMDispose}:              h.dispose,
		{jdwp.CmdSetVirtualMachine, jdwp.VMIDSizes}:              h.idSizes,
		{jdwp.CmdSetVirtualMachine, jdwp.VMSuspend}:              h.suspend,
		{jdwp.CmdSetVirtualMachine, jdwp.VMResume}:               h.resume,
		{jdwp.CmdSetVirtualMachine, jdwp.VMCapabilities}:         h.capabilities,
		{jdwp.CmdSetVirtualMachine, jdwp.VMClassPaths}:           h.classPaths,
		{jdwp.CmdSetVirtualMachine, jdwp.VMDisposeObjects}:       h.emptyReply,
		{jdwp.CmdSetVirtualMachine, jdwp.VMCapabilitiesNew}:      h.capabilitiesNew,

		{jdwp.CmdSetReferenceType, jdwp.RTSignature}:   h.signature,
		{jdwp.CmdSetReferenceType, jdwp.RTClassLoader}: h.classLoader,
		{jdwp.CmdSetReferenceType, jdwp.RTModifiers}:   h.modifiers,
		{jdwp.CmdSetReferenceType, jdwp.RTFields}:      h.fields,
		{jdwp.CmdSetReferenceType, jdwp.RTMethods}:     h.methods,
		{jdwp.CmdSetReferenceType, jdwp.RTSourceFile}:  h.sourceFile,
		{jdwp.CmdSetReferenceType, jdwp.RTStatus}:      h.status,
		{jdwp.CmdSetReferenceType, jdwp.RTInterfaces}:  h.interfaces,

		{jdwp.CmdSetMethod, jdwp.MethodLineTable}:     h.lineTable,
		{jdwp.CmdSetMethod, jdwp.MethodVariableTable}: h.variableTable,
		{jdwp.CmdSetMethod, jdwp.MethodBytecodes}:     h.bytecodes,

		{jdwp.CmdSetThreadReference, jdwp.ThreadThreadGroup}: h.threadGroup,

		{jdwp.CmdSetThreadGroupReference, jdwp.ThreadGroupName}:     h.groupName,
		{jdwp.CmdSetThreadGroupReference, jdwp.ThreadGroupParent}:   h.groupParent,
		{jdwp.CmdSetThreadGroupReference, jdwp.ThreadGroupChildren}: h.groupChildren,

		{jdwp.CmdSetStackFrame, jdwp.FrameThisObject}: h.thisObject,
	}
}

// debuggerSide answers debugger commands the VM cannot.
type debuggerSide struct {
	l *Listener
}

func (h *debuggerSide) session() *Session {
	return h.l.session
}

// --- VirtualMachine ---

func (h *debuggerSide) version(_ context.Context, p *jdwp.Packet) error {
	cfg := h.session().Config
	opts, _ := h.session().OptionsIfReady()

	r := h.l.Reply(p)
	r.WriteString(describe(cfg))
	r.WriteInt32(versionMajor(cfg))
	r.WriteInt32(versionMinor(cfg))
	r.WriteString(opts.VMVersion)
	r.WriteString("KVM")
	return r.Send()
}

func (h *debuggerSide) classesBySignature(ctx context.Context, p *jdwp.Packet) error {
	in := h.l.read(p)
	sig := in.ReadString()
	if err := in.Err(); err != nil {
		return err
	}

	var found []cache.ClassMetadata
	if meta, ok := h.session().Cache.ResolveBySignature(sig); ok {
		h.l.metrics.IncCacheHit()
		found = append(found, meta)
	} else {
		h.l.metrics.IncCacheMiss()
		var err error
		if found, err = h.lookupSignature(ctx, sig); err != nil {
			return err
		}
	}

	r := h.l.Reply(p)
	r.WriteInt32(int32(len(found)))
	for _, meta := range found {
		r.WriteUint8(meta.TypeTag)
		r.WriteReferenceTypeID(meta.ID)
		r.WriteInt32(meta.Status)
	}
	return r.Send()
}

// lookupSignature asks the VM for the classes matching sig and caches them.
func (h *debuggerSide) lookupSignature(ctx context.Context, sig string) ([]cache.ClassMetadata, error) {
	req := h.l.vm().Command(jdwp.CmdSetVirtualMachine, jdwp.VMClassesBySignature)
	req.WriteString(sig)
	in, err := req.WaitForReply(ctx)
	if err != nil {
		return nil, err
	}

	n := in.ReadInt32()
	var out []cache.ClassMetadata
	for i := int32(0); i < n && in.Err() == nil; i++ {
		tag := in.ReadUint8()
		id := in.ReadReferenceTypeID()
		status := in.ReadInt32()
		if in.Err() != nil {
			break
		}
		out = append(out, h.remember(id, sig, tag, status))
	}
	return out, in.Err()
}

func (h *debuggerSide) allClasses(ctx context.Context, p *jdwp.Packet) error {
	in, err := h.l.vm().Command(jdwp.CmdSetVirtualMachine, jdwp.VMAllClasses).WaitForReply(ctx)
	if err != nil {
		return err
	}
	classes, err := h.session().readAllClasses(in)
	if err != nil {
		return err
	}

	r := h.l.Reply(p)
	r.WriteInt32(int32(len(classes)))
	for _, c := range classes {
		meta := h.remember(c.ID, c.Signature, c.TypeTag, c.Status)
		r.WriteUint8(meta.TypeTag)
		r.WriteReferenceTypeID(meta.ID)
		r.WriteString(meta.Signature)
		r.WriteInt32(meta.Status)
	}
	return r.Send()
}

func (h *debuggerSide) topLevelThreadGroups(_ context.Context, p *jdwp.Packet) error {
	r := h.l.Reply(p)
	r.WriteInt32(1)
	r.WriteObjectID(syntheticGroupID)
	return r.Send()
}

func (h *debuggerSide) dispose(ctx context.Context, p *jdwp.Packet) error {
	opts, err := h.session().Options(ctx)
	if err != nil {
		return err
	}
	if opts.SupportsDisposeCmd {
		return errForward
	}
	return h.emptyReply(ctx, p)
}

func (h *debuggerSide) idSizes(ctx context.Context, p *jdwp.Packet) error {
	opts, err := h.session().Options(ctx)
	if err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteInt32(jdwp.FieldIDSize)
	r.WriteInt32(int32(opts.MethodIDSize))
	r.WriteInt32(jdwp.ObjectIDSize)
	r.WriteInt32(jdwp.ReferenceTypeIDSize)
	r.WriteInt32(jdwp.FrameIDSize)
	return r.Send()
}

func (h *debuggerSide) suspend(_ context.Context, _ *jdwp.Packet) error {
	if h.session().Config.LegacyResume {
		h.session().AddSuspend()
	}
	return errForward
}

// resume forwards unchanged unless legacy resume counting is on. In that mode
// the VM keeps a suspend count, so one debugger resume is sent as one VM resume
// per outstanding suspension.
func (h *debuggerSide) resume(ctx context.Context, p *jdwp.Packet) error {
	if !h.session().Config.LegacyResume {
		return errForward
	}
	n := max(h.session().TakeSuspends(), 1)
	for range n {
		req := h.l.vm().Command(jdwp.CmdSetVirtualMachine, jdwp.VMResume)
		if _, err := req.WaitForReply(ctx); err != nil {
			return err
		}
	}
	h.l.logger.Debug("expanded resume", map[string]any{"count": n})
	return h.emptyReply(ctx, p)
}

func (h *debuggerSide) capabilities(_ context.Context, p *jdwp.Packet) error {
	r := h.l.Reply(p)
	for i := range 7 {
		r.WriteBool(i == canGetBytecodes)
	}
	return r.Send()
}

func (h *debuggerSide) capabilitiesNew(_ context.Context, p *jdwp.Packet) error {
	r := h.l.Reply(p)
	for i := range capabilitiesNewCount {
		r.WriteBool(i == canGetBytecodes)
	}
	return r.Send()
}

func (h *debuggerSide) classPaths(_ context.Context, p *jdwp.Packet) error {
	entries := h.session().Config.ClassPath.Entries()

	r := h.l.Reply(p)
	r.WriteString("")
	r.WriteInt32(int32(len(entries)))
	for _, e := range entries {
		r.WriteString(e)
	}
	r.WriteInt32(0)
	return r.Send()
}

func (h *debuggerSide) emptyReply(_ context.Context, p *jdwp.Packet) error {
	return h.l.Reply(p).Send()
}

// --- ReferenceType ---

func (h *debuggerSide) signature(ctx context.Context, p *jdwp.Packet) error {
	meta, err := h.readClass(ctx, p)
	if err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteString(meta.Signature)
	return r.Send()
}

func (h *debuggerSide) classLoader(ctx context.Context, p *jdwp.Packet) error {
	if _, err := h.readClass(ctx, p); err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteObjectID(0)
	return r.Send()
}

func (h *debuggerSide) modifiers(ctx context.Context, p *jdwp.Packet) error {
	cf, _, err := h.readClassFile(ctx, p)
	if err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteInt32(int32(cf.AccessFlags))
	return r.Send()
}

func (h *debuggerSide) fields(ctx context.Context, p *jdwp.Packet) error {
	cf, meta, err := h.readClassFile(ctx, p)
	if err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteInt32(int32(len(cf.Fields)))
	for i, f := range cf.Fields {
		r.WriteFieldID(jdwp.MakeFieldID(meta.ID, i))
		r.WriteString(f.Name)
		r.WriteString(f.Descriptor)
		r.WriteInt32(int32(f.AccessFlags))
	}
	return r.Send()
}

func (h *debuggerSide) methods(ctx context.Context, p *jdwp.Packet) error {
	opts, err := h.session().Options(ctx)
	if err != nil {
		return err
	}
	cf, meta, err := h.readClassFile(ctx, p)
	if err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteInt32(int32(len(cf.Methods)))
	for i, m := range cf.Methods {
		r.WriteMethodID(jdwp.MakeMethodID(meta.ID, i, opts.IndexBase, opts.MethodIDSize))
		r.WriteString(m.Name)
		r.WriteString(m.Descriptor)
		r.WriteInt32(int32(m.AccessFlags))
	}
	return r.Send()
}

func (h *debuggerSide) sourceFile(ctx context.Context, p *jdwp.Packet) error {
	cf, _, err := h.readClassFile(ctx, p)
	if err != nil {
		return err
	}
	if cf.SourceFile == "" {
		return jdwp.NotFound(jdwp.ErrorAbsentInformation, "source file")
	}
	r := h.l.Reply(p)
	r.WriteString(cf.SourceFile)
	return r.Send()
}

func (h *debuggerSide) status(ctx context.Context, p *jdwp.Packet) error {
	meta, err := h.readClass(ctx, p)
	if err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteInt32(meta.Status)
	return r.Send()
}

// interfaces reports the directly implemented interfaces the VM has loaded.
func (h *debuggerSide) interfaces(ctx context.Context, p *jdwp.Packet) error {
	cf, _, err := h.readClassFile(ctx, p)
	if err != nil {
		return err
	}

	var ids []int32
	for _, name := range cf.Interfaces {
		sig := cache.SignatureFromName(name)
		if meta, ok := h.session().Cache.ResolveBySignature(sig); ok {
			ids = append(ids, meta.ID)
			continue
		}
		found, err := h.lookupSignature(ctx, sig)
		if err != nil {
			return err
		}
		for _, meta := range found {
			ids = append(ids, meta.ID)
		}
	}

	r := h.l.Reply(p)
	r.WriteInt32(int32(len(ids)))
	for _, id := range ids {
		r.WriteReferenceTypeID(id)
	}
	return r.Send()
}

// --- Method ---

func (h *debuggerSide) lineTable(ctx context.Context, p *jdwp.Packet) error {
	opts, err := h.session().Options(ctx)
	if err != nil {
		return err
	}
	if opts.SupportsLineTable {
		return errForward
	}
	m, err := h.readMethod(ctx, p)
	if err != nil {
		return err
	}

	r := h.l.Reply(p)
	if m.IsNative() {
		r.WriteInt64(-1)
		r.WriteInt64(-1)
		r.WriteInt32(0)
		return r.Send()
	}
	r.WriteInt64(0)
	r.WriteInt64(m.CodeEnd() - 1)
	r.WriteInt32(int32(len(m.LineNumbers)))
	for _, ln := range m.LineNumbers {
		r.WriteInt64(int64(ln.StartPC))
		r.WriteInt32(int32(ln.Line))
	}
	return r.Send()
}

func (h *debuggerSide) variableTable(ctx context.Context, p *jdwp.Packet) error {
	opts, err := h.session().Options(ctx)
	if err != nil {
		return err
	}
	if opts.SupportsVarTable {
		return errForward
	}
	m, err := h.readMethod(ctx, p)
	if err != nil {
		return err
	}
	if len(m.LocalVariables) == 0 {
		return jdwp.NotFound(jdwp.ErrorAbsentInformation, "variable table")
	}

	r := h.l.Reply(p)
	r.WriteInt32(int32(m.ArgSlots()))
	r.WriteInt32(int32(len(m.LocalVariables)))
	for _, v := range m.LocalVariables {
		r.WriteInt64(int64(v.StartPC))
		r.WriteString(v.Name)
		r.WriteString(v.Descriptor)
		r.WriteInt32(int32(v.Length))
		r.WriteInt32(int32(v.Slot))
	}
	return r.Send()
}

func (h *debuggerSide) bytecodes(ctx context.Context, p *jdwp.Packet) error {
	if _, err := h.session().Options(ctx); err != nil {
		return err
	}
	m, err := h.readMethod(ctx, p)
	if err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteInt32(int32(len(m.Code)))
	r.WriteBytes(m.Code)
	return r.Send()
}

// --- Threads and thread groups ---

func (h *debuggerSide) threadGroup(_ context.Context, p *jdwp.Packet) error {
	in := h.l.read(p)
	in.ReadObjectID()
	if err := in.Err(); err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteObjectID(syntheticGroupID)
	return r.Send()
}

func (h *debuggerSide) readGroup(p *jdwp.Packet) error {
	in := h.l.read(p)
	group := in.ReadObjectID()
	if err := in.Err(); err != nil {
		return err
	}
	if group != syntheticGroupID {
		return jdwp.NotFound(jdwp.ErrorInvalidThreadGroup, "thread group")
	}
	return nil
}

func (h *debuggerSide) groupName(_ context.Context, p *jdwp.Packet) error {
	if err := h.readGroup(p); err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteString(syntheticGroupName)
	return r.Send()
}

func (h *debuggerSide) groupParent(_ context.Context, p *jdwp.Packet) error {
	if err := h.readGroup(p); err != nil {
		return err
	}
	r := h.l.Reply(p)
	r.WriteObjectID(0)
	return r.Send()
}

func (h *debuggerSide) groupChildren(ctx context.Context, p *jdwp.Packet) error {
	if err := h.readGroup(p); err != nil {
		return err
	}
	in, err := h.l.vm().Command(jdwp.CmdSetVirtualMachine, jdwp.VMAllThreads).WaitForReply(ctx)
	if err != nil {
		return err
	}
	n := in.ReadInt32()
	threads := make([]int32, 0, max(n, 0))
	for i := int32(0); i < n && in.Err() == nil; i++ {
		threads = append(threads, in.ReadObjectID())
	}
	if err := in.Err(); err != nil {
		return err
	}

	r := h.l.Reply(p)
	r.WriteInt32(int32(len(threads)))
	for _, t := range threads {
		r.WriteObjectID(t)
	}
	r.WriteInt32(0)
	return r.Send()
}

// --- StackFrame ---

// thisObject reads local slot 0 of the frame. The VM numbers frames from an
// arbitrary base, learned once per session from the id of the top frame.
func (h *debuggerSide) thisObject(ctx context.Context, p *jdwp.Packet) error {
	in := h.l.read(p)
	thread := in.ReadObjectID()
	frame := in.ReadFrameID()
	if err := in.Err(); err != nil {
		return err
	}

	base, err := h.frameBase(ctx, thread)
	if err != nil {
		return err
	}
	_, loc, err := h.frames(ctx, thread, frame-base)
	if err != nil {
		return err
	}

	if static, known := h.isStatic(ctx, loc); known && static {
		r := h.l.Reply(p)
		r.WriteUint8(jdwp.TagObject)
		r.WriteObjectID(0)
		return r.Send()
	}

	req := h.l.vm().Command(jdwp.CmdSetStackFrame, jdwp.FrameGetValues)
	req.WriteObjectID(thread)
	req.WriteFrameID(frame)
	req.WriteInt32(1)
	req.WriteInt32(0)
	req.WriteUint8(jdwp.TagObject)
	values, err := req.WaitForReply(ctx)
	if err != nil {
		return err
	}
	if n := values.ReadInt32(); n != 1 && values.Err() == nil {
		return jdwp.Malformed("frame values", errors.New("expected one value"))
	}
	tag := values.ReadUint8()
	obj := values.ReadObjectID()
	if err := values.Err(); err != nil {
		return err
	}

	r := h.l.Reply(p)
	r.WriteUint8(tag)
	r.WriteObjectID(obj)
	return r.Send()
}

func (h *debuggerSide) frameBase(ctx context.Context, thread int32) (int32, error) {
	if base, ok := h.session().FrameBase(); ok {
		return base, nil
	}
	top, _, err := h.frames(ctx, thread, 0)
	if err != nil {
		return 0, err
	}
	h.session().setFrameBase(top)
	h.l.logger.Debug("frame base probed", map[string]any{"base": top})
	return top, nil
}

// frames asks the VM for the single frame at index.
func (h *debuggerSide) frames(ctx context.Context, thread, index int32) (int32, jdwp.Location, error) {
	req := h.l.vm().Command(jdwp.CmdSetThreadReference, jdwp.ThreadFrames)
	req.WriteObjectID(thread)
	req.WriteInt32(index)
	req.WriteInt32(1)
	in, err := req.WaitForReply(ctx)
	if err != nil {
		return 0, jdwp.Location{}, err
	}
	if n := in.ReadInt32(); n < 1 && in.Err() == nil {
		return 0, jdwp.Location{}, jdwp.NotFound(jdwp.ErrorInvalidFrameID, "frames")
	}
	id := in.ReadFrameID()
	loc := in.ReadLocation()
	return id, loc, in.Err()
}

// isStatic reports whether the method at loc is static. known is false when
// the class file is not available locally.
func (h *debuggerSide) isStatic(ctx context.Context, loc jdwp.Location) (static, known bool) {
	meta, err := h.classFor(ctx, loc.ClassID)
	if err != nil || meta.File == nil {
		return false, false
	}
	m, ok := meta.File.Method(jdwp.MethodIndex(loc.MethodID, h.session().indexBase()), 0)
	if !ok {
		return false, false
	}
	return m.IsStatic(), true
}

// --- Class resolution ---

// classFor returns the cached metadata for id. On a miss the VM is asked for
// the signature of id, then for the classes with that signature.
func (h *debuggerSide) classFor(ctx context.Context, id int32) (cache.ClassMetadata, error) {
	if meta, ok := h.session().Cache.Lookup(id); ok {
		h.l.metrics.IncCacheHit()
		return meta, nil
	}
	h.l.metrics.IncCacheMiss()

	req := h.l.vm().Command(jdwp.CmdSetReferenceType, jdwp.RTSignature)
	req.WriteReferenceTypeID(id)
	in, err := req.WaitForReply(ctx)
	if err != nil {
		return cache.ClassMetadata{}, err
	}
	sig := in.ReadString()
	if err := in.Err(); err != nil {
		return cache.ClassMetadata{}, err
	}

	found, err := h.lookupSignature(ctx, sig)
	if err != nil {
		return cache.ClassMetadata{}, err
	}
	for _, meta := range found {
		if meta.ID == id {
			return meta, nil
		}
	}
	return cache.ClassMetadata{}, jdwp.NotFound(jdwp.ErrorInvalidObject, "class")
}

// remember caches a class reported by the VM and attaches its class file.
func (h *debuggerSide) remember(id int32, sig string, tag uint8, status int32) cache.ClassMetadata {
	return h.session().remember(id, sig, tag, status, h.l)
}

func (h *debuggerSide) readClass(ctx context.Context, p *jdwp.Packet) (cache.ClassMetadata, error) {
	in := h.l.read(p)
	id := in.ReadReferenceTypeID()
	if err := in.Err(); err != nil {
		return cache.ClassMetadata{}, err
	}
	return h.classFor(ctx, id)
}

// readClassFile returns errForward when no local class file is known, leaving
// the command to the VM.
func (h *debuggerSide) readClassFile(ctx context.Context, p *jdwp.Packet) (*classfile.ClassFile, cache.ClassMetadata, error) {
	meta, err := h.readClass(ctx, p)
	if err != nil {
		return nil, meta, err
	}
	if meta.File == nil {
		return nil, meta, errForward
	}
	return meta.File, meta, nil
}

func (h *debuggerSide) readMethod(ctx context.Context, p *jdwp.Packet) (*classfile.Method, error) {
	in := h.l.read(p)
	classID := in.ReadReferenceTypeID()
	methodID := in.ReadMethodID()
	if err := in.Err(); err != nil {
		return nil, err
	}
	meta, err := h.classFor(ctx, classID)
	if err != nil {
		return nil, err
	}
	if meta.File == nil {
		return nil, errForward
	}
	m, ok := meta.File.Method(jdwp.MethodIndex(methodID, h.session().indexBase()), 0)
	if !ok {
		return nil, jdwp.NotFound(jdwp.ErrorInvalidMethodID, "method")
	}
	return m, nil
}

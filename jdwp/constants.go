package jdwp

// Command sets.
const (
	CmdSetVirtualMachine       uint8 = 1
	CmdSetReferenceType        uint8 = 2
	CmdSetClassType            uint8 = 3
	CmdSetArrayType            uint8 = 4
	CmdSetInterfaceType        uint8 = 5
	CmdSetMethod               uint8 = 6
	CmdSetField                uint8 = 8
	CmdSetObjectReference      uint8 = 9
	CmdSetStringReference      uint8 = 10
	CmdSetThreadReference      uint8 = 11
	CmdSetThreadGroupReference uint8 = 12
	CmdSetArrayReference       uint8 = 13
	CmdSetClassLoaderReference uint8 = 14
	CmdSetEventRequest         uint8 = 15
	CmdSetStackFrame           uint8 = 16
	CmdSetClassObjectReference uint8 = 17
	CmdSetEvent                uint8 = 64

	// CmdSetKVM is the vendor command set spoken between the proxy and the VM.
	CmdSetKVM uint8 = 128
)

// VirtualMachine commands.
const (
	VMVersion              uint8 = 1
	VMClassesBySignature   uint8 = 2
	VMAllClasses           uint8 = 3
	VMAllThreads           uint8 = 4
	VMTopLevelThreadGroups uint8 = 5
	VMDispose              uint8 = 6
	VMIDSizes              uint8 = 7
	VMSuspend              uint8 = 8
	VMResume               uint8 = 9
	VMExit                 uint8 = 10
	VMCreateString         uint8 = 11
	VMCapabilities         uint8 = 12
	VMClassPaths           uint8 = 13
	VMDisposeObjects       uint8 = 14
	VMHoldEvents           uint8 = 15
	VMReleaseEvents        uint8 = 16
	VMCapabilitiesNew      uint8 = 17
)

// ReferenceType commands.
const (
	RTSignature   uint8 = 1
	RTClassLoader uint8 = 2
	RTModifiers   uint8 = 3
	RTFields      uint8 = 4
	RTMethods     uint8 = 5
	RTGetValues   uint8 = 6
	RTSourceFile  uint8 = 7
	RTNestedTypes uint8 = 8
	RTStatus      uint8 = 9
	RTInterfaces  uint8 = 10
	RTClassObject uint8 = 11
)

// Method commands.
const (
	MethodLineTable     uint8 = 1
	MethodVariableTable uint8 = 2
	MethodBytecodes     uint8 = 3
)

// ThreadReference commands.
const (
	ThreadName        uint8 = 1
	ThreadSuspend     uint8 = 2
	ThreadResume      uint8 = 3
	ThreadStatus      uint8 = 4
	ThreadThreadGroup uint8 = 5
	ThreadFrames      uint8 = 6
	ThreadFrameCount  uint8 = 7
)

// ThreadGroupReference commands.
const (
	ThreadGroupName     uint8 = 1
	ThreadGroupParent   uint8 = 2
	ThreadGroupChildren uint8 = 3
)

// StackFrame commands.
const (
	FrameGetValues  uint8 = 1
	FrameSetValues  uint8 = 2
	FrameThisObject uint8 = 3
)

// Event commands.
const (
	EventComposite uint8 = 100
)

// KVM vendor commands.
const (
	KVMHandshake    uint8 = 1
	KVMSteppingInfo uint8 = 2
)

// Event kinds carried in composite events.
const (
	EventKindSingleStep     uint8 = 1
	EventKindBreakpoint     uint8 = 2
	EventKindFramePop       uint8 = 3
	EventKindException      uint8 = 4
	EventKindUserDefined    uint8 = 5
	EventKindThreadStart    uint8 = 6
	EventKindThreadDeath    uint8 = 7
	EventKindClassPrepare   uint8 = 8
	EventKindClassUnload    uint8 = 9
	EventKindClassLoad      uint8 = 10
	EventKindFieldAccess    uint8 = 20
	EventKindFieldModify    uint8 = 21
	EventKindExceptionCatch uint8 = 30
	EventKindMethodEntry    uint8 = 40
	EventKindMethodExit     uint8 = 41
	EventKindVMStart        uint8 = 90
	EventKindVMDeath        uint8 = 99
)

// Suspend policies.
const (
	SuspendNone        uint8 = 0
	SuspendEventThread uint8 = 1
	SuspendAll         uint8 = 2
)

// Reference type tags.
const (
	TypeTagClass     uint8 = 1
	TypeTagInterface uint8 = 2
	TypeTagArray     uint8 = 3
)

// Class status bits.
const (
	ClassStatusVerified    int32 = 1
	ClassStatusPrepared    int32 = 2
	ClassStatusInitialized int32 = 4
	ClassStatusError       int32 = 8
)

// Value tags.
const (
	TagArray  uint8 = '['
	TagObject uint8 = 'L'
	TagInt    uint8 = 'I'
	TagVoid   uint8 = 'V'
	TagThread uint8 = 't'
)

// Fixed id widths used by this proxy. Method id width is negotiated.
const (
	FieldIDSize         = 8
	ObjectIDSize        = 4
	ReferenceTypeIDSize = 4
	FrameIDSize         = 4
)

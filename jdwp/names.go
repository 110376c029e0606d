package jdwp

import "fmt"

var cmdSetNames = map[uint8]string{
	CmdSetVirtualMachine:       "VirtualMachine",
	CmdSetReferenceType:        "ReferenceType",
	CmdSetClassType:            "ClassType",
	CmdSetArrayType:            "ArrayType",
	CmdSetInterfaceType:        "InterfaceType",
	CmdSetMethod:               "Method",
	CmdSetField:                "Field",
	CmdSetObjectReference:      "ObjectReference",
	CmdSetStringReference:      "StringReference",
	CmdSetThreadReference:      "ThreadReference",
	CmdSetThreadGroupReference: "ThreadGroupReference",
	CmdSetArrayReference:       "ArrayReference",
	CmdSetClassLoaderReference: "ClassLoaderReference",
	CmdSetEventRequest:         "EventRequest",
	CmdSetStackFrame:           "StackFrame",
	CmdSetClassObjectReference: "ClassObjectReference",
	CmdSetEvent:                "Event",
	CmdSetKVM:                  "KVM",
}

var cmdNames = map[[2]uint8]string{
	{CmdSetVirtualMachine, VMVersion}:              "Version",
	{CmdSetVirtualMachine, VMClassesBySignature}:   "ClassesBySignature",
	{CmdSetVirtualMachine, VMAllClasses}:           "AllClasses",
	{CmdSetVirtualMachine, VMAllThreads}:           "AllThreads",
	{CmdSetVirtualMachine, VMTopLevelThreadGroups}: "TopLevelThreadGroups",
	{CmdSetVirtualMachine, VMDispose}:              "Dispose",
	{CmdSetVirtualMachine, VMIDSizes}:              "IDSizes",
	{CmdSetVirtualMachine, VMSuspend}:              "Suspend",
	{CmdSetVirtualMachine, VMResume}:               "Resume",
	{CmdSetVirtualMachine, VMExit}:                 "Exit",
	{CmdSetVirtualMachine, VMCreateString}:         "CreateString",
	{CmdSetVirtualMachine, VMCapabilities}:         "Capabilities",
	{CmdSetVirtualMachine, VMClassPaths}:           "ClassPaths",
	{CmdSetVirtualMachine, VMDisposeObjects}:       "DisposeObjects",
	{CmdSetVirtualMachine, VMHoldEvents}:           "HoldEvents",
	{CmdSetVirtualMachine, VMReleaseEvents}:        "ReleaseEvents",
	{CmdSetVirtualMachine, VMCapabilitiesNew}:      "CapabilitiesNew",

	{CmdSetReferenceType, RTSignature}:   "Signature",
	{CmdSetReferenceType, RTClassLoader}: "ClassLoader",
	{CmdSetReferenceType, RTModifiers}:   "Modifiers",
	{CmdSetReferenceType, RTFields}:      "Fields",
	{CmdSetReferenceType, RTMethods}:     "Methods",
	{CmdSetReferenceType, RTGetValues}:   "GetValues",
	{CmdSetReferenceType, RTSourceFile}:  "SourceFile",
	{CmdSetReferenceType, RTNestedTypes}: "NestedTypes",
	{CmdSetReferenceType, RTStatus}:      "Status",
	{CmdSetReferenceType, RTInterfaces}:  "Interfaces",
	{CmdSetReferenceType, RTClassObject}: "ClassObject",

	{CmdSetMethod, MethodLineTable}:     "LineTable",
	{CmdSetMethod, MethodVariableTable}: "VariableTable",
	{CmdSetMethod, MethodBytecodes}:     "Bytecodes",

	{CmdSetThreadReference, ThreadName}:        "Name",
	{CmdSetThreadReference, ThreadSuspend}:     "Suspend",
	{CmdSetThreadReference, ThreadResume}:      "Resume",
	{CmdSetThreadReference, ThreadStatus}:      "Status",
	{CmdSetThreadReference, ThreadThreadGroup}: "ThreadGroup",
	{CmdSetThreadReference, ThreadFrames}:      "Frames",
	{CmdSetThreadReference, ThreadFrameCount}:  "FrameCount",

	{CmdSetThreadGroupReference, ThreadGroupName}:     "Name",
	{CmdSetThreadGroupReference, ThreadGroupParent}:   "Parent",
	{CmdSetThreadGroupReference, ThreadGroupChildren}: "Children",

	{CmdSetStackFrame, FrameGetValues}:  "GetValues",
	{CmdSetStackFrame, FrameSetValues}:  "SetValues",
	{CmdSetStackFrame, FrameThisObject}: "ThisObject",

	{CmdSetEvent, EventComposite}: "Composite",

	{CmdSetKVM, KVMHandshake}:    "Handshake",
	{CmdSetKVM, KVMSteppingInfo}: "SteppingInfo",
}

// CommandName returns a readable name such as "VirtualMachine.IDSizes".
// Unknown sets and commands fall back to their numbers.
func CommandName(cmdSet, cmd uint8) string {
	set, ok := cmdSetNames[cmdSet]
	if !ok {
		return fmt.Sprintf("%d.%d", cmdSet, cmd)
	}
	name, ok := cmdNames[[2]uint8{cmdSet, cmd}]
	if !ok {
		return fmt.Sprintf("%s.%d", set, cmd)
	}
	return set + "." + name
}

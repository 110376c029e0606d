package types

// Version is the canonical project version.
// The CLI, the trace file format and the session report share it.
const Version = "0.1.0"

// JDWP protocol version reported to debuggers by VirtualMachine.Version.
const (
	JDWPMajor = 1
	JDWPMinor = 4
)

// VMDescription is the default description reported by VirtualMachine.Version.
const VMDescription = "KVM debug proxy"

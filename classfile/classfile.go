// Package classfile parses the parts of Java class files the proxy answers
// from: field and method tables, line number tables, local variable tables and
// the source file attribute.
package classfile

import "strings"

// Access flags.
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccProtected uint16 = 0x0004
	AccStatic    uint16 = 0x0008
	AccFinal     uint16 = 0x0010
	AccNative    uint16 = 0x0100
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
)

// ClassFile is a parsed class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	// Name is the internal class name, e.g. "com/foo/Bar".
	Name       string
	SuperName  string
	Interfaces []string
	Fields     []Field
	Methods    []Method
	// SourceFile is empty when the attribute is absent.
	SourceFile string
}

// Field is one entry of the field table.
type Field struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// Method is one entry of the method table.
type Method struct {
	AccessFlags    uint16
	Name           string
	Descriptor     string
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	LineNumbers    []LineNumber
	LocalVariables []LocalVariable
}

// LineNumber maps a code index to a source line.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// LocalVariable is one entry of a LocalVariableTable.
type LocalVariable struct {
	StartPC    uint16
	Length     uint16
	Name       string
	Descriptor string
	Slot       uint16
}

// Signature returns the JNI-style signature, e.g. "Lcom/foo/Bar;".
func (c *ClassFile) Signature() string {
	return "L" + c.Name + ";"
}

// IsInterface reports whether the class is an interface.
func (c *ClassFile) IsInterface() bool {
	return c.AccessFlags&AccInterface != 0
}

// Method returns the method at index, numbered from base.
func (c *ClassFile) Method(index, base int) (*Method, bool) {
	i := index - base
	if i < 0 || i >= len(c.Methods) {
		return nil, false
	}
	return &c.Methods[i], true
}

// Field returns the field at index.
func (c *ClassFile) Field(index int) (*Field, bool) {
	if index < 0 || index >= len(c.Fields) {
		return nil, false
	}
	return &c.Fields[index], true
}

// IsStatic reports whether the method is static.
func (m *Method) IsStatic() bool {
	return m.AccessFlags&AccStatic != 0
}

// IsNative reports whether the method has no bytecode (native or abstract).
func (m *Method) IsNative() bool {
	return m.Code == nil
}

// ArgSlots returns the number of local slots taken by the arguments,
// including the receiver of instance methods. long and double take two.
func (m *Method) ArgSlots() int {
	slots := 0
	if !m.IsStatic() {
		slots = 1
	}
	desc := m.Descriptor
	end := strings.IndexByte(desc, ')')
	if !strings.HasPrefix(desc, "(") || end < 0 {
		return slots
	}
	args := desc[1:end]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case 'J', 'D':
			slots += 2
		case 'L':
			slots++
			for i < len(args) && args[i] != ';' {
				i++
			}
		case '[':
			slots++
			for i < len(args) && args[i] == '[' {
				i++
			}
			if i < len(args) && args[i] == 'L' {
				for i < len(args) && args[i] != ';' {
					i++
				}
			}
		default:
			slots++
		}
	}
	return slots
}

// CodeEnd returns the code index one past the last instruction.
func (m *Method) CodeEnd() int64 {
	return int64(len(m.Code))
}

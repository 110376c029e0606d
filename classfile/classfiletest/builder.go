// Package classfiletest builds minimal class files for tests.
package classfiletest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Method describes a method to emit.
type Method struct {
	Access     uint16
	Name       string
	Descriptor string
	// Code is emitted as the Code attribute when non-nil.
	Code      []byte
	MaxLocals uint16
	// Lines holds (startPC, line) pairs.
	Lines [][2]uint16
	Vars  []Var
}

// Var is a LocalVariableTable entry.
type Var struct {
	StartPC, Length uint16
	Name, Desc      string
	Slot            uint16
}

// Field describes a field to emit.
type Field struct {
	Access     uint16
	Name       string
	Descriptor string
}

// Class describes a class file to emit.
type Class struct {
	Access     uint16
	Name       string
	Super      string
	Interfaces []string
	Fields     []Field
	Methods    []Method
	SourceFile string
}

type pool struct {
	buf   bytes.Buffer
	count uint16
	utf8  map[string]uint16
	class map[string]uint16
}

func (p *pool) Utf8(s string) uint16 {
	if idx, ok := p.utf8[s]; ok {
		return idx
	}
	p.count++
	p.buf.WriteByte(1)
	_ = binary.Write(&p.buf, binary.BigEndian, uint16(len(s)))
	p.buf.WriteString(s)
	p.utf8[s] = p.count
	return p.count
}

func (p *pool) Class(name string) uint16 {
	if idx, ok := p.class[name]; ok {
		return idx
	}
	nameIdx := p.Utf8(name)
	p.count++
	p.buf.WriteByte(7)
	_ = binary.Write(&p.buf, binary.BigEndian, nameIdx)
	p.class[name] = p.count
	return p.count
}

// Long adds a long constant, which occupies two pool slots.
func (p *pool) Long(v int64) {
	p.buf.WriteByte(5)
	_ = binary.Write(&p.buf, binary.BigEndian, v)
	p.count += 2
}

func u2(b *bytes.Buffer, v uint16) { _ = binary.Write(b, binary.BigEndian, v) }
func u4(b *bytes.Buffer, v uint32) { _ = binary.Write(b, binary.BigEndian, v) }

// Bytes serializes the class file.
func (c Class) Bytes() []byte {
	p := &pool{utf8: map[string]uint16{}, class: map[string]uint16{}}
	p.Long(42)

	var body bytes.Buffer
	u2(&body, c.Access)
	u2(&body, p.Class(c.Name))
	if c.Super != "" {
		u2(&body, p.Class(c.Super))
	} else {
		u2(&body, 0)
	}
	u2(&body, uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		u2(&body, p.Class(i))
	}

	u2(&body, uint16(len(c.Fields)))
	for _, f := range c.Fields {
		u2(&body, f.Access)
		u2(&body, p.Utf8(f.Name))
		u2(&body, p.Utf8(f.Descriptor))
		u2(&body, 0)
	}

	u2(&body, uint16(len(c.Methods)))
	for _, m := range c.Methods {
		u2(&body, m.Access)
		u2(&body, p.Utf8(m.Name))
		u2(&body, p.Utf8(m.Descriptor))
		if m.Code == nil {
			u2(&body, 0)
			continue
		}
		u2(&body, 1)
		u2(&body, p.Utf8("Code"))
		code := codeAttribute(p, m)
		u4(&body, uint32(len(code)))
		body.Write(code)
	}

	if c.SourceFile != "" {
		u2(&body, 1)
		u2(&body, p.Utf8("SourceFile"))
		u4(&body, 2)
		u2(&body, p.Utf8(c.SourceFile))
	} else {
		u2(&body, 0)
	}

	var out bytes.Buffer
	u4(&out, 0xCAFEBABE)
	u2(&out, 0)
	u2(&out, 49)
	u2(&out, p.count+1)
	out.Write(p.buf.Bytes())
	out.Write(body.Bytes())
	return out.Bytes()
}

func codeAttribute(p *pool, m Method) []byte {
	var b bytes.Buffer
	u2(&b, 4)
	u2(&b, m.MaxLocals)
	u4(&b, uint32(len(m.Code)))
	b.Write(m.Code)
	u2(&b, 0) // exception table

	var attrs uint16
	var ab bytes.Buffer
	if len(m.Lines) > 0 {
		attrs++
		u2(&ab, p.Utf8("LineNumberTable"))
		u4(&ab, uint32(2+4*len(m.Lines)))
		u2(&ab, uint16(len(m.Lines)))
		for _, l := range m.Lines {
			u2(&ab, l[0])
			u2(&ab, l[1])
		}
	}
	if len(m.Vars) > 0 {
		attrs++
		u2(&ab, p.Utf8("LocalVariableTable"))
		u4(&ab, uint32(2+10*len(m.Vars)))
		u2(&ab, uint16(len(m.Vars)))
		for _, v := range m.Vars {
			u2(&ab, v.StartPC)
			u2(&ab, v.Length)
			u2(&ab, p.Utf8(v.Name))
			u2(&ab, p.Utf8(v.Desc))
			u2(&ab, v.Slot)
		}
	}
	u2(&b, attrs)
	b.Write(ab.Bytes())
	return b.Bytes()
}

// WriteDir writes the classes as .class files under dir.
func WriteDir(t testing.TB, dir string, classes ...Class) {
	t.Helper()
	for _, c := range classes {
		path := filepath.Join(dir, filepath.FromSlash(c.Name)+".class")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, c.Bytes(), 0o644); err != nil {
			t.Fatalf("write class: %v", err)
		}
	}
}

// WriteJar writes the classes into a jar at path.
func WriteJar(t testing.TB, path string, classes ...Class) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create jar: %v", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for _, c := range classes {
		w, err := zw.Create(c.Name + ".class")
		if err != nil {
			t.Fatalf("jar entry: %v", err)
		}
		if _, err := w.Write(c.Bytes()); err != nil {
			t.Fatalf("jar write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close jar: %v", err)
	}
}

// Sample returns a small class with one instance method, one static method,
// a native method and two fields.
func Sample(name string) Class {
	return Class{
		Access:     0x0021,
		Name:       name,
		Super:      "java/lang/Object",
		Interfaces: []string{"java/lang/Runnable"},
		Fields: []Field{
			{Access: 0x0002, Name: "count", Descriptor: "I"},
			{Access: 0x0008, Name: "NAME", Descriptor: "Ljava/lang/String;"},
		},
		Methods: []Method{
			{
				Access:     0x0001,
				Name:       "run",
				Descriptor: "()V",
				Code:       []byte{0x2a, 0x59, 0xb4, 0x00, 0x01, 0x04, 0x60, 0xb5, 0x00, 0x01, 0xb1},
				MaxLocals:  1,
				Lines:      [][2]uint16{{0, 10}, {5, 11}, {10, 12}},
				Vars:       []Var{{StartPC: 0, Length: 11, Name: "this", Desc: "L" + name + ";", Slot: 0}},
			},
			{
				Access:     0x0009,
				Name:       "add",
				Descriptor: "(JI)J",
				Code:       []byte{0x1e, 0x1c, 0x85, 0x61, 0xad},
				MaxLocals:  3,
				Lines:      [][2]uint16{{0, 20}},
				Vars: []Var{
					{StartPC: 0, Length: 5, Name: "a", Desc: "J", Slot: 0},
					{StartPC: 0, Length: 5, Name: "b", Desc: "I", Slot: 2},
				},
			},
			{
				Access:     0x0101,
				Name:       "poke",
				Descriptor: "([Ljava/lang/String;D)V",
			},
		},
		SourceFile: "Sample.java",
	}
}

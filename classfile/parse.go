package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Magic is the class file magic number.
const Magic = 0xCAFEBABE

// ErrInvalidClassFile is returned for bytes that are not a well-formed class file.
var ErrInvalidClassFile = errors.New("invalid class file")

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type cpEntry struct {
	tag   uint8
	utf8  string
	index uint16
}

// byteReader is a bounds-checked big-endian reader with a sticky error.
type byteReader struct {
	data []byte
	pos  int
	err  error
}

func (r *byteReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w: unexpected end of data at offset %d", ErrInvalidClassFile, r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *byteReader) u1() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *byteReader) u2() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *byteReader) u4() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

type parser struct {
	r    *byteReader
	pool []cpEntry
}

// Parse parses class file bytes.
func Parse(data []byte) (*ClassFile, error) {
	p := &parser{r: &byteReader{data: data}}
	cf, err := p.parse()
	if err != nil {
		return nil, err
	}
	return cf, nil
}

func (p *parser) parse() (*ClassFile, error) {
	r := p.r
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrInvalidClassFile, magic)
	}
	cf := &ClassFile{
		MinorVersion: r.u2(),
		MajorVersion: r.u2(),
	}
	if err := p.parseConstantPool(); err != nil {
		return nil, err
	}

	cf.AccessFlags = r.u2()
	var err error
	if cf.Name, err = p.className(r.u2()); err != nil {
		return nil, err
	}
	if super := r.u2(); super != 0 {
		if cf.SuperName, err = p.className(super); err != nil {
			return nil, err
		}
	}

	count := int(r.u2())
	for range count {
		name, err := p.className(r.u2())
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	count = int(r.u2())
	for range count {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		cf.Fields = append(cf.Fields, f)
	}

	count = int(r.u2())
	for range count {
		m, err := p.parseMethod()
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, m)
	}

	count = int(r.u2())
	for range count {
		name, body, err := p.attribute(r)
		if err != nil {
			return nil, err
		}
		if name == "SourceFile" {
			br := &byteReader{data: body}
			if cf.SourceFile, err = p.utf8(br.u2()); err != nil {
				return nil, err
			}
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return cf, nil
}

func (p *parser) parseConstantPool() error {
	r := p.r
	count := int(r.u2())
	if r.err != nil {
		return r.err
	}
	p.pool = make([]cpEntry, count)
	for i := 1; i < count; i++ {
		tag := r.u1()
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n := int(r.u2())
			e.utf8 = string(r.take(n))
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.index = r.u2()
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			r.take(4)
		case tagLong, tagDouble:
			r.take(8)
			p.pool[i] = e
			i++ // eight-byte constants take two slots
			continue
		case tagMethodHandle:
			r.take(3)
		default:
			if r.err == nil {
				return fmt.Errorf("%w: unknown constant pool tag %d at index %d", ErrInvalidClassFile, tag, i)
			}
		}
		if r.err != nil {
			return r.err
		}
		p.pool[i] = e
	}
	return r.err
}

func (p *parser) utf8(index uint16) (string, error) {
	if int(index) <= 0 || int(index) >= len(p.pool) || p.pool[index].tag != tagUtf8 {
		return "", fmt.Errorf("%w: constant %d is not Utf8", ErrInvalidClassFile, index)
	}
	return p.pool[index].utf8, nil
}

func (p *parser) className(index uint16) (string, error) {
	if int(index) <= 0 || int(index) >= len(p.pool) || p.pool[index].tag != tagClass {
		return "", fmt.Errorf("%w: constant %d is not a Class", ErrInvalidClassFile, index)
	}
	return p.utf8(p.pool[index].index)
}

func (p *parser) attribute(r *byteReader) (string, []byte, error) {
	nameIndex := r.u2()
	length := int(r.u4())
	body := r.take(length)
	if r.err != nil {
		return "", nil, r.err
	}
	name, err := p.utf8(nameIndex)
	if err != nil {
		return "", nil, err
	}
	return name, body, nil
}

func (p *parser) parseField() (Field, error) {
	r := p.r
	f := Field{AccessFlags: r.u2()}
	var err error
	if f.Name, err = p.utf8(r.u2()); err != nil {
		return f, err
	}
	if f.Descriptor, err = p.utf8(r.u2()); err != nil {
		return f, err
	}
	count := int(r.u2())
	for range count {
		if _, _, err := p.attribute(r); err != nil {
			return f, err
		}
	}
	return f, r.err
}

func (p *parser) parseMethod() (Method, error) {
	r := p.r
	m := Method{AccessFlags: r.u2()}
	var err error
	if m.Name, err = p.utf8(r.u2()); err != nil {
		return m, err
	}
	if m.Descriptor, err = p.utf8(r.u2()); err != nil {
		return m, err
	}
	count := int(r.u2())
	for range count {
		name, body, err := p.attribute(r)
		if err != nil {
			return m, err
		}
		if name == "Code" {
			if err := p.parseCode(&m, body); err != nil {
				return m, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
			}
		}
	}
	return m, r.err
}

func (p *parser) parseCode(m *Method, body []byte) error {
	r := &byteReader{data: body}
	m.MaxStack = r.u2()
	m.MaxLocals = r.u2()
	codeLen := int(r.u4())
	m.Code = append([]byte{}, r.take(codeLen)...)

	// exception_table entries are 8 bytes each
	r.take(int(r.u2()) * 8)

	count := int(r.u2())
	for range count {
		name, attr, err := p.attribute(r)
		if err != nil {
			return err
		}
		switch name {
		case "LineNumberTable":
			ar := &byteReader{data: attr}
			n := int(ar.u2())
			for range n {
				m.LineNumbers = append(m.LineNumbers, LineNumber{StartPC: ar.u2(), Line: ar.u2()})
			}
			if ar.err != nil {
				return ar.err
			}
		case "LocalVariableTable":
			ar := &byteReader{data: attr}
			n := int(ar.u2())
			for range n {
				lv := LocalVariable{StartPC: ar.u2(), Length: ar.u2()}
				if lv.Name, err = p.utf8(ar.u2()); err != nil {
					return err
				}
				if lv.Descriptor, err = p.utf8(ar.u2()); err != nil {
					return err
				}
				lv.Slot = ar.u2()
				m.LocalVariables = append(m.LocalVariables, lv)
			}
			if ar.err != nil {
				return ar.err
			}
		}
	}

	// javac emits line entries in pc order, other compilers may not
	sort.SliceStable(m.LineNumbers, func(i, j int) bool {
		return m.LineNumbers[i].StartPC < m.LineNumbers[j].StartPC
	})
	return r.err
}

package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lodeapi "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/kdp/capture"
	"github.com/pithecene-io/kdp/classfile"
	"github.com/pithecene-io/kdp/lode"
	"github.com/pithecene-io/kdp/types"
)

// ErrNoTraceSource is returned when neither a capture file nor a Lode
// dataset was given.
var ErrNoTraceSource = errors.New("no trace source: give a capture file or a storage path")

// Reader abstracts read-only data access for CLI commands.
// Implementations must not mutate the class path or the archive.
type Reader interface {
	InspectClass(name string) (*ClassView, error)
	ReadTrace(ctx context.Context, src TraceSource) ([]*types.TraceRecord, error)
	LatestSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
}

// TraceSource selects the records to read: a capture file, or one session
// of the Lode dataset.
type TraceSource struct {
	CapturePath string
	SessionID   string
}

// Config wires a Source to its backends.
type Config struct {
	ClassPath *classfile.Path
	// Lode is the archive store factory; nil disables archive reads.
	Lode    lodeapi.StoreFactory
	Dataset string
}

// Source reads classes from a class path and traces from capture files
// or a Lode dataset.
type Source struct {
	cfg Config
}

// New creates a Source.
func New(cfg Config) *Source {
	if cfg.Dataset == "" {
		cfg.Dataset = lode.DefaultDataset
	}
	return &Source{cfg: cfg}
}

var _ Reader = (*Source)(nil)

// InspectClass loads a class by internal ("com/foo/Bar") or binary
// ("com.foo.Bar") name.
func (s *Source) InspectClass(name string) (*ClassView, error) {
	if name == "" {
		return nil, errors.New("class name is required")
	}
	cf, err := s.cfg.ClassPath.Load(InternalName(name))
	if err != nil {
		return nil, err
	}
	return NewClassView(cf), nil
}

// ReadTrace returns the records of src ordered by seq. A capture file
// takes precedence over the archive.
func (s *Source) ReadTrace(ctx context.Context, src TraceSource) ([]*types.TraceRecord, error) {
	if src.CapturePath != "" {
		recs, err := capture.ReadFile(src.CapturePath)
		if err != nil {
			return nil, err
		}
		if src.SessionID == "" {
			return recs, nil
		}
		var out []*types.TraceRecord
		for _, rec := range recs {
			if rec.SessionID == src.SessionID {
				out = append(out, rec)
			}
		}
		return out, nil
	}
	if s.cfg.Lode == nil {
		return nil, ErrNoTraceSource
	}
	if src.SessionID == "" {
		return nil, errors.New("a session id is required to read from storage")
	}
	ds, err := lode.NewReadDataset(s.cfg.Dataset, s.cfg.Lode)
	if err != nil {
		return nil, err
	}
	return lode.ReadSession(ctx, ds, src.SessionID)
}

// LatestSummary returns the newest archived summary, optionally of one
// session.
func (s *Source) LatestSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	if s.cfg.Lode == nil {
		return nil, ErrNoTraceSource
	}
	ds, err := lode.NewReadDataset(s.cfg.Dataset, s.cfg.Lode)
	if err != nil {
		return nil, err
	}
	m, err := lode.QueryLatestSummary(ctx, ds, sessionID)
	if err != nil {
		return nil, err
	}
	return ParseSummaryRecord(m)
}

// InternalName converts a binary class name to its internal form.
func InternalName(name string) string {
	name = strings.TrimSuffix(name, ".class")
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		name = name[1 : len(name)-1]
	}
	return strings.ReplaceAll(name, ".", "/")
}

// NewClassView flattens a parsed class file.
func NewClassView(cf *classfile.ClassFile) *ClassView {
	v := &ClassView{
		Name:       cf.Name,
		Signature:  cf.Signature(),
		Kind:       "class",
		Access:     accessString(cf.AccessFlags, classFlags),
		Super:      cf.SuperName,
		Interfaces: append([]string{}, cf.Interfaces...),
		SourceFile: cf.SourceFile,
		Version:    fmt.Sprintf("%d.%d", cf.MajorVersion, cf.MinorVersion),
		Fields:     make([]FieldView, 0, len(cf.Fields)),
		Methods:    make([]MethodView, 0, len(cf.Methods)),
	}
	if cf.IsInterface() {
		v.Kind = "interface"
	}
	for i, f := range cf.Fields {
		v.Fields = append(v.Fields, FieldView{
			Index:      i,
			Name:       f.Name,
			Descriptor: f.Descriptor,
			Access:     accessString(f.AccessFlags, memberFlags),
		})
	}
	for i, m := range cf.Methods {
		mv := MethodView{
			Index:      i,
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Access:     accessString(m.AccessFlags, memberFlags),
			MaxStack:   int(m.MaxStack),
			MaxLocals:  int(m.MaxLocals),
			CodeLength: len(m.Code),
			Native:     m.IsNative(),
			Lines:      make([]LineView, 0, len(m.LineNumbers)),
			Locals:     len(m.LocalVariables),
		}
		for _, ln := range m.LineNumbers {
			mv.Lines = append(mv.Lines, LineView{StartPC: int(ln.StartPC), Line: int(ln.Line)})
		}
		v.Methods = append(v.Methods, mv)
	}
	return v
}

type accessFlag struct {
	bit  uint16
	name string
}

var classFlags = []accessFlag{
	{classfile.AccPublic, "public"},
	{classfile.AccFinal, "final"},
	{classfile.AccInterface, "interface"},
	{classfile.AccAbstract, "abstract"},
}

var memberFlags = []accessFlag{
	{classfile.AccPublic, "public"},
	{classfile.AccPrivate, "private"},
	{classfile.AccProtected, "protected"},
	{classfile.AccStatic, "static"},
	{classfile.AccFinal, "final"},
	{classfile.AccNative, "native"},
	{classfile.AccAbstract, "abstract"},
}

func accessString(flags uint16, known []accessFlag) string {
	var parts []string
	for _, f := range known {
		if flags&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, " ")
}

package classfile

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrClassNotFound is returned when no classpath entry holds the class.
var ErrClassNotFound = errors.New("class not found on classpath")

// Path resolves class names against an ordered list of directories and
// jar/zip archives. Parsed class files are cached until invalidated.
type Path struct {
	entries []string

	mu     sync.Mutex
	parsed map[string]*ClassFile
}

// NewPath creates a Path from a list separated by the OS path list separator.
// ';' is accepted as well so classpaths written for Windows hosts still work.
func NewPath(list string) *Path {
	var entries []string
	for _, part := range filepath.SplitList(list) {
		for _, e := range strings.Split(part, ";") {
			if e = strings.TrimSpace(e); e != "" {
				entries = append(entries, e)
			}
		}
	}
	return &Path{
		entries: entries,
		parsed:  make(map[string]*ClassFile),
	}
}

// Entries returns the classpath entries in search order.
func (p *Path) Entries() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.entries...)
}

// String returns the classpath joined with the OS separator.
func (p *Path) String() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.entries, string(os.PathListSeparator))
}

// Load returns the parsed class file for an internal name such as "com/foo/Bar".
// A nil Path has no entries.
func (p *Path) Load(name string) (*ClassFile, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}

	p.mu.Lock()
	cf, ok := p.parsed[name]
	p.mu.Unlock()
	if ok {
		return cf, nil
	}

	data, err := p.readClass(name)
	if err != nil {
		return nil, err
	}
	cf, err = Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if cf.Name != name {
		return nil, fmt.Errorf("%w: %s declares class %s", ErrInvalidClassFile, name, cf.Name)
	}

	p.mu.Lock()
	p.parsed[name] = cf
	p.mu.Unlock()
	return cf, nil
}

// Invalidate drops the cached parse of name.
func (p *Path) Invalidate(name string) {
	p.mu.Lock()
	delete(p.parsed, name)
	p.mu.Unlock()
}

func (p *Path) readClass(name string) ([]byte, error) {
	rel := name + ".class"
	for _, entry := range p.entries {
		info, err := os.Stat(entry)
		if err != nil {
			continue
		}
		if info.IsDir() {
			data, err := os.ReadFile(filepath.Join(entry, filepath.FromSlash(rel)))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
			continue
		}
		data, err := readFromArchive(entry, rel)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

func readFromArchive(archive, rel string) ([]byte, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archive, err)
	}
	defer func() { _ = zr.Close() }()

	f, err := zr.Open(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// classNameFor maps a file under a classpath directory to its internal class name.
func (p *Path) classNameFor(file string) (string, bool) {
	if !strings.HasSuffix(file, ".class") {
		return "", false
	}
	for _, entry := range p.entries {
		rel, err := filepath.Rel(entry, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return strings.TrimSuffix(filepath.ToSlash(rel), ".class"), true
	}
	return "", false
}

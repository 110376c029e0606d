// Package cache holds the per-session class metadata cache.
//
// Entries are keyed by the VM-assigned class id. They are created on first
// reference, their status is updated as the VM reports class preparation, and
// they live as long as the session. A class id bound to a name is never
// rebound to a different name.
package cache

import (
	"sort"
	"strings"
	"sync"

	"github.com/pithecene-io/kdp/classfile"
)

// ClassKind distinguishes ordinary classes from array types.
type ClassKind uint8

const (
	ClassKindClass ClassKind = iota
	ClassKindArray
)

// String returns the kind name.
func (k ClassKind) String() string {
	if k == ClassKindArray {
		return "array"
	}
	return "class"
}

// ClassMetadata is a cache entry. Values returned by the cache are copies.
type ClassMetadata struct {
	ID        int32
	Name      string
	Signature string
	Status    int32
	Kind      ClassKind
	TypeTag   uint8
	// File is the parsed class file, nil when no local copy was found.
	File *classfile.ClassFile
}

// Cache maps class ids to metadata. All operations are safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[int32]*ClassMetadata
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[int32]*ClassMetadata)}
}

// Lookup returns the entry for id.
func (c *Cache) Lookup(id int32) (ClassMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return ClassMetadata{}, false
	}
	return *e, true
}

// ResolveByID inserts an entry for id if absent, otherwise updates its status.
// signature is the VM signature; the name, kind and tag of an existing entry
// are kept.
func (c *Cache) ResolveByID(id int32, signature string, typeTag uint8, status int32) ClassMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		e.Status = status
		return *e
	}

	kind := KindOf(signature)
	e := &ClassMetadata{
		ID:        id,
		Name:      NameFromSignature(signature, kind),
		Signature: signature,
		Status:    status,
		Kind:      kind,
		TypeTag:   typeTag,
	}
	c.entries[id] = e
	return *e
}

// ResolveBySignature returns the entry whose signature matches.
// The scan is linear; constrained VMs load few classes.
func (c *Cache) ResolveBySignature(signature string) (ClassMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Signature == signature {
			return *e, true
		}
	}
	return ClassMetadata{}, false
}

// AttachClassFile records the parsed class file for id.
// It reports false if id is not cached.
func (c *Cache) AttachClassFile(id int32, cf *classfile.ClassFile) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	e.File = cf
	return true
}

// Len returns the number of cached classes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns all entries ordered by id.
func (c *Cache) Snapshot() []ClassMetadata {
	c.mu.Lock()
	out := make([]ClassMetadata, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// KindOf returns the kind implied by a signature.
func KindOf(signature string) ClassKind {
	if strings.HasPrefix(signature, "[") {
		return ClassKindArray
	}
	return ClassKindClass
}

// NameFromSignature strips the leading 'L' and trailing ';' of a class
// signature. Array signatures, and anything not shaped like a class
// signature, are returned unmodified.
func NameFromSignature(signature string, kind ClassKind) string {
	if kind == ClassKindArray {
		return signature
	}
	if len(signature) >= 2 && signature[0] == 'L' && signature[len(signature)-1] == ';' {
		return signature[1 : len(signature)-1]
	}
	return signature
}

// SignatureFromName is the inverse of NameFromSignature.
func SignatureFromName(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}

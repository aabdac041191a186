// Package arena implements the two process-wide allocators the rest of the
// compiler builds on: an interned string table and a chunked node arena.
package arena

import "fmt"

// chunkSize is the size of each backing chunk handed out by the string
// allocator. 64 MiB amortizes allocation to effectively O(1) per intern for
// any translation unit short of pathological.
const chunkSize = 64 << 20

// StringHandle is an opaque index into a process-wide interned string table.
// Two handles compare equal iff their backing strings are equal.
type StringHandle uint32

// InvalidString is the zero handle; no real string is ever interned there
// because StringTable reserves index 0 for the empty string.
const InvalidString StringHandle = 0

// StringTable interns strings into stable, append-only backing chunks and
// hands back 32-bit handles. Strings are immutable for the table's lifetime.
type StringTable struct {
	chunks  [][]byte
	entries []stringEntry
	index   map[string]StringHandle
}

type stringEntry struct {
	chunk  int
	offset int
	length int
}

// NewStringTable creates an empty table and interns the empty string at
// handle 0, matching the reserved InvalidString sentinel.
func NewStringTable() *StringTable {
	t := &StringTable{index: make(map[string]StringHandle, 4096)}
	t.entries = append(t.entries, stringEntry{})
	t.index[""] = InvalidString
	return t
}

// GetOrIntern returns the handle for s, interning it on first sight.
// getOrIntern(s) == getOrIntern(s) for any repeated call with equal s.
func (t *StringTable) GetOrIntern(s string) StringHandle {
	if h, ok := t.index[s]; ok {
		return h
	}
	chunk, offset := t.bumpAlloc(len(s) + 1)
	copy(t.chunks[chunk][offset:], s)
	t.chunks[chunk][offset+len(s)] = 0
	h := StringHandle(len(t.entries))
	t.entries = append(t.entries, stringEntry{chunk: chunk, offset: offset, length: len(s)})
	t.index[s] = h
	return h
}

// String returns the string backing h. getString(getOrIntern(s)) == s.
func (t *StringTable) String(h StringHandle) string {
	e := t.entries[h]
	return string(t.chunks[e.chunk][e.offset : e.offset+e.length])
}

func (t *StringTable) bumpAlloc(n int) (chunk, offset int) {
	if len(t.chunks) == 0 || len(t.chunks[len(t.chunks)-1])+n > chunkSize {
		size := chunkSize
		if n > size {
			size = n
		}
		t.chunks = append(t.chunks, make([]byte, 0, size))
	}
	chunk = len(t.chunks) - 1
	offset = len(t.chunks[chunk])
	t.chunks[chunk] = t.chunks[chunk][:offset+n]
	return chunk, offset
}

// Builder accumulates text in a local scratch buffer; Commit copies the
// result into the table in one shot and returns its handle, avoiding an
// intern-per-append for names built up piecemeal (e.g. mangled names,
// instantiation fingerprints).
type Builder struct {
	buf []byte
}

func (b *Builder) WriteString(s string) *Builder {
	b.buf = append(b.buf, s...)
	return b
}

func (b *Builder) WriteByte(c byte) *Builder {
	b.buf = append(b.buf, c)
	return b
}

func (b *Builder) Printf(format string, args ...any) *Builder {
	b.buf = append(b.buf, fmt.Sprintf(format, args...)...)
	return b
}

// Commit interns the accumulated text and resets the builder for reuse.
func (b *Builder) Commit(t *StringTable) StringHandle {
	h := t.GetOrIntern(string(b.buf))
	b.buf = b.buf[:0]
	return h
}

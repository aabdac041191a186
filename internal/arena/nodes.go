package arena

// nodeChunkCap is the number of elements per backing chunk. Chunks are
// never resized in place, so handles handed out before a growth remain
// valid — the defining property arena+handle cross-references rely on.
const nodeChunkCap = 4096

// Handle is a stable reference into a NodeArena[T]. It survives arena
// growth because growth only appends new chunks; it never reallocates
// existing ones.
type Handle uint32

// InvalidHandle is returned by operations that have nothing to reference.
const InvalidHandle Handle = 0

// NodeArena is an append-only chunked vector of T, used for both AST nodes
// and IR instructions. Handle 0 is reserved and never issued by Alloc, so
// the zero Handle can double as "no node".
type NodeArena[T any] struct {
	chunks [][]T
}

// NewNodeArena returns an arena with the reserved zero slot already
// allocated.
func NewNodeArena[T any]() *NodeArena[T] {
	a := &NodeArena[T]{}
	a.chunks = append(a.chunks, make([]T, 1, nodeChunkCap))
	return a
}

// Alloc appends v and returns its stable handle.
func (a *NodeArena[T]) Alloc(v T) Handle {
	last := len(a.chunks) - 1
	if len(a.chunks[last]) == cap(a.chunks[last]) {
		a.chunks = append(a.chunks, make([]T, 0, nodeChunkCap))
		last++
	}
	a.chunks[last] = append(a.chunks[last], v)
	return Handle(last*nodeChunkCap + len(a.chunks[last]) - 1)
}

// Get dereferences h. Panics on an out-of-range handle, matching the
// arena's contract that handles are only ever produced by Alloc on this
// same arena.
func (a *NodeArena[T]) Get(h Handle) T {
	chunk, idx := int(h)/nodeChunkCap, int(h)%nodeChunkCap
	return a.chunks[chunk][idx]
}

// Set overwrites the value at h in place — used by passes that annotate a
// node after allocation (e.g. attaching a resolved TypeIndex).
func (a *NodeArena[T]) Set(h Handle, v T) {
	chunk, idx := int(h)/nodeChunkCap, int(h)%nodeChunkCap
	a.chunks[chunk][idx] = v
}

// Watermark returns an opaque size token usable with Rewind for speculative
// parsing (§4.C scoped position): on backtrack, nodes allocated after the
// watermark are simply never referenced again (the arena never frees, but
// the wasted slots are bounded by the abandoned parse's own size).
type Watermark struct {
	chunk int
	len   int
}

func (a *NodeArena[T]) Mark() Watermark {
	last := len(a.chunks) - 1
	return Watermark{chunk: last, len: len(a.chunks[last])}
}

// Rewind truncates the arena back to a previously taken Watermark. Only
// valid if no Alloc since the mark has crossed into a new chunk that was
// itself abandoned; crossing a chunk boundary is handled by trimming the
// chunk list back to the marked chunk.
func (a *NodeArena[T]) Rewind(w Watermark) {
	a.chunks = a.chunks[:w.chunk+1]
	a.chunks[w.chunk] = a.chunks[w.chunk][:w.len]
}

// Len reports the number of allocated slots, including the reserved zero.
func (a *NodeArena[T]) Len() int {
	if len(a.chunks) == 0 {
		return 0
	}
	return (len(a.chunks)-1)*nodeChunkCap + len(a.chunks[len(a.chunks)-1])
}

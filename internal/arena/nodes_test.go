package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeArenaHandlesStableAcrossGrowth(t *testing.T) {
	a := NewNodeArena[int]()
	var handles []Handle
	for i := 0; i < nodeChunkCap*3; i++ {
		handles = append(handles, a.Alloc(i))
	}
	for i, h := range handles {
		require.Equal(t, i, a.Get(h))
	}
}

func TestNodeArenaRewindDiscardsSpeculativeNodes(t *testing.T) {
	a := NewNodeArena[string]()
	a.Alloc("kept-1")
	mark := a.Mark()
	a.Alloc("speculative-1")
	a.Alloc("speculative-2")
	a.Rewind(mark)
	h := a.Alloc("kept-2")
	require.Equal(t, "kept-2", a.Get(h))
}

package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringTableInterning(t *testing.T) {
	st := NewStringTable()

	a := st.GetOrIntern("std::vector")
	b := st.GetOrIntern("std::vector")
	require.Equal(t, a, b, "equal strings must intern to the same handle")
	require.Equal(t, "std::vector", st.String(a))

	c := st.GetOrIntern("std::map")
	require.NotEqual(t, a, c)
	require.Equal(t, "std::map", st.String(c))
}

func TestStringTableEmptyStringReservesZero(t *testing.T) {
	st := NewStringTable()
	require.Equal(t, InvalidString, st.GetOrIntern(""))
}

func TestBuilderCommitReuses(t *testing.T) {
	st := NewStringTable()
	var b Builder
	h1 := b.WriteString("id$").Printf("%x", 0xdead).Commit(st)
	h2 := b.WriteString("id$").Printf("%x", 0xbeef).Commit(st)
	require.NotEqual(t, h1, h2)
	require.Equal(t, "id$dead", st.String(h1))
	require.Equal(t, "id$beef", st.String(h2))
}

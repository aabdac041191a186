package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/objfile"
)

func TestCompileProducesELF64ForLinuxTarget(t *testing.T) {
	src := Source{Path: "add.cpp", Text: []byte("int f(int x) { return x + 1; }")}
	obj, bag, err := Compile([]Source{src}, Options{TargetOS: Linux})
	require.NoError(t, err)
	require.NotNil(t, obj)
	require.Equal(t, 0, bag.ExitCode())
	require.Equal(t, objfile.FormatELF64, obj.Format)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, obj.Bytes[0:4])
}

func TestCompileProducesCOFFForWindowsTarget(t *testing.T) {
	src := Source{Path: "add.cpp", Text: []byte("int f(int x) { return x + 1; }")}
	obj, bag, err := Compile([]Source{src}, Options{TargetOS: Windows})
	require.NoError(t, err)
	require.NotNil(t, obj)
	require.Equal(t, 0, bag.ExitCode())
	require.Equal(t, objfile.FormatCOFF, obj.Format)
	machine := uint16(obj.Bytes[0]) | uint16(obj.Bytes[1])<<8
	require.Equal(t, uint16(0x8664), machine)
}

func TestCompileEmitsGCCExceptTableForTryCatch(t *testing.T) {
	src := Source{Path: "tc.cpp", Text: []byte(`
		int f() {
			try {
				throw 1;
			} catch (int e) {
				return e;
			}
			return 0;
		}
	`)}
	obj, bag, err := Compile([]Source{src}, Options{TargetOS: Linux})
	require.NoError(t, err)
	require.NotNil(t, obj)
	require.Equal(t, 0, bag.ExitCode())
	require.Contains(t, string(obj.Bytes), ".gcc_except_table")
}

func TestCompileEmitsXdataPdataForTryCatchOnWindows(t *testing.T) {
	src := Source{Path: "tc.cpp", Text: []byte(`
		int f() {
			try {
				throw 1;
			} catch (int e) {
				return e;
			}
			return 0;
		}
	`)}
	obj, bag, err := Compile([]Source{src}, Options{TargetOS: Windows})
	require.NoError(t, err)
	require.NotNil(t, obj)
	require.Equal(t, 0, bag.ExitCode())
	require.Contains(t, string(obj.Bytes), ".xdata")
	require.Contains(t, string(obj.Bytes), ".pdata")
}

func TestCompileReportsParseErrorWithExitCodeOne(t *testing.T) {
	src := Source{Path: "bad.cpp", Text: []byte("int ;")}
	obj, bag, err := Compile([]Source{src}, Options{TargetOS: Linux})
	require.NoError(t, err)
	require.Nil(t, obj)
	require.True(t, bag.HasErrors())
	require.Equal(t, 1, bag.ExitCode())
}

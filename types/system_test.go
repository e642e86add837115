package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternIsReferenceEqual(t *testing.T) {
	sys := NewSystem(DefaultDataLayout)

	a := sys.PointerTo(sys.Int32(), Global)
	b := sys.PointerTo(sys.Int32(), Global)
	assert.Same(t, a, b, "structurally identical pointer types must intern to the same handle")

	c := sys.PointerTo(sys.Int32(), Shared)
	assert.NotSame(t, a, c, "different address spaces must be distinct types")
}

func TestInternConcurrentFirstInsert(t *testing.T) {
	sys := NewSystem(DefaultDataLayout)
	elem := sys.Float64()

	const n = 64
	results := make([]*Type, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = sys.ViewOf(elem, Global)
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestSizeAlignPrimitives(t *testing.T) {
	sys := NewSystem(DefaultDataLayout)

	cases := []struct {
		t    *Type
		size uint64
	}{
		{sys.Bool(), 1},
		{sys.Int8(), 1},
		{sys.Int16(), 2},
		{sys.Int32(), 4},
		{sys.Int64(), 8},
		{sys.Float16(), 2},
		{sys.Float32(), 4},
		{sys.Float64(), 8},
	}
	for _, c := range cases {
		size, err := sys.Size(c.t)
		require.NoError(t, err)
		assert.Equal(t, c.size, size)

		align, err := sys.Align(c.t)
		require.NoError(t, err)
		assert.Equal(t, c.size, align, "primitives are aligned to their own size")
	}
}

func TestSizeVoidAndFunctionFail(t *testing.T) {
	sys := NewSystem(DefaultDataLayout)

	_, err := sys.Size(sys.Void())
	require.Error(t, err)
	var invalid *InvalidTypeError
	require.ErrorAs(t, err, &invalid)

	fn := sys.FunctionOf(sys.Void(), []*Type{sys.Int32()})
	_, err = sys.Size(fn)
	require.Error(t, err)
}

func TestStructLayout(t *testing.T) {
	sys := NewSystem(DefaultDataLayout)

	st := sys.StructureOf([]Field{
		{Name: "flag", Elem: sys.Bool()},
		{Name: "value", Elem: sys.Float64()},
		{Name: "count", Elem: sys.Int32()},
	})

	off0, err := sys.FieldOffset(st, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off0)

	off1, err := sys.FieldOffset(st, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), off1, "padded to float64's 8-byte alignment")

	off2, err := sys.FieldOffset(st, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), off2)

	size, err := sys.Size(st)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), size, "padded to the max field alignment (8)")
}

func TestPointerWidthPerAddressSpace(t *testing.T) {
	layout := DataLayout{PointerBits: map[AddressSpace]int{
		Generic: 64,
		Shared:  32,
	}}
	sys := NewSystem(layout)

	genPtr := sys.PointerTo(sys.Int32(), Generic)
	sharedPtr := sys.PointerTo(sys.Int32(), Shared)

	genSize, err := sys.Size(genPtr)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), genSize)

	sharedSize, err := sys.Size(sharedPtr)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), sharedSize)
}

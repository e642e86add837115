package debuginfo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls   int
	fail    int // number of leading calls that return an error
	payload []byte
}

func (f *fakeProvider) LoadDebugInfo(ctx context.Context, assemblyID string) ([]byte, error) {
	f.calls++
	if f.calls <= f.fail {
		return nil, errors.New("symbol server unavailable")
	}
	return f.payload, nil
}

func parseStub(b []byte) (*Table, error) {
	return &Table{points: map[string][]SequencePoint{
		"Kernel": {{Offset: 0, File: "k.cs", Line: 1}, {Offset: 4, File: "k.cs", Line: 2}},
	}}, nil
}

func TestLoaderNilProviderTolerated(t *testing.T) {
	l := NewLoader(nil, parseStub, Options{})
	table, err := l.Load(context.Background(), "Asm1")
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestLoaderRetriesThenSucceeds(t *testing.T) {
	fp := &fakeProvider{fail: 2, payload: []byte("pdb-bytes")}
	l := NewLoader(fp, parseStub, Options{MaxRetries: 5, MaxElapsed: 5 * time.Second})

	table, err := l.Load(context.Background(), "Asm1")
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, 3, fp.calls)

	pt, ok := table.Lookup("Kernel", 4)
	assert.True(t, ok)
	assert.Equal(t, 2, pt.Line)
}

func TestLoaderCachesAcrossCalls(t *testing.T) {
	fp := &fakeProvider{payload: []byte("pdb-bytes")}
	l := NewLoader(fp, parseStub, Options{})

	_, err := l.Load(context.Background(), "Asm1")
	require.NoError(t, err)
	_, err = l.Load(context.Background(), "Asm1")
	require.NoError(t, err)

	assert.Equal(t, 1, fp.calls, "second Load should hit the cache, not the provider")
}

func TestLoaderExhaustsRetries(t *testing.T) {
	fp := &fakeProvider{fail: 100}
	l := NewLoader(fp, parseStub, Options{MaxRetries: 2, MaxElapsed: 200 * time.Millisecond})

	_, err := l.Load(context.Background(), "Asm1")
	assert.Error(t, err)
}

func TestLookupMissingOffsetNotFound(t *testing.T) {
	table, _ := parseStub(nil)
	_, ok := table.Lookup("Kernel", -1)
	assert.False(t, ok)
}

func TestLookupNilTable(t *testing.T) {
	var table *Table
	_, ok := table.Lookup("Kernel", 0)
	assert.False(t, ok)
}

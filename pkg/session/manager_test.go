package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/fdw-bridge/pkg/fdw"
	"github.com/txn2/fdw-bridge/pkg/registry"
)

const (
	testTTL      = 5 * time.Minute
	testShortTTL = 10 * time.Millisecond
)

// fakeAdapter counts Close calls so teardown can be asserted.
type fakeAdapter struct {
	closed int
}

func (f *fakeAdapter) BeginScan(_ context.Context, _ *fdw.Descriptor, _ []fdw.Predicate) (fdw.ScanCursor, error) {
	return nil, fdw.ErrUnsupported
}

func (f *fakeAdapter) BeginModify(_ context.Context, _ *fdw.Descriptor) (fdw.Modifier, error) {
	return nil, fdw.ErrUnsupported
}

func (f *fakeAdapter) KeyColumns(_ *fdw.Descriptor) []string { return nil }

func (f *fakeAdapter) Close() error {
	f.closed++
	return nil
}

func newTestRegistry(t *testing.T) (*registry.Registry, *[]*fakeAdapter) {
	t.Helper()

	var created []*fakeAdapter
	r := registry.NewRegistry()
	r.RegisterFactory("fake", func(_ *fdw.Descriptor) (fdw.ForeignData, error) {
		a := &fakeAdapter{}
		created = append(created, a)
		return a, nil
	})

	desc := &fdw.Descriptor{
		Table:     "users",
		Namespace: "public",
		Columns:   []fdw.Column{{Name: "id", Type: fdw.TypeText}},
	}
	require.NoError(t, r.Bind(desc, "fake"))
	return r, &created
}

func TestAdapterIsLazyAndCached(t *testing.T) {
	r, created := newTestRegistry(t)
	m := NewManager(r, testTTL, nil)
	ctx := context.Background()

	id := m.Open(ctx)
	assert.Empty(t, *created, "no instance before first use")

	first, desc, err := m.Adapter(ctx, id, "public.users")
	require.NoError(t, err)
	require.Len(t, *created, 1)
	assert.Equal(t, "public.users", desc.QualifiedName())

	second, _, err := m.Adapter(ctx, id, "public.users")
	require.NoError(t, err)
	assert.Same(t, first, second, "repeated access resolves to the same instance")
	assert.Len(t, *created, 1)
}

func TestSessionsHoldIndependentInstances(t *testing.T) {
	r, created := newTestRegistry(t)
	m := NewManager(r, testTTL, nil)
	ctx := context.Background()

	a1, _, err := m.Adapter(ctx, m.Open(ctx), "public.users")
	require.NoError(t, err)
	a2, _, err := m.Adapter(ctx, m.Open(ctx), "public.users")
	require.NoError(t, err)

	assert.NotSame(t, a1, a2)
	assert.Len(t, *created, 2)
}

func TestAdapterUnknownSession(t *testing.T) {
	r, _ := newTestRegistry(t)
	m := NewManager(r, testTTL, nil)

	_, _, err := m.Adapter(context.Background(), "nonexistent", "public.users")
	assert.ErrorIs(t, err, fdw.ErrNotFound)
}

func TestAdapterUnknownTable(t *testing.T) {
	r, _ := newTestRegistry(t)
	m := NewManager(r, testTTL, nil)
	ctx := context.Background()

	_, _, err := m.Adapter(ctx, m.Open(ctx), "public.ghosts")
	assert.ErrorIs(t, err, fdw.ErrNotFound)
}

func TestCloseSessionClosesAdapters(t *testing.T) {
	r, created := newTestRegistry(t)
	m := NewManager(r, testTTL, nil)
	ctx := context.Background()

	id := m.Open(ctx)
	_, _, err := m.Adapter(ctx, id, "public.users")
	require.NoError(t, err)

	require.NoError(t, m.CloseSession(id))
	require.Len(t, *created, 1)
	assert.Equal(t, 1, (*created)[0].closed)

	_, _, err = m.Adapter(ctx, id, "public.users")
	assert.ErrorIs(t, err, fdw.ErrNotFound, "closed session is gone")
}

func TestCloseSessionUnknownIsNoop(t *testing.T) {
	r, _ := newTestRegistry(t)
	m := NewManager(r, testTTL, nil)

	assert.NoError(t, m.CloseSession("nonexistent"))
}

func TestExpiredSessionRejectsAccess(t *testing.T) {
	r, _ := newTestRegistry(t)
	m := NewManager(r, testShortTTL, nil)
	ctx := context.Background()

	id := m.Open(ctx)
	time.Sleep(2 * testShortTTL)

	_, _, err := m.Adapter(ctx, id, "public.users")
	assert.ErrorIs(t, err, fdw.ErrNotFound)
}

func TestCleanupClosesExpiredAdapters(t *testing.T) {
	r, created := newTestRegistry(t)
	m := NewManager(r, testShortTTL, nil)
	ctx := context.Background()

	id := m.Open(ctx)
	_, _, err := m.Adapter(ctx, id, "public.users")
	require.NoError(t, err)

	time.Sleep(2 * testShortTTL)
	require.NoError(t, m.Cleanup())

	require.Len(t, *created, 1)
	assert.Equal(t, 1, (*created)[0].closed)
}

func TestManagerCloseTearsDownEverything(t *testing.T) {
	r, created := newTestRegistry(t)
	m := NewManager(r, testTTL, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := m.Open(ctx)
		_, _, err := m.Adapter(ctx, id, "public.users")
		require.NoError(t, err)
	}

	require.NoError(t, m.Close())
	require.Len(t, *created, 3)
	for _, a := range *created {
		assert.Equal(t, 1, a.closed)
	}
}

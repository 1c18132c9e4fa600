package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entity struct {
	ID   int64
	Name string
}

func newTestCollection(remote Remote[entity, string]) *Collection[entity, string] {
	return NewCollection(func(e entity) int64 { return e.ID }, remote)
}

func TestFetch_ReplacesCollectionWholesale(t *testing.T) {
	responses := [][]entity{
		{{1, "a"}, {2, "b"}, {3, "c"}},
		{{2, "b"}},
	}
	call := 0
	c := newTestCollection(Remote[entity, string]{
		Fetch: func(ctx context.Context) ([]entity, error) {
			resp := responses[call]
			call++
			return resp, nil
		},
	})

	require.NoError(t, c.Fetch(context.Background()))
	assert.Equal(t, 3, c.Len())

	// Records missing from the next response disappear locally, no
	// tombstones.
	require.NoError(t, c.Fetch(context.Background()))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(2)
	assert.True(t, ok)
}

func TestAdd_AppendsCanonicalRecord(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{
		Add: func(ctx context.Context, name string) (entity, error) {
			// The server assigns the id; the payload carries no id at all.
			return entity{ID: 42, Name: name}, nil
		},
	})

	before := c.Len()
	added, err := c.Add(context.Background(), "lunch")
	require.NoError(t, err)

	assert.Equal(t, int64(42), added.ID)
	assert.Equal(t, before+1, c.Len())
	got, ok := c.Get(42)
	require.True(t, ok)
	assert.Equal(t, "lunch", got.Name)
}

func TestAdd_DoesNotDeduplicate(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{
		Add: func(ctx context.Context, name string) (entity, error) {
			return entity{ID: 7, Name: name}, nil
		},
	})
	c.Replace([]entity{{7, "already here"}})

	_, err := c.Add(context.Background(), "again")
	require.NoError(t, err)
	// Append, not merge-by-id: the duplicate stays.
	assert.Equal(t, 2, c.Len())
}

func TestAdd_FailureLeavesCollectionUntouched(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{
		Add: func(ctx context.Context, name string) (entity, error) {
			return entity{}, errors.New("rejected")
		},
	})
	c.Replace([]entity{{1, "a"}})

	_, err := c.Add(context.Background(), "b")
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, StatusFailed, c.Status(OpAdd))
}

func TestUpdate_ReplacesMatchingEntryOnly(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{
		Update: func(ctx context.Context, id int64, name string) (entity, error) {
			return entity{ID: id, Name: name}, nil
		},
	})
	c.Replace([]entity{{1, "a"}, {2, "b"}, {3, "c"}})

	_, err := c.Update(context.Background(), 2, "B")
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len(), "update never changes collection length")
	got, _ := c.Get(2)
	assert.Equal(t, "B", got.Name)
	first, _ := c.Get(1)
	assert.Equal(t, "a", first.Name, "entries not matching the id are untouched")
}

func TestUpdate_SilentlyDropsResponseOnMiss(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{
		Update: func(ctx context.Context, id int64, name string) (entity, error) {
			return entity{ID: id, Name: name}, nil
		},
	})
	c.Replace([]entity{{1, "a"}})

	// Id 99 is not cached locally; the response is dropped, no
	// insert-on-miss.
	_, err := c.Update(context.Background(), 99, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(99)
	assert.False(t, ok)
}

func TestDelete_RemovesOnlyAfterConfirmation(t *testing.T) {
	fail := false
	c := newTestCollection(Remote[entity, string]{
		Delete: func(ctx context.Context, id int64) error {
			if fail {
				return errors.New("not found")
			}
			return nil
		},
	})
	c.Replace([]entity{{1, "a"}, {2, "b"}})

	require.NoError(t, c.Delete(context.Background(), 1))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)

	// A repeated delete fails remotely; its failure path must not remove
	// any other entry nor reintroduce the id.
	fail = true
	err := c.Delete(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
	_, ok = c.Get(2)
	assert.True(t, ok)
}

func TestStatus_PendingObservedBeforeTerminal(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{})
	var observed Status
	c.remote.Fetch = func(ctx context.Context) ([]entity, error) {
		observed = c.Status(OpFetch)
		return nil, nil
	}

	require.NoError(t, c.Fetch(context.Background()))
	assert.Equal(t, StatusPending, observed)
	assert.Equal(t, StatusSucceeded, c.Status(OpFetch))
}

func TestStatus_IndependentPerOperationKind(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{
		Fetch:  func(ctx context.Context) ([]entity, error) { return nil, nil },
		Delete: func(ctx context.Context, id int64) error { return errors.New("nope") },
	})

	require.NoError(t, c.Fetch(context.Background()))
	require.Error(t, c.Delete(context.Background(), 1))

	assert.Equal(t, StatusSucceeded, c.Status(OpFetch))
	assert.Equal(t, StatusFailed, c.Status(OpDelete))
	assert.Equal(t, StatusIdle, c.Status(OpAdd))
}

func TestLastError_OverwrittenByMostRecentFailure(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	c := newTestCollection(Remote[entity, string]{
		Fetch:  func(ctx context.Context) ([]entity, error) { return nil, first },
		Delete: func(ctx context.Context, id int64) error { return second },
	})

	_ = c.Fetch(context.Background())
	state := c.LastError()
	assert.Equal(t, first, state.Err)

	_ = c.Delete(context.Background(), 1)
	state = c.LastError()
	assert.Equal(t, second, state.Err, "one shared slot across all operation kinds")
}

func TestAckError_StaleGenerationDoesNotClearNewerFailure(t *testing.T) {
	c := newTestCollection(Remote[entity, string]{
		Fetch: func(ctx context.Context) ([]entity, error) { return nil, errors.New("boom") },
	})

	_ = c.Fetch(context.Background())
	stale := c.LastError()

	_ = c.Fetch(context.Background())
	c.AckError(stale.Generation)
	assert.Error(t, c.LastError().Err, "newer failure survives a stale ack")

	current := c.LastError()
	c.AckError(current.Generation)
	assert.NoError(t, c.LastError().Err)
}

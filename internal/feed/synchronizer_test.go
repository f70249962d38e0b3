package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeToggler flips a per-item like flag, like the server does
type fakeToggler struct {
	mu    sync.Mutex
	liked map[string]bool
	calls int
	err   error
	gate  chan struct{}
}

func (f *fakeToggler) ToggleLike(ctx context.Context, viewerID, itemID string) (bool, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.liked == nil {
		f.liked = make(map[string]bool)
	}
	f.liked[itemID] = !f.liked[itemID]
	return f.liked[itemID], nil
}

func (f *fakeToggler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestSynchronizer(t *testing.T) (*Synchronizer, *Source, *fakeToggler) {
	t.Helper()
	source, _ := newTestSource(fiveItems()...)
	toggler := &fakeToggler{}
	return NewSynchronizer(toggler, source), source, toggler
}

func cachedItem(t *testing.T, source *Source, key Key, id string) (Item, bool) {
	t.Helper()
	cached, err := source.Cached(context.Background(), testSession, key)
	require.NoError(t, err)
	return cached.Find(id)
}

func TestSynchronizer_PatchesEveryCachedFeed(t *testing.T) {
	ctx := context.Background()
	syncer, source, toggler := newTestSynchronizer(t)
	require.NoError(t, source.Ensure(ctx, testSession, Global))
	require.NoError(t, source.Ensure(ctx, testSession, Profile("u1")))

	target, ok := cachedItem(t, source, Global, "t4")
	require.True(t, ok)
	before, err := source.Cached(ctx, testSession, Global)
	require.NoError(t, err)

	result, err := syncer.Toggle(ctx, testSession, target)
	require.NoError(t, err)
	assert.True(t, result.AddedLike)
	assert.Equal(t, 2, result.Item.LikesCount)
	assert.True(t, result.Item.LikedByMe)
	assert.Equal(t, 1, toggler.callCount())

	for _, key := range []Key{Global, Profile("u1")} {
		got, ok := cachedItem(t, source, key, "t4")
		require.True(t, ok, key.String())
		assert.Equal(t, 2, got.LikesCount)
		assert.True(t, got.LikedByMe)
	}

	other, ok := cachedItem(t, source, Global, "t5")
	require.True(t, ok)
	assert.Equal(t, item("t5", 0, false), other)

	following, err := source.Cached(ctx, testSession, Following)
	require.NoError(t, err)
	assert.Nil(t, following, "feeds that were never fetched stay absent")

	assert.Equal(t, 1, before.Items()[1].LikesCount, "previous values are not mutated")
}

func TestSynchronizer_ToggleTwiceRestoresItem(t *testing.T) {
	ctx := context.Background()
	syncer, source, _ := newTestSynchronizer(t)
	require.NoError(t, source.Ensure(ctx, testSession, Global))
	original, ok := cachedItem(t, source, Global, "t5")
	require.True(t, ok)

	added, err := syncer.Toggle(ctx, testSession, original)
	require.NoError(t, err)
	assert.True(t, added.AddedLike)

	removed, err := syncer.Toggle(ctx, testSession, added.Item)
	require.NoError(t, err)
	assert.False(t, removed.AddedLike)

	got, ok := cachedItem(t, source, Global, "t5")
	require.True(t, ok)
	assert.Equal(t, original, got)
	assert.Equal(t, original, removed.Item)
}

func TestSynchronizer_GuestNeverCallsTransport(t *testing.T) {
	ctx := context.Background()
	syncer, source, toggler := newTestSynchronizer(t)
	guest := Session{ID: "view-guest"}
	require.NoError(t, source.Ensure(ctx, guest, Global))

	_, err := syncer.Toggle(ctx, guest, item("t5", 0, false))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 0, toggler.callCount())
}

func TestSynchronizer_FailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	syncer, source, toggler := newTestSynchronizer(t)
	require.NoError(t, source.Ensure(ctx, testSession, Global))
	before, err := source.Cached(ctx, testSession, Global)
	require.NoError(t, err)

	boom := errors.New("rpc failed")
	toggler.err = boom

	_, err = syncer.Toggle(ctx, testSession, item("t5", 0, false))
	var mutationErr *MutationError
	require.ErrorAs(t, err, &mutationErr)
	assert.Equal(t, "t5", mutationErr.ItemID)
	assert.ErrorIs(t, err, boom)

	after, err := source.Cached(ctx, testSession, Global)
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.False(t, syncer.InFlight(testSession.ID, "t5"))
}

func TestSynchronizer_RejectsToggleInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	syncer, source, toggler := newTestSynchronizer(t)
	require.NoError(t, source.Ensure(ctx, testSession, Global))
	toggler.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := syncer.Toggle(ctx, testSession, item("t5", 0, false))
		done <- err
	}()

	assert.Eventually(t, func() bool { return syncer.InFlight(testSession.ID, "t5") }, time.Second, time.Millisecond)

	_, err := syncer.Toggle(ctx, testSession, item("t5", 0, false))
	assert.ErrorIs(t, err, ErrToggleInFlight)

	assert.False(t, syncer.InFlight(testSession.ID, "t4"), "other items are independent")
	assert.False(t, syncer.InFlight("view-2", "t5"), "other sessions are independent")

	close(toggler.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, toggler.callCount())
	assert.False(t, syncer.InFlight(testSession.ID, "t5"))
}

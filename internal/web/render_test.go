package web

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/models"
)

func TestResolve(t *testing.T) {
	some := []feed.Item{{ID: "t1"}}

	for _, loading := range []bool{false, true} {
		for _, errored := range []bool{false, true} {
			for _, items := range [][]feed.Item{nil, {}, some} {
				for _, hasMore := range []bool{false, true} {
					state := ListState{Items: items, Loading: loading, Errored: errored, HasMore: hasMore}

					var want ViewKind
					switch {
					case loading:
						want = ViewLoading
					case errored:
						want = ViewError
					case len(items) == 0:
						want = ViewEmpty
					default:
						want = ViewList
					}

					name := fmt.Sprintf("loading=%v/errored=%v/items=%d/more=%v", loading, errored, len(items), hasMore)
					assert.Equal(t, want, Resolve(state), name)
				}
			}
		}
	}
}

func TestViewKind_String(t *testing.T) {
	assert.Equal(t, "loading", ViewLoading.String())
	assert.Equal(t, "error", ViewError.String())
	assert.Equal(t, "empty", ViewEmpty.String())
	assert.Equal(t, "list", ViewList.String())
	assert.Equal(t, "unknown", ViewKind(42).String())
}

func testRenderer(viewer Viewer, key feed.Key) cardRenderer {
	return cardRenderer{
		viewer: viewer,
		feed:   key,
		format: ShortDateFormatter("en-US", time.UTC),
	}
}

func TestListView_Sentinel(t *testing.T) {
	r := testRenderer(GuestViewer(), feed.Global)
	items := []feed.Item{{ID: "t2"}, {ID: "t1"}}

	view := r.listView(ListState{Items: items, HasMore: true}, "c1", 300)
	assert.Equal(t, ViewList, view.Kind)
	assert.Len(t, view.Cards, 2)
	require.NotNil(t, view.Sentinel)
	assert.Equal(t, "/feeds/more?after=c1&feed=global", view.Sentinel.URL)
	assert.Equal(t, 300, view.Sentinel.Threshold)

	view = r.listView(ListState{Items: items}, "", 300)
	assert.Nil(t, view.Sentinel, "no sentinel once the feed is exhausted")

	// an empty first page never shows a sentinel, even with more pages
	view = r.listView(ListState{Items: []feed.Item{}, HasMore: true}, "c1", 300)
	assert.Equal(t, ViewEmpty, view.Kind)
	assert.Nil(t, view.Sentinel)
	assert.Empty(t, view.Cards)

	view = r.listView(ListState{Items: items, Errored: true, HasMore: true}, "c1", 300)
	assert.Equal(t, ViewError, view.Kind)
	assert.Nil(t, view.Sentinel)
	assert.Equal(t, "/feeds/list?feed=global", view.ListURL)
}

func TestCardRenderer_Card(t *testing.T) {
	created := time.Date(2024, 3, 7, 23, 30, 0, 0, time.UTC)
	it := feed.Item{
		ID:         "t1",
		Content:    "hello\nworld",
		CreatedAt:  created,
		LikesCount: 4,
		LikedByMe:  true,
		Author:     feed.Author{ID: "u 1", Name: "Ada"},
	}
	r := testRenderer(AuthenticatedViewer(&models.User{ID: "u2"}), feed.Profile("u 1"))
	r.inFlight = func(id string) bool { return id == "t1" }

	card := r.card(it)
	assert.Equal(t, "/profiles/u%201", card.ProfileURL)
	assert.Equal(t, "3/7/24", card.Date)
	assert.Equal(t, "2024-03-07T23:30:00Z", card.DateTime)
	assert.Equal(t, "profile:u 1", card.Like.Feed)
	assert.True(t, card.Like.Disabled)
	assert.Equal(t, it, card.Item)
}

func TestNewLikeControl(t *testing.T) {
	liked := feed.Item{ID: "t1", LikesCount: 3, LikedByMe: true}
	notLiked := feed.Item{ID: "t2", LikesCount: 0}
	ada := AuthenticatedViewer(&models.User{ID: "u1", Name: "Ada"})

	tests := []struct {
		name        string
		viewer      Viewer
		item        feed.Item
		inFlight    bool
		interactive bool
		disabled    bool
		icon        string
		tone        string
		label       string
	}{
		{"guest sees liked state read-only", GuestViewer(), liked, false, false, false, "heart-filled", "muted", "Unlike"},
		{"guest is never disabled", GuestViewer(), notLiked, true, false, false, "heart-outline", "muted", "Like"},
		{"viewer liked", ada, liked, false, true, false, "heart-filled", "accent", "Unlike"},
		{"viewer not liked", ada, notLiked, false, true, false, "heart-outline", "neutral", "Like"},
		{"viewer in flight", ada, notLiked, true, true, true, "heart-outline", "neutral", "Like"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			control := NewLikeControl(tt.viewer, tt.item, tt.inFlight)
			assert.Equal(t, tt.item.LikesCount, control.Count)
			assert.Equal(t, tt.interactive, control.Interactive)
			assert.Equal(t, tt.disabled, control.Disabled)
			assert.Equal(t, tt.icon, control.Icon())
			assert.Equal(t, tt.tone, control.Tone())
			assert.Equal(t, tt.label, control.Label())
			assert.Equal(t, "/tweets/"+tt.item.ID+"/like", control.Action())
		})
	}
}

func TestInitial(t *testing.T) {
	assert.Equal(t, "A", initial("ada"))
	assert.Equal(t, "É", initial(" émile"))
	assert.Equal(t, "?", initial("  "))
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/profiles/u1", localPath("/profiles/u1"))
	assert.Equal(t, "/", localPath(""))
	assert.Equal(t, "/", localPath("https://evil.example"))
	assert.Equal(t, "/", localPath("//evil.example"))
	assert.Equal(t, "/", localPath("/\\evil.example"))
}

package web

import (
	"net/url"
	"time"

	"github.com/steemit/chirp/internal/feed"
)

// ListState is everything the feed renderer needs to pick a view
type ListState struct {
	Items   []feed.Item // nil while absent
	Loading bool
	Errored bool
	HasMore bool
}

// StateOf converts a cache snapshot into a list state
func StateOf(snap feed.Snapshot) ListState {
	return ListState{
		Items:   snap.Items,
		Loading: snap.Loading,
		Errored: snap.Errored,
		HasMore: snap.HasMore,
	}
}

// ViewKind is the single view a feed list renders as
type ViewKind int

const (
	ViewLoading ViewKind = iota
	ViewError
	ViewEmpty
	ViewList
)

func (k ViewKind) String() string {
	switch k {
	case ViewLoading:
		return "loading"
	case ViewError:
		return "error"
	case ViewEmpty:
		return "empty"
	case ViewList:
		return "list"
	default:
		return "unknown"
	}
}

// Resolve picks the view for a list state. Loading wins over errored, errored
// over empty, and an empty list is shown as empty even when more pages exist.
func Resolve(s ListState) ViewKind {
	switch {
	case s.Loading:
		return ViewLoading
	case s.Errored:
		return ViewError
	case len(s.Items) == 0:
		return ViewEmpty
	default:
		return ViewList
	}
}

// Card is one rendered tweet
type Card struct {
	Item       feed.Item
	ProfileURL string
	Date       string
	DateTime   string
	Like       LikeControl
}

// Sentinel marks the end of a list that can grow
type Sentinel struct {
	URL       string
	Threshold int
}

// ListView is the data of the feed list fragment
type ListView struct {
	Kind     ViewKind
	Feed     string
	Cards    []Card
	Sentinel *Sentinel
	// ListURL reloads the whole list; used by the loading and error views
	ListURL string
}

// IsLoading, IsError, IsEmpty and IsList are used by the templates
func (v ListView) IsLoading() bool { return v.Kind == ViewLoading }
func (v ListView) IsError() bool   { return v.Kind == ViewError }
func (v ListView) IsEmpty() bool   { return v.Kind == ViewEmpty }
func (v ListView) IsList() bool    { return v.Kind == ViewList }

// cardRenderer turns items into cards for one viewer and locale
type cardRenderer struct {
	viewer   Viewer
	feed     feed.Key
	format   func(time.Time) string
	inFlight func(itemID string) bool
}

func (r cardRenderer) card(it feed.Item) Card {
	inFlight := false
	if r.inFlight != nil {
		inFlight = r.inFlight(it.ID)
	}
	return Card{
		Item:       it,
		ProfileURL: profileURL(it.Author.ID),
		Date:       r.format(it.CreatedAt),
		DateTime:   it.CreatedAt.UTC().Format(time.RFC3339),
		Like:       NewLikeControl(r.viewer, it, inFlight).In(r.feed),
	}
}

func (r cardRenderer) cards(items []feed.Item) []Card {
	cards := make([]Card, 0, len(items))
	for _, it := range items {
		cards = append(cards, r.card(it))
	}
	return cards
}

// listView builds the fragment for a list state. The sentinel is only
// present when a list is shown and another page exists.
func (r cardRenderer) listView(state ListState, nextCursor string, threshold int) ListView {
	view := ListView{
		Kind:    Resolve(state),
		Feed:    r.feed.String(),
		ListURL: listURL(r.feed),
	}
	if view.Kind != ViewList {
		return view
	}
	view.Cards = r.cards(state.Items)
	if state.HasMore && nextCursor != "" {
		view.Sentinel = &Sentinel{URL: moreURL(r.feed, nextCursor), Threshold: threshold}
	}
	return view
}

func profileURL(userID string) string {
	return "/profiles/" + url.PathEscape(userID)
}

func listURL(key feed.Key) string {
	return "/feeds/list?" + url.Values{"feed": {key.String()}}.Encode()
}

func moreURL(key feed.Key, after string) string {
	return "/feeds/more?" + url.Values{"feed": {key.String()}, "after": {after}}.Encode()
}

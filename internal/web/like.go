package web

import (
	"net/url"

	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/models"
)

// ViewerKind tells guests and signed-in viewers apart
type ViewerKind uint8

const (
	Guest ViewerKind = iota
	Authenticated
)

// Viewer is the person looking at a page, resolved once per request
type Viewer struct {
	Kind   ViewerKind
	UserID string
	Name   string
	Image  string
}

// GuestViewer is a viewer without a session
func GuestViewer() Viewer {
	return Viewer{Kind: Guest}
}

// AuthenticatedViewer is a viewer signed in as u
func AuthenticatedViewer(u *models.User) Viewer {
	return Viewer{Kind: Authenticated, UserID: u.ID, Name: u.Name, Image: u.Image}
}

// IsAuthenticated reports whether the viewer is signed in
func (v Viewer) IsAuthenticated() bool {
	return v.Kind == Authenticated
}

// LikeControl is the heart and count under a card. For guests it is a
// read-only indicator; for signed-in viewers a button that toggles the like.
type LikeControl struct {
	ItemID      string
	Count       int
	Liked       bool
	Interactive bool
	Disabled    bool
	Feed        string
}

// NewLikeControl derives the control for item as seen by viewer. inFlight
// disables the button while a toggle for the item is pending.
func NewLikeControl(viewer Viewer, item feed.Item, inFlight bool) LikeControl {
	interactive := viewer.IsAuthenticated()
	return LikeControl{
		ItemID:      item.ID,
		Count:       item.LikesCount,
		Liked:       item.LikedByMe,
		Interactive: interactive,
		Disabled:    interactive && inFlight,
	}
}

// In records the feed the control is rendered in, so a toggle can find the item
func (l LikeControl) In(key feed.Key) LikeControl {
	l.Feed = key.String()
	return l
}

// Icon names the heart variant
func (l LikeControl) Icon() string {
	if l.Liked {
		return "heart-filled"
	}
	return "heart-outline"
}

// Tone is the color treatment: accent when liked, neutral with an accent
// hover otherwise. Guests get the muted read-only tone.
func (l LikeControl) Tone() string {
	switch {
	case !l.Interactive:
		return "muted"
	case l.Liked:
		return "accent"
	default:
		return "neutral"
	}
}

// Action is the toggle endpoint
func (l LikeControl) Action() string {
	return "/tweets/" + url.PathEscape(l.ItemID) + "/like"
}

// Label is the accessible name of the button
func (l LikeControl) Label() string {
	if l.Liked {
		return "Unlike"
	}
	return "Like"
}

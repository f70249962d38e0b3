// Package feed holds the session-scoped cache of paginated tweet feeds, the
// data source that fills it page by page, and the like-toggle synchronizer
// that patches it after a successful mutation.
package feed

import (
	"time"
)

// Author is the summary of the user who wrote an item
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Item is one tweet as seen by the current viewer
type Item struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	LikesCount int       `json:"likesCount"`
	LikedByMe  bool      `json:"likedByMe"`
	Author     Author    `json:"user"`
}

// Page is an ordered batch of items. Cursor is the cursor the page was
// requested with ("" for the first page), NextCursor the one that requests
// the following page ("" when the feed is exhausted).
type Page struct {
	Items      []Item `json:"items"`
	Cursor     string `json:"cursor,omitempty"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Infinite is every page fetched so far for one feed, oldest request first
type Infinite struct {
	Pages []*Page `json:"pages"`
}

// Items flattens the pages into one ordered sequence
func (in *Infinite) Items() []Item {
	if in == nil {
		return nil
	}
	n := 0
	for _, p := range in.Pages {
		n += len(p.Items)
	}
	items := make([]Item, 0, n)
	for _, p := range in.Pages {
		items = append(items, p.Items...)
	}
	return items
}

// LastCursor is the cursor that requests the page after the last cached one
func (in *Infinite) LastCursor() string {
	if in == nil || len(in.Pages) == 0 {
		return ""
	}
	return in.Pages[len(in.Pages)-1].NextCursor
}

// HasMore reports whether another page can be requested
func (in *Infinite) HasMore() bool {
	return in.LastCursor() != ""
}

// PageAfter returns the cached page that was requested with cursor, if any
func (in *Infinite) PageAfter(cursor string) *Page {
	if in == nil {
		return nil
	}
	for _, p := range in.Pages {
		if p.Cursor == cursor {
			return p
		}
	}
	return nil
}

// Find returns the first cached occurrence of an item
func (in *Infinite) Find(id string) (Item, bool) {
	if in == nil {
		return Item{}, false
	}
	for _, p := range in.Pages {
		for _, it := range p.Items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return Item{}, false
}

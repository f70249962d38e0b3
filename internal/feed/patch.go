package feed

// UpdateFunc replaces the cached pages of one feed. It must not modify old;
// returning old unchanged means "no write", returning nil drops the feed.
type UpdateFunc func(old *Infinite) *Infinite

// PatchLike rewrites every occurrence of itemID so that its count moves by one
// in the direction of addedLike and LikedByMe equals addedLike. Pages that do
// not contain the item are carried over as the same pointers, and a feed with
// no occurrence is returned as is.
func PatchLike(itemID string, addedLike bool) UpdateFunc {
	delta := likeDelta(addedLike)

	return func(old *Infinite) *Infinite {
		if old == nil {
			return nil
		}

		var pages []*Page
		for i, page := range old.Pages {
			patched := patchPage(page, itemID, delta, addedLike)
			if patched == page && pages == nil {
				continue
			}
			if pages == nil {
				pages = make([]*Page, len(old.Pages))
				copy(pages, old.Pages[:i])
			}
			pages[i] = patched
		}
		if pages == nil {
			return old
		}
		return &Infinite{Pages: pages}
	}
}

func patchPage(page *Page, itemID string, delta int, liked bool) *Page {
	var items []Item
	for i, it := range page.Items {
		if it.ID != itemID {
			continue
		}
		if items == nil {
			items = make([]Item, len(page.Items))
			copy(items, page.Items)
		}
		it.LikesCount += delta
		if it.LikesCount < 0 {
			it.LikesCount = 0
		}
		it.LikedByMe = liked
		items[i] = it
	}
	if items == nil {
		return page
	}
	return &Page{Items: items, Cursor: page.Cursor, NextCursor: page.NextCursor}
}

// appendPage adds page after the page requested with after. The first page
// is only stored when nothing is cached yet, and later pages only when they
// continue the last cached one; anything else leaves the feed as is.
func appendPage(after string, page *Page) UpdateFunc {
	return func(old *Infinite) *Infinite {
		if after == "" {
			if old != nil {
				return old
			}
			return &Infinite{Pages: []*Page{page}}
		}
		if old == nil || old.LastCursor() != after {
			return old
		}
		pages := make([]*Page, len(old.Pages), len(old.Pages)+1)
		copy(pages, old.Pages)
		return &Infinite{Pages: append(pages, page)}
	}
}

// PrependItem puts a freshly created item at the top of the first page.
// Feeds that are not cached stay absent and will load it on first fetch.
func PrependItem(item Item) UpdateFunc {
	return func(old *Infinite) *Infinite {
		if old == nil || len(old.Pages) == 0 {
			return old
		}
		if _, ok := old.Find(item.ID); ok {
			return old
		}
		first := old.Pages[0]
		items := make([]Item, 0, len(first.Items)+1)
		items = append(items, item)
		items = append(items, first.Items...)

		pages := make([]*Page, len(old.Pages))
		copy(pages, old.Pages)
		pages[0] = &Page{Items: items, Cursor: first.Cursor, NextCursor: first.NextCursor}
		return &Infinite{Pages: pages}
	}
}

// Drop removes a feed from the cache so its next render refetches it
func Drop(*Infinite) *Infinite {
	return nil
}

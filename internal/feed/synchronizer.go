package feed

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/steemit/chirp/pkg/logging"
	"github.com/steemit/chirp/pkg/telemetry"
)

// Toggler is the transport that flips the viewer's like on an item. The
// server decides the direction and reports it as addedLike.
type Toggler interface {
	ToggleLike(ctx context.Context, viewerID, itemID string) (addedLike bool, err error)
}

// Toggled is the outcome of a successful toggle
type Toggled struct {
	AddedLike bool
	Item      Item
}

// Synchronizer sends like toggles and applies their result to every cached
// feed that can contain the item.
type Synchronizer struct {
	toggler Toggler
	source  *Source

	mu       sync.Mutex
	inFlight map[string]struct{}

	logger  *zap.Logger
	toggles metric.Int64Counter
}

// NewSynchronizer creates a synchronizer writing through source
func NewSynchronizer(toggler Toggler, source *Source) *Synchronizer {
	return &Synchronizer{
		toggler:  toggler,
		source:   source,
		inFlight: make(map[string]struct{}),
		logger:   logging.WithComponent("like-sync"),
		toggles:  telemetry.Counter("chirp_like_toggles", "Like toggles sent to the transport"),
	}
}

func inFlightKey(sessionID, itemID string) string {
	return sessionID + "|" + itemID
}

// InFlight reports whether a toggle for the item is pending in the session
func (s *Synchronizer) InFlight(sessionID, itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[inFlightKey(sessionID, itemID)]
	return ok
}

func (s *Synchronizer) acquire(k string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[k]; ok {
		return false
	}
	s.inFlight[k] = struct{}{}
	return true
}

func (s *Synchronizer) release(k string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, k)
}

// Toggle flips the viewer's like on item. On success every occurrence of the
// item in the Global, Following and author Profile feeds of the session is
// patched; on failure the cache is left untouched.
func (s *Synchronizer) Toggle(ctx context.Context, session Session, item Item) (Toggled, error) {
	if !session.Authenticated() {
		return Toggled{}, ErrUnauthenticated
	}

	k := inFlightKey(session.ID, item.ID)
	if !s.acquire(k) {
		return Toggled{}, ErrToggleInFlight
	}
	defer s.release(k)

	ctx, span := telemetry.StartSpan(ctx, "feed.toggle_like")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", item.ID))

	addedLike, err := s.toggler.ToggleLike(ctx, session.ViewerID, item.ID)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Like toggle failed",
			zap.String("item", item.ID),
			zap.Error(err))
		return Toggled{}, &MutationError{ItemID: item.ID, Err: err}
	}
	s.toggles.Add(ctx, 1, metric.WithAttributes(attribute.Bool("added", addedLike)))

	patched := patchItem(item, addedLike)
	patch := PatchLike(item.ID, addedLike)
	for _, key := range LikeKeys(item.Author.ID) {
		updated, err := s.source.SetCachedPages(ctx, session, key, patch)
		if err != nil {
			// the like is already stored; only this cached feed is stale
			logging.WithSession(s.logger, session.ID).Error("Failed to patch cached feed",
				zap.String("feed", key.String()),
				zap.String("item", item.ID),
				zap.Error(err))
			continue
		}
		if it, ok := updated.Find(item.ID); ok {
			patched = it
		}
	}

	return Toggled{AddedLike: addedLike, Item: patched}, nil
}

func patchItem(item Item, addedLike bool) Item {
	page := patchPage(&Page{Items: []Item{item}}, item.ID, likeDelta(addedLike), addedLike)
	return page.Items[0]
}

func likeDelta(addedLike bool) int {
	if addedLike {
		return 1
	}
	return -1
}

package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/steemit/chirp/pkg/logging"
	"github.com/steemit/chirp/pkg/telemetry"
)

// Session identifies one viewing session and the signed-in viewer, if any
type Session struct {
	ID       string
	ViewerID string
}

// Authenticated reports whether the session belongs to a signed-in viewer
func (s Session) Authenticated() bool {
	return s.ViewerID != ""
}

// PageRequest asks the transport for one page of a feed
type PageRequest struct {
	ViewerID string
	Key      Key
	Cursor   string
	Limit    int
}

// Fetcher is the transport that loads feed pages
type Fetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// Snapshot is the materialized view of one cached feed the renderer reads
type Snapshot struct {
	Items      []Item // nil while nothing is cached
	Loading    bool
	Errored    bool
	HasMore    bool
	NextCursor string
}

// fetchTimeout bounds a shared transport call, which outlives the caller
// that started it
const fetchTimeout = 30 * time.Second

type fetchStatus struct {
	inFlight int
	err      error
}

// Source fills session FeedCaches from a Fetcher. Concurrent requests for
// the same page of the same session share one transport call, and a page is
// only requested with the cursor that ends the cached feed.
type Source struct {
	fetcher  Fetcher
	store    Store
	pageSize int

	group singleflight.Group

	mu     sync.Mutex
	status map[string]*fetchStatus

	logger       *zap.Logger
	pagesFetched metric.Int64Counter
}

// NewSource creates a data source
func NewSource(fetcher Fetcher, store Store, pageSize int) *Source {
	return &Source{
		fetcher:      fetcher,
		store:        store,
		pageSize:     pageSize,
		status:       make(map[string]*fetchStatus),
		logger:       logging.WithComponent("feed-source"),
		pagesFetched: telemetry.Counter("chirp_feed_pages_fetched", "Feed pages fetched from the transport"),
	}
}

func statusKey(session string, key Key) string {
	return session + "|" + key.String()
}

func (s *Source) begin(sk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[sk]
	if !ok {
		st = &fetchStatus{}
		s.status[sk] = st
	}
	st.inFlight++
}

func (s *Source) end(sk string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[sk]
	if !ok {
		return
	}
	st.inFlight--
	st.err = err
	if st.inFlight <= 0 && st.err == nil {
		delete(s.status, sk)
	}
}

// clearError forgets the failure recorded for a feed
func (s *Source) clearError(sk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[sk]
	if !ok {
		return
	}
	st.err = nil
	if st.inFlight <= 0 {
		delete(s.status, sk)
	}
}

func (s *Source) snapshotStatus(sk string) fetchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[sk]; ok {
		return *st
	}
	return fetchStatus{}
}

// Ensure fetches the first page of a feed unless it is already cached. A
// feed whose first page is cached is reloaded from the cache and loses the
// error of a failed fetch-more, so its sentinel can retry.
func (s *Source) Ensure(ctx context.Context, session Session, key Key) error {
	_, err := s.fetch(ctx, session, key, "")
	return err
}

// FetchMore appends the page that follows cursor after and returns it. A page
// that is already cached is returned without a transport call, and a cursor
// that does not end the cached feed yields ErrStaleCursor.
func (s *Source) FetchMore(ctx context.Context, session Session, key Key, after string) (*Page, error) {
	if after == "" {
		return nil, ErrStaleCursor
	}
	return s.fetch(ctx, session, key, after)
}

// cachedPage returns the page requested with after if it is already cached.
// A missing page is only fetchable when after ends the cached feed.
func (s *Source) cachedPage(ctx context.Context, session Session, key Key, after string) (*Page, error) {
	cached, err := s.store.Load(ctx, session.ID, key)
	if err != nil {
		return nil, &LoadError{Key: key, Err: err}
	}
	if page := cached.PageAfter(after); page != nil {
		return page, nil
	}
	if after != "" && cached.LastCursor() != after {
		return nil, ErrStaleCursor
	}
	return nil, nil
}

func (s *Source) fetch(ctx context.Context, session Session, key Key, after string) (*Page, error) {
	sk := statusKey(session.ID, key)
	if page, err := s.cachedPage(ctx, session, key, after); page != nil || err != nil {
		if page != nil && after == "" {
			s.clearError(sk)
		}
		return page, err
	}

	ch := s.group.DoChan(sk+"|"+after, func() (interface{}, error) {
		// one caller going away does not cancel the shared call
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		// a call that finished just before this one may have stored the page
		if page, err := s.cachedPage(ctx, session, key, after); page != nil || err != nil {
			return page, err
		}

		ctx, span := telemetry.StartSpan(ctx, "feed.fetch_page")
		defer span.End()

		s.begin(sk)
		page, err := s.fetcher.FetchPage(ctx, PageRequest{
			ViewerID: session.ViewerID,
			Key:      key,
			Cursor:   after,
			Limit:    s.pageSize,
		})
		if err != nil {
			span.RecordError(err)
			s.end(sk, err)
			return nil, &LoadError{Key: key, Err: err}
		}
		page.Cursor = after

		updated, err := s.store.Update(ctx, session.ID, key, appendPage(after, page))
		s.end(sk, err)
		if err != nil {
			return nil, &LoadError{Key: key, Err: err}
		}

		s.pagesFetched.Add(ctx, 1, metric.WithAttributes(attribute.String("feed", keyKindName(key))))
		stored := updated.PageAfter(after)
		if stored == nil {
			return nil, ErrStaleCursor
		}
		return stored, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		if !errors.Is(res.Err, ErrStaleCursor) {
			s.logger.Warn("Feed page fetch failed",
				zap.String("feed", key.String()),
				zap.Bool("shared", res.Shared),
				zap.Error(res.Err))
		}
		return nil, res.Err
	}
	return res.Val.(*Page), nil
}

func keyKindName(k Key) string {
	if k.AuthorID() != "" {
		return "profile"
	}
	return k.String()
}

// Snapshot returns the materialized view of a feed for rendering
func (s *Source) Snapshot(ctx context.Context, session Session, key Key) (Snapshot, error) {
	cached, err := s.store.Load(ctx, session.ID, key)
	if err != nil {
		return Snapshot{Errored: true}, &LoadError{Key: key, Err: err}
	}
	st := s.snapshotStatus(statusKey(session.ID, key))
	return Snapshot{
		Items:      cached.Items(),
		Loading:    cached == nil && st.inFlight > 0,
		Errored:    st.err != nil,
		HasMore:    cached.HasMore(),
		NextCursor: cached.LastCursor(),
	}, nil
}

// Cached returns the cached pages of a feed without fetching
func (s *Source) Cached(ctx context.Context, session Session, key Key) (*Infinite, error) {
	return s.store.Load(ctx, session.ID, key)
}

// SetCachedPages replaces the cached pages of a feed through fn
func (s *Source) SetCachedPages(ctx context.Context, session Session, key Key, fn UpdateFunc) (*Infinite, error) {
	return s.store.Update(ctx, session.ID, key, fn)
}

// Discard drops the FeedCache of a viewing session
func (s *Source) Discard(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	for sk := range s.status {
		if strings.HasPrefix(sk, sessionID+"|") {
			delete(s.status, sk)
		}
	}
	s.mu.Unlock()
	return s.store.Discard(ctx, sessionID)
}

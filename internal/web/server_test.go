package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/models"
	"github.com/steemit/chirp/internal/service"
	"github.com/steemit/chirp/pkg/config"
)

const testViewID = "0b5c3a7e-3f0a-4d52-9a43-3c2d6c9a1b10"

type fakeFetcher struct {
	mu    sync.Mutex
	items []feed.Item
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeFetcher) FetchPage(ctx context.Context, req feed.PageRequest) (*feed.Page, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	start := 0
	if req.Cursor != "" {
		start, _ = strconv.Atoi(req.Cursor)
	}
	end := start + req.Limit
	if end > len(f.items) {
		end = len(f.items)
	}
	page := &feed.Page{Items: append([]feed.Item(nil), f.items[start:end]...)}
	if end < len(f.items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

type fakeToggler struct {
	mu    sync.Mutex
	liked map[string]bool
	err   error
	calls atomic.Int32
}

func (f *fakeToggler) ToggleLike(_ context.Context, _ string, itemID string) (bool, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.liked[itemID] = !f.liked[itemID]
	return f.liked[itemID], nil
}

type fakeAuth struct {
	mu       sync.Mutex
	sessions map[string]*models.User
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*models.Session, error) {
	if email != "ada@example.com" || password != "correct horse" {
		return nil, service.ErrInvalidCredentials
	}
	user := &models.User{ID: "u1", Name: "Ada"}
	f.mu.Lock()
	f.sessions["tok-new"] = user
	f.mu.Unlock()
	return &models.Session{Token: "tok-new", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour), User: user}, nil
}

func (f *fakeAuth) Resolve(_ context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[token], nil
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

type fakeTweets struct {
	created []string
}

func (f *fakeTweets) Create(_ context.Context, viewerID, content string) (feed.Item, error) {
	if strings.TrimSpace(content) == "" {
		return feed.Item{}, service.ErrEmptyContent
	}
	f.created = append(f.created, content)
	return feed.Item{ID: "t-new", Content: content, CreatedAt: time.Now(), Author: feed.Author{ID: viewerID, Name: "Ada"}}, nil
}

type fakeProfiles struct{}

func (fakeProfiles) Get(_ context.Context, _ string, id string) (*service.Profile, error) {
	if id != "u1" && id != "u2" {
		return nil, db.ErrUserNotFound
	}
	return &service.Profile{ID: id, Name: "User " + id}, nil
}

func (fakeProfiles) ToggleFollow(_ context.Context, viewerID, userID string) (bool, error) {
	if viewerID == userID {
		return false, db.ErrSelfFollow
	}
	return true, nil
}

type testEnv struct {
	engine  *gin.Engine
	source  *feed.Source
	fetcher *fakeFetcher
	toggler *fakeToggler
	tweets  *fakeTweets
}

func fiveItems() []feed.Item {
	created := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
	items := make([]feed.Item, 0, 5)
	for i := 5; i >= 1; i-- {
		items = append(items, feed.Item{
			ID:         "t" + strconv.Itoa(i),
			Content:    "tweet " + strconv.Itoa(i),
			CreatedAt:  created.Add(time.Duration(i) * time.Hour),
			LikesCount: i,
			Author:     feed.Author{ID: "u2", Name: "Grace"},
		})
	}
	return items
}

func newTestEnv(t *testing.T, items []feed.Item) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Feed: config.FeedConfig{
			PageSize:        2,
			ScrollThreshold: 300,
			InitialWait:     time.Second,
			SessionTTL:      time.Hour,
		},
		Session: config.SessionConfig{
			CookieName:     "chirp_session",
			ViewCookieName: "chirp_view",
			TTL:            time.Hour,
		},
		Site: config.SiteConfig{Title: "Twitter", Description: "Twitter Clone App"},
	}

	fetcher := &fakeFetcher{items: items}
	toggler := &fakeToggler{liked: make(map[string]bool)}
	source := feed.NewSource(fetcher, feed.NewMemoryStore(time.Hour), cfg.Feed.PageSize)
	syncer := feed.NewSynchronizer(toggler, source)
	auth := &fakeAuth{sessions: map[string]*models.User{"tok-ada": {ID: "u1", Name: "Ada"}}}
	tweets := &fakeTweets{}

	server, err := New(cfg, source, syncer, tweets, fakeProfiles{}, auth)
	require.NoError(t, err)
	server.location = time.UTC

	engine := gin.New()
	server.SetupRoutes(engine)
	return &testEnv{engine: engine, source: source, fetcher: fetcher, toggler: toggler, tweets: tweets}
}

func (e *testEnv) do(method, target string, form url.Values, token string, fragment bool) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept-Language", "en-US")
	req.AddCookie(&http.Cookie{Name: "chirp_view", Value: testViewID})
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "chirp_session", Value: token})
	}
	if fragment {
		req.Header.Set(fragmentHeader, "1")
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestHome_GuestSeesReadOnlyList(t *testing.T) {
	env := newTestEnv(t, fiveItems())

	w := env.do(http.MethodGet, "/", nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `<ul class="cards">`)
	assert.Contains(t, body, "tweet 5")
	assert.Contains(t, body, "tweet 4")
	assert.NotContains(t, body, "tweet 3")
	assert.Contains(t, body, `class="sentinel"`)
	assert.Contains(t, body, `data-threshold="300"`)
	assert.NotContains(t, body, "data-like", "guests get no like buttons")
	assert.Contains(t, body, `class="like tone-muted"`)
	assert.Contains(t, body, `href="/login"`)
	assert.NotContains(t, body, "?tab=following")
	assert.Contains(t, body, `<time class="muted" datetime="2024-03-07T17:00:00Z">3/7/24</time>`)
	assert.Equal(t, int32(1), env.fetcher.calls.Load())
}

func TestHome_ViewerSeesTabsAndButtons(t *testing.T) {
	env := newTestEnv(t, fiveItems())

	w := env.do(http.MethodGet, "/?tab=following", nil, "tok-ada", false)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "?tab=following")
	assert.Contains(t, body, `data-feed="following"`)
	assert.Contains(t, body, "data-like")
	assert.Contains(t, body, `name="content"`)
	assert.Contains(t, body, "Log out")
}

func TestHome_ViewStates(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(http.MethodGet, "/", nil, "", false)
		assert.Contains(t, w.Body.String(), "No Tweets")
		assert.NotContains(t, w.Body.String(), `class="sentinel"`)
	})

	t.Run("error", func(t *testing.T) {
		env := newTestEnv(t, fiveItems())
		env.fetcher.err = errors.New("transport down")
		w := env.do(http.MethodGet, "/", nil, "", false)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Error...")
		assert.NotContains(t, w.Body.String(), `<ul class="cards">`)
	})

	t.Run("loading", func(t *testing.T) {
		env := newTestEnv(t, fiveItems())
		env.fetcher.gate = make(chan struct{})
		defer close(env.fetcher.gate)

		server := newTestEnvServer(t, env, 10*time.Millisecond)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "chirp_view", Value: testViewID})
		server.ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), "data-loading")
		assert.Contains(t, w.Body.String(), `data-list-url="/feeds/list?feed=global"`)
	})
}

// newTestEnvServer builds a second engine over the same source with a short
// initial wait
func newTestEnvServer(t *testing.T, env *testEnv, wait time.Duration) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Feed:    config.FeedConfig{PageSize: 2, ScrollThreshold: 300, InitialWait: wait, SessionTTL: time.Hour},
		Session: config.SessionConfig{CookieName: "chirp_session", ViewCookieName: "chirp_view", TTL: time.Hour},
	}
	syncer := feed.NewSynchronizer(env.toggler, env.source)
	server, err := New(cfg, env.source, syncer, env.tweets, fakeProfiles{}, &fakeAuth{sessions: map[string]*models.User{}})
	require.NoError(t, err)

	engine := gin.New()
	server.SetupRoutes(engine)
	return engine
}

func TestFeedMore(t *testing.T) {
	env := newTestEnv(t, fiveItems())
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/", nil, "", false).Code)

	w := env.do(http.MethodGet, "/feeds/more?feed=global&after=2", nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "tweet 3")
	assert.Contains(t, body, "tweet 2")
	assert.NotContains(t, body, "tweet 5")
	assert.Contains(t, body, "after=4")

	// replaying the same cursor is answered from the cache
	w = env.do(http.MethodGet, "/feeds/more?feed=global&after=2", nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(2), env.fetcher.calls.Load())

	w = env.do(http.MethodGet, "/feeds/more?feed=global&after=4", nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tweet 1")
	assert.NotContains(t, w.Body.String(), "sentinel", "the last page has no sentinel")

	w = env.do(http.MethodGet, "/feeds/more?feed=global&after=bogus", nil, "", true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, "/feeds/more?feed=following&after=2", nil, "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code, "guests have no following feed")
}

func TestFeedMore_FailureThenReloadRecovers(t *testing.T) {
	env := newTestEnv(t, fiveItems())
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/", nil, "", false).Code)

	env.fetcher.mu.Lock()
	env.fetcher.err = errors.New("transport down")
	env.fetcher.mu.Unlock()

	w := env.do(http.MethodGet, "/feeds/more?feed=global&after=2", nil, "", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Error...")
	assert.Contains(t, w.Body.String(), "data-reload")

	env.fetcher.mu.Lock()
	env.fetcher.err = nil
	env.fetcher.mu.Unlock()

	w = env.do(http.MethodGet, "/feeds/list?feed=global", nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "Error...")
	assert.Contains(t, body, "tweet 5")
	assert.Contains(t, body, "after=2", "the sentinel retries the failed page")

	w = env.do(http.MethodGet, "/feeds/more?feed=global&after=2", nil, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tweet 3")
}

func TestToggleLike_GuestIsRejected(t *testing.T) {
	env := newTestEnv(t, fiveItems())
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/", nil, "", false).Code)

	w := env.do(http.MethodPost, "/tweets/t5/like", url.Values{"feed": {"global"}}, "", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int32(0), env.toggler.calls.Load())

	w = env.do(http.MethodPost, "/tweets/t5/like", url.Values{"feed": {"global"}}, "tok-unknown", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int32(0), env.toggler.calls.Load())
}

func TestToggleLike_PatchesCache(t *testing.T) {
	env := newTestEnv(t, fiveItems())
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/", nil, "tok-ada", false).Code)

	w := env.do(http.MethodPost, "/tweets/t5/like", url.Values{"feed": {"global"}}, "tok-ada", true)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<span class="count">6</span>`)
	assert.Contains(t, body, `aria-pressed="true"`)
	assert.Contains(t, body, "tone-accent")
	assert.Equal(t, int32(1), env.toggler.calls.Load())

	session := feed.Session{ID: testViewID + ".u1", ViewerID: "u1"}
	cached, err := env.source.Cached(context.Background(), session, feed.Global)
	require.NoError(t, err)
	it, ok := cached.Find("t5")
	require.True(t, ok)
	assert.Equal(t, 6, it.LikesCount)
	assert.True(t, it.LikedByMe)

	w = env.do(http.MethodPost, "/tweets/t5/like", url.Values{"feed": {"global"}}, "tok-ada", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<span class="count">5</span>`)
	assert.Contains(t, w.Body.String(), `aria-pressed="false"`)
}

func TestToggleLike_Failure(t *testing.T) {
	env := newTestEnv(t, fiveItems())
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/", nil, "tok-ada", false).Code)
	env.toggler.err = errors.New("transport down")

	w := env.do(http.MethodPost, "/tweets/t5/like", url.Values{"feed": {"global"}}, "tok-ada", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `<span class="count">5</span>`)

	session := feed.Session{ID: testViewID + ".u1", ViewerID: "u1"}
	cached, err := env.source.Cached(context.Background(), session, feed.Global)
	require.NoError(t, err)
	it, _ := cached.Find("t5")
	assert.Equal(t, 5, it.LikesCount)
	assert.False(t, it.LikedByMe)
}

func TestToggleLike_UnknownItem(t *testing.T) {
	env := newTestEnv(t, fiveItems())

	w := env.do(http.MethodPost, "/tweets/t5/like", url.Values{"feed": {"global"}}, "tok-ada", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int32(0), env.toggler.calls.Load())

	w = env.do(http.MethodPost, "/tweets/t5/like", url.Values{"feed": {"global"}}, "tok-ada", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestCreateTweet(t *testing.T) {
	env := newTestEnv(t, fiveItems())
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/", nil, "tok-ada", false).Code)

	w := env.do(http.MethodPost, "/tweets", url.Values{"content": {"hello"}}, "tok-ada", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []string{"hello"}, env.tweets.created)

	session := feed.Session{ID: testViewID + ".u1", ViewerID: "u1"}
	cached, err := env.source.Cached(context.Background(), session, feed.Global)
	require.NoError(t, err)
	assert.Equal(t, "t-new", cached.Items()[0].ID)

	w = env.do(http.MethodPost, "/tweets", url.Values{"content": {"   "}}, "tok-ada", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "between 1 and 280 characters")

	w = env.do(http.MethodPost, "/tweets", url.Values{"content": {"hi"}}, "", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestProfilePage(t *testing.T) {
	env := newTestEnv(t, fiveItems())

	w := env.do(http.MethodGet, "/profiles/u2", nil, "tok-ada", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User u2")
	assert.Contains(t, w.Body.String(), `data-feed="profile:u2"`)
	assert.Contains(t, w.Body.String(), "Follow")

	w = env.do(http.MethodGet, "/profiles/nobody", nil, "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFollow_DropsFollowingFeed(t *testing.T) {
	env := newTestEnv(t, fiveItems())
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/?tab=following", nil, "tok-ada", false).Code)

	session := feed.Session{ID: testViewID + ".u1", ViewerID: "u1"}
	cached, _ := env.source.Cached(context.Background(), session, feed.Following)
	require.NotNil(t, cached)

	w := env.do(http.MethodPost, "/profiles/u2/follow", url.Values{}, "tok-ada", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/profiles/u2", w.Header().Get("Location"))

	cached, _ = env.source.Cached(context.Background(), session, feed.Following)
	assert.Nil(t, cached)

	w = env.do(http.MethodPost, "/profiles/u1/follow", url.Values{}, "tok-ada", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, fiveItems())

	w := env.do(http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"wrong"}}, "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Wrong email or password.")

	w = env.do(http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}}, "", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	var token, view string
	for _, c := range w.Result().Cookies() {
		switch c.Name {
		case "chirp_session":
			token = c.Value
		case "chirp_view":
			view = c.Value
		}
	}
	assert.Equal(t, "tok-new", token)
	assert.NotEmpty(t, view)
	assert.NotEqual(t, testViewID, view, "login starts a new view session")

	w = env.do(http.MethodGet, "/login", nil, "tok-new", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = env.do(http.MethodPost, "/logout", url.Values{}, "tok-new", false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = env.do(http.MethodGet, "/", nil, "tok-new", false)
	assert.Contains(t, w.Body.String(), `href="/login"`)
}

func TestSessionMiddleware_IssuesViewCookie(t *testing.T) {
	env := newTestEnv(t, fiveItems())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "chirp_view" {
			found = true
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		}
	}
	assert.True(t, found)
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/static/feed.js", nil, "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "IntersectionObserver")
}

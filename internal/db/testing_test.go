package db

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/steemit/chirp/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	database, err := Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), "ERROR")
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { _ = database.Close() })
	return database
}

type fixture struct {
	repo   *Repository
	users  *UserRepository
	tweets *TweetRepository
	base   time.Time
}

func newFixture(t *testing.T) *fixture {
	database := openTestDB(t)
	repo := NewRepository(database.DB)
	return &fixture{
		repo:   repo,
		users:  NewUserRepository(repo),
		tweets: NewTweetRepository(repo),
		base:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) user(t *testing.T, id, name string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Name: name, Email: id + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// tweet creates a tweet n minutes after the fixture base time
func (f *fixture) tweet(t *testing.T, id, userID string, n int) *models.Tweet {
	t.Helper()
	tw := &models.Tweet{ID: id, UserID: userID, Content: "tweet " + id, CreatedAt: f.base.Add(time.Duration(n) * time.Minute)}
	require.NoError(t, f.tweets.Create(context.Background(), tw))
	return tw
}

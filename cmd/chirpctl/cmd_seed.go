package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/models"
	"github.com/steemit/chirp/internal/service"
)

var (
	seedPassword string
	seedTweets   int
)

// seedCmd fills an empty database with demo accounts
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo accounts with tweets and likes",
	Long: `Create a small set of demo accounts that follow each other, each with
a few tweets and likes. Accounts that already exist are left alone, so the
command can be run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := db.NewRepository(database.DB)
		res, err := seedDemo(cmd.Context(), repo, service.NewAuth(repo, cfg.Session.TTL), seedPassword, seedTweets)
		if err != nil {
			return err
		}
		logger.Info("Demo data seeded",
			zap.Int("users", res.Users),
			zap.Int("tweets", res.Tweets),
			zap.Int("follows", res.Follows),
			zap.Int("likes", res.Likes))
		fmt.Fprintf(cmd.OutOrStdout(), "created %d users, %d tweets, %d follows, %d likes\n",
			res.Users, res.Tweets, res.Follows, res.Likes)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "chirp-demo", "Password of every demo account")
	seedCmd.Flags().IntVar(&seedTweets, "tweets", 12, "Tweets per demo account")
}

type demoAccount struct {
	name  string
	email string
	image string
}

var demoAccounts = []demoAccount{
	{"Ada Lovelace", "ada@example.com", ""},
	{"Grace Hopper", "grace@example.com", ""},
	{"Alan Turing", "alan@example.com", ""},
	{"Edsger Dijkstra", "edsger@example.com", ""},
}

var demoLines = []string{
	"Just setting up my chirp",
	"The more I learn, the less I know.",
	"Testing shows the presence, not the absence of bugs.",
	"Two lines\nin one tweet",
	"Coffee first. Then code.",
	"It's always the cache.",
	"Reading about pagination cursors today",
	"Ship it!",
}

type seedResult struct {
	Users   int
	Tweets  int
	Follows int
	Likes   int
}

// seedDemo creates the demo accounts that do not exist yet. New accounts get
// perUser tweets, follow every other demo account and like the latest tweet
// of each account they follow.
func seedDemo(ctx context.Context, repo *db.Repository, auth *service.Auth, password string, perUser int) (seedResult, error) {
	var res seedResult
	tweets := service.NewTweets(repo)
	profiles := service.NewProfiles(repo)
	users := db.NewUserRepository(repo)

	var created, all []*models.User
	for _, acct := range demoAccounts {
		user, err := auth.Register(ctx, acct.name, acct.email, password, acct.image)
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			if user, err = users.GetByEmail(ctx, acct.email); err != nil {
				return res, err
			}
		case err != nil:
			return res, fmt.Errorf("register %s: %w", acct.email, err)
		default:
			created = append(created, user)
			res.Users++
		}
		all = append(all, user)
	}

	latest := make(map[string]feed.Item)
	for _, user := range created {
		for i := 0; i < perUser; i++ {
			item, err := tweets.Create(ctx, user.ID, demoLines[(i+len(user.Name))%len(demoLines)])
			if err != nil {
				return res, fmt.Errorf("tweet as %s: %w", user.Email, err)
			}
			latest[user.ID] = item
			res.Tweets++
		}
	}

	for _, user := range created {
		for _, other := range all {
			if other.ID == user.ID {
				continue
			}
			if _, err := profiles.ToggleFollow(ctx, user.ID, other.ID); err != nil {
				return res, fmt.Errorf("follow %s: %w", other.Email, err)
			}
			res.Follows++

			item, ok := latest[other.ID]
			if !ok {
				continue
			}
			if _, err := tweets.ToggleLike(ctx, user.ID, item.ID); err != nil {
				return res, fmt.Errorf("like %s: %w", item.ID, err)
			}
			res.Likes++
		}
	}
	return res, nil
}

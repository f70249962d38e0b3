package feed

import (
	"fmt"
	"strings"
)

type keyKind uint8

const (
	keyGlobal keyKind = iota + 1
	keyFollowing
	keyProfile
)

// Key identifies one independently paginated feed
type Key struct {
	kind     keyKind
	authorID string
}

var (
	// Global is the feed of every tweet
	Global = Key{kind: keyGlobal}
	// Following is the feed of tweets by authors the viewer follows
	Following = Key{kind: keyFollowing}
)

// Profile is the feed of one author's tweets
func Profile(authorID string) Key {
	return Key{kind: keyProfile, authorID: authorID}
}

// AuthorID returns the author of a profile feed, "" otherwise
func (k Key) AuthorID() string {
	return k.authorID
}

// OnlyFollowing reports whether the feed is restricted to followed authors
func (k Key) OnlyFollowing() bool {
	return k.kind == keyFollowing
}

// IsZero reports whether k is the zero Key
func (k Key) IsZero() bool {
	return k.kind == 0
}

func (k Key) String() string {
	switch k.kind {
	case keyGlobal:
		return "global"
	case keyFollowing:
		return "following"
	case keyProfile:
		return "profile:" + k.authorID
	default:
		return ""
	}
}

// ParseKey parses the String form of a Key
func ParseKey(s string) (Key, error) {
	switch {
	case s == "global":
		return Global, nil
	case s == "following":
		return Following, nil
	case strings.HasPrefix(s, "profile:") && len(s) > len("profile:"):
		return Profile(strings.TrimPrefix(s, "profile:")), nil
	default:
		return Key{}, fmt.Errorf("unknown feed key %q", s)
	}
}

// LikeKeys are the collections a like on an item by authorID can appear in
func LikeKeys(authorID string) []Key {
	return []Key{Global, Following, Profile(authorID)}
}

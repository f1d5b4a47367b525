package models

import "strings"

// DefaultLang is assigned to users created without a language.
const DefaultLang = "en"

type User struct {
	ID                  int64  `json:"id"`
	RedditUsername      string `json:"reddit_username"`
	Lang                string `json:"lang"`
	IsGlobalAdmin       bool   `json:"is_global_admin"`
	SpaceXIsHost        bool   `json:"spacex__is_host"`
	SpaceXIsMod         bool   `json:"spacex__is_mod"`
	SpaceXIsSlackMember bool   `json:"spacex__is_slack_member"`
}

// IsHostFor reports whether u hosts threads in subreddit. Unknown
// subreddits never match.
func (u User) IsHostFor(subreddit *string) bool {
	if subreddit == nil {
		return false
	}
	switch strings.ToLower(*subreddit) {
	case "spacex":
		return u.SpaceXIsHost
	default:
		return false
	}
}

// IsModeratorOf reports whether u moderates subreddit.
func (u User) IsModeratorOf(subreddit *string) bool {
	if subreddit == nil {
		return false
	}
	switch strings.ToLower(*subreddit) {
	case "spacex":
		return u.SpaceXIsMod
	default:
		return false
	}
}

type UserInsert struct {
	RedditUsername      string `json:"reddit_username"`
	Lang                string `json:"lang"`
	IsGlobalAdmin       bool   `json:"is_global_admin"`
	SpaceXIsHost        bool   `json:"spacex__is_host"`
	SpaceXIsMod         bool   `json:"spacex__is_mod"`
	SpaceXIsSlackMember bool   `json:"spacex__is_slack_member"`
}

type UserUpdate struct {
	Lang                *string `json:"lang,omitempty"`
	IsGlobalAdmin       *bool   `json:"is_global_admin,omitempty"`
	SpaceXIsHost        *bool   `json:"spacex__is_host,omitempty"`
	SpaceXIsMod         *bool   `json:"spacex__is_mod,omitempty"`
	SpaceXIsSlackMember *bool   `json:"spacex__is_slack_member,omitempty"`
}

func (up UserUpdate) Apply(u *User) {
	if up.Lang != nil {
		u.Lang = *up.Lang
	}
	if up.IsGlobalAdmin != nil {
		u.IsGlobalAdmin = *up.IsGlobalAdmin
	}
	if up.SpaceXIsHost != nil {
		u.SpaceXIsHost = *up.SpaceXIsHost
	}
	if up.SpaceXIsMod != nil {
		u.SpaceXIsMod = *up.SpaceXIsMod
	}
	if up.SpaceXIsSlackMember != nil {
		u.SpaceXIsSlackMember = *up.SpaceXIsSlackMember
	}
}

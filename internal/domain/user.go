package domain

import (
	"slices"
	"time"
)

const (
	DeviceIOS     = "ios"
	DeviceAndroid = "android"
)

type User struct {
	UUID                  string    `json:"uuid"`
	DeviceToken           string    `json:"deviceToken"`
	DeviceType            string    `json:"deviceType"`
	FollowedPublications  []string  `json:"followedPublications"`
	FollowedOrganizations []string  `json:"followedOrganizations"`
	ReadArticles          []string  `json:"readArticles"`
	BookmarkedArticles    []string  `json:"bookmarkedArticles"`
	CreatedAt             time.Time `json:"createdAt"`
}

func ValidDeviceType(t string) bool {
	return t == DeviceIOS || t == DeviceAndroid
}

// The list mutators below keep set semantics and report whether the list
// changed.

func (u *User) FollowPublication(slug string) bool {
	return addUnique(&u.FollowedPublications, slug)
}

func (u *User) UnfollowPublication(slug string) bool {
	return remove(&u.FollowedPublications, slug)
}

func (u *User) FollowOrganization(slug string) bool {
	return addUnique(&u.FollowedOrganizations, slug)
}

func (u *User) UnfollowOrganization(slug string) bool {
	return remove(&u.FollowedOrganizations, slug)
}

func (u *User) Bookmark(articleID string) bool {
	return addUnique(&u.BookmarkedArticles, articleID)
}

func (u *User) Unbookmark(articleID string) bool {
	return remove(&u.BookmarkedArticles, articleID)
}

func (u *User) MarkRead(articleID string) bool {
	return addUnique(&u.ReadArticles, articleID)
}

func (u *User) Follows(slug string) bool {
	return slices.Contains(u.FollowedPublications, slug)
}

func addUnique(list *[]string, v string) bool {
	if slices.Contains(*list, v) {
		return false
	}
	*list = append(*list, v)
	return true
}

func remove(list *[]string, v string) bool {
	i := slices.Index(*list, v)
	if i < 0 {
		return false
	}
	*list = slices.Delete(*list, i, i+1)
	return true
}

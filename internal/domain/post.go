package domain

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

type Comment struct {
	ID           ID        `json:"_id"`
	Author       string    `json:"author"`
	CreationDate time.Time `json:"creation_date"`
	Text         string    `json:"text"`
	Pinned       bool      `json:"pinned"`
}

type Post struct {
	ID           ID          `json:"_id"`
	Author       string      `json:"author"`
	CreationDate time.Time   `json:"creation_date"`
	Text         string      `json:"text"`
	Space        *ID         `json:"space"`
	Pinned       bool        `json:"pinned"`
	Tags         []string    `json:"tags"`
	Plans        []ID        `json:"plans"`
	Files        []FileEntry `json:"files"`
	Comments     []Comment   `json:"comments"`
	Likers       []string    `json:"likers"`

	IsRepost             bool       `json:"isRepost"`
	RepostAuthor         *string    `json:"repostAuthor"`
	OriginalCreationDate *time.Time `json:"originalCreationDate"`
	RepostText           *string    `json:"repostText"`
}

func (p Post) InSpace() bool { return p.Space != nil }

func (p Post) LikedBy(user string) bool { return containsString(p.Likers, user) }

func (p Post) Comment(id ID) (Comment, bool) {
	for _, c := range p.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return Comment{}, false
}

// PostAuthority is what the acting user holds relative to a post's space.
type PostAuthority struct {
	PlatformAdmin bool
	SpaceAdmin    bool
	Member        bool
	Capabilities  map[Capability]bool
}

func (a PostAuthority) Can(c Capability) bool {
	return a.PlatformAdmin || a.SpaceAdmin || a.Capabilities[c]
}

// VisibleTo implements post visibility: posts outside spaces are public, others need membership
// and read_timeline in the space.
func (p Post) VisibleTo(a PostAuthority) bool {
	if !p.InSpace() {
		return true
	}
	return a.Member && a.Can(CapReadTimeline)
}

func (p Post) CanEdit(user string, a PostAuthority) bool {
	if p.Author != user {
		return false
	}
	return !p.InSpace() || a.Can(CapPost)
}

// CanRedact covers deletion of the post and of its comments.
func (p Post) CanRedact(user, owner string, a PostAuthority) bool {
	return owner == user || a.PlatformAdmin || (p.InSpace() && a.SpaceAdmin)
}

func (p Post) CanPin(a PostAuthority) bool {
	return p.InSpace() && (a.SpaceAdmin || a.PlatformAdmin)
}

func (p Post) CanPinComment(user string, a PostAuthority) bool {
	return p.Author == user || a.PlatformAdmin || a.SpaceAdmin
}

// TimelineViewer is the projection of the acting user needed by the personal timeline.
type TimelineViewer struct {
	Username     string
	Follows      []string
	MemberSpaces []ID
}

func (v TimelineViewer) memberOf(id ID) bool {
	for _, s := range v.MemberSpaces {
		if s == id {
			return true
		}
	}
	return false
}

// PersonalTimelineVisible is the frontpage predicate: own posts, posts of followed users outside
// spaces, and posts in spaces the viewer is a member of. Following an author never reveals posts
// in a space the viewer is not a member of.
func PersonalTimelineVisible(p Post, v TimelineViewer) bool {
	if p.Author == v.Username {
		return true
	}
	if p.InSpace() {
		return v.memberOf(*p.Space)
	}
	return containsString(v.Follows, p.Author)
}

var hashtagPattern = regexp2.MustCompile(`(?<=(^|\s)#)[\p{L}\p{N}_]+`, regexp2.None)

// ExtractTags returns the distinct hashtags of text in order of appearance, lower-cased.
func ExtractTags(text string) []string {
	tags := []string{}
	seen := map[string]struct{}{}
	m, err := hashtagPattern.FindStringMatch(text)
	for err == nil && m != nil {
		tag := strings.ToLower(m.String())
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
		m, err = hashtagPattern.FindNextMatch(m)
	}
	return tags
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersonalTimelineVisible(t *testing.T) {
	private := NewID()
	shared := NewID()
	viewer := TimelineViewer{Username: "alice", Follows: []string{"bob"}, MemberSpaces: []ID{shared}}

	tests := []struct {
		name string
		post Post
		want bool
	}{
		{"own post", Post{Author: "alice"}, true},
		{"own post in foreign space", Post{Author: "alice", Space: &private}, true},
		{"followed author", Post{Author: "bob"}, true},
		{"followed author in private space", Post{Author: "bob", Space: &private}, false},
		{"stranger in shared space", Post{Author: "zoe", Space: &shared}, true},
		{"stranger outside spaces", Post{Author: "zoe"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PersonalTimelineVisible(tt.post, viewer))
		})
	}
}

func TestPost_Authority(t *testing.T) {
	space := NewID()
	inSpace := Post{Author: "alice", Space: &space}
	public := Post{Author: "alice"}

	member := PostAuthority{Member: true, Capabilities: map[Capability]bool{CapReadTimeline: true}}
	outsider := PostAuthority{}
	spaceAdmin := PostAuthority{Member: true, SpaceAdmin: true}

	assert.True(t, public.VisibleTo(outsider))
	assert.False(t, inSpace.VisibleTo(outsider))
	assert.True(t, inSpace.VisibleTo(member))

	assert.False(t, inSpace.CanEdit("alice", member), "post capability lost")
	assert.True(t, public.CanEdit("alice", outsider))
	assert.False(t, public.CanEdit("bob", outsider))

	assert.True(t, inSpace.CanRedact("bob", "alice", spaceAdmin))
	assert.False(t, public.CanRedact("bob", "alice", spaceAdmin))
	assert.True(t, public.CanRedact("bob", "alice", PostAuthority{PlatformAdmin: true}))

	assert.False(t, public.CanPin(PostAuthority{PlatformAdmin: true}))
	assert.True(t, inSpace.CanPin(spaceAdmin))
	assert.False(t, inSpace.CanPin(member))
}

func TestExtractTags(t *testing.T) {
	assert.Equal(t, []string{"ve", "climate_2024"}, ExtractTags("#VE kickoff about #climate_2024 and #ve again, mail a#b"))
	assert.Empty(t, ExtractTags("no tags here"))
}

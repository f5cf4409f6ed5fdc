package domain

type Capability string

const (
	CapCreateSpace  Capability = "create_space"
	CapComment      Capability = "comment"
	CapJoinSpace    Capability = "join_space"
	CapPost         Capability = "post"
	CapReadFiles    Capability = "read_files"
	CapReadTimeline Capability = "read_timeline"
	CapReadWiki     Capability = "read_wiki"
	CapWriteFiles   Capability = "write_files"
	CapWriteWiki    Capability = "write_wiki"
)

// GlobalScope is the scope of platform-wide rules; every other scope is a space id in hex.
const GlobalScope = "global"

var (
	GlobalCapabilities = []Capability{CapCreateSpace}
	SpaceCapabilities  = []Capability{
		CapComment, CapJoinSpace, CapPost, CapReadFiles, CapReadTimeline, CapReadWiki, CapWriteFiles, CapWriteWiki,
	}
)

// ACLRule grants capabilities to a role within a scope.
type ACLRule struct {
	Role         Role                `json:"role"`
	Scope        string              `json:"scope"`
	Capabilities map[Capability]bool `json:"capabilities"`
}

// Allows resolves a capability; names missing from the rule deny.
func (r ACLRule) Allows(c Capability) bool { return r.Capabilities[c] }

func IsCapability(scope string, c Capability) bool {
	list := SpaceCapabilities
	if scope == GlobalScope {
		list = GlobalCapabilities
	}
	for _, k := range list {
		if k == c {
			return true
		}
	}
	return false
}

// GlobalTemplate returns the rule seeded for role when it is introduced.
func GlobalTemplate(role Role) ACLRule {
	return ACLRule{
		Role:         role,
		Scope:        GlobalScope,
		Capabilities: map[Capability]bool{CapCreateSpace: role != RoleGuest},
	}
}

// SpaceTemplate returns the rule seeded for role when a space is created.
func SpaceTemplate(role Role, spaceID ID) ACLRule {
	caps := make(map[Capability]bool, len(SpaceCapabilities))
	for _, c := range SpaceCapabilities {
		caps[c] = role != RoleGuest
	}
	if role == RoleGuest {
		caps[CapReadTimeline] = true
		caps[CapReadFiles] = true
		caps[CapReadWiki] = true
	}
	return ACLRule{Role: role, Scope: spaceID.Hex(), Capabilities: caps}
}

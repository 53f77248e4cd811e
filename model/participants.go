package model

// ParticipantSet is the deduplicated, order-stable set of backend identities invited to a group.
type ParticipantSet struct {
	Owner       string   `json:"owner"`
	Client      string   `json:"client"`
	FixedRoster []string `json:"fixed_roster"`
	Members     []string `json:"members"`
}

// NewParticipantSet builds the set owner, client, then roster, keeping the first occurrence
// of every identity. Empty identities are skipped.
func NewParticipantSet(owner, client string, roster []string) ParticipantSet {
	seen := make(map[string]struct{}, len(roster)+2)
	members := make([]string, 0, len(roster)+2)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	add(owner)
	add(client)
	for _, id := range roster {
		add(id)
	}
	return ParticipantSet{
		Owner:       owner,
		Client:      client,
		FixedRoster: append([]string(nil), roster...),
		Members:     members,
	}
}

// Size returns the number of distinct members.
func (p ParticipantSet) Size() int {
	return len(p.Members)
}

// Contains reports whether id is a member.
func (p ParticipantSet) Contains(id string) bool {
	for _, m := range p.Members {
		if m == id {
			return true
		}
	}
	return false
}

// RosterTargets returns the fixed roster members that are neither owner nor client.
// The owner already holds admin, the client is promoted separately.
func (p ParticipantSet) RosterTargets() []string {
	var out []string
	for _, m := range p.Members {
		if m == p.Owner || m == p.Client {
			continue
		}
		out = append(out, m)
	}
	return out
}

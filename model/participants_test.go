package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewParticipantSet(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		client  string
		roster  []string
		members []string
	}{
		{
			name:    "distinct members keep order",
			owner:   "o@c.us",
			client:  "c@c.us",
			roster:  []string{"d1@c.us", "d2@c.us"},
			members: []string{"o@c.us", "c@c.us", "d1@c.us", "d2@c.us"},
		},
		{
			name:    "client equals owner",
			owner:   "o@c.us",
			client:  "o@c.us",
			members: []string{"o@c.us"},
		},
		{
			name:    "roster repeats owner and client",
			owner:   "o@c.us",
			client:  "c@c.us",
			roster:  []string{"c@c.us", "d1@c.us", "o@c.us", "d1@c.us"},
			members: []string{"o@c.us", "c@c.us", "d1@c.us"},
		},
		{
			name:    "empty identities skipped",
			owner:   "o@c.us",
			client:  "",
			roster:  []string{"", "d1@c.us"},
			members: []string{"o@c.us", "d1@c.us"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewParticipantSet(tt.owner, tt.client, tt.roster)
			assert.Equal(t, tt.members, set.Members)
			assert.Equal(t, len(tt.members), set.Size())
			assert.True(t, set.Contains(tt.owner))
			if tt.client != "" {
				assert.True(t, set.Contains(tt.client))
			}
		})
	}
}

func TestParticipantSet_RosterTargets(t *testing.T) {
	set := NewParticipantSet("o@c.us", "c@c.us", []string{"d1@c.us", "c@c.us", "d2@c.us"})
	assert.Equal(t, []string{"d1@c.us", "d2@c.us"}, set.RosterTargets())
}

func TestGroupInfo_NonAdmins(t *testing.T) {
	info := GroupInfo{Participants: []GroupMember{
		{ID: "o@c.us", IsSuperAdmin: true},
		{ID: "c@c.us", IsAdmin: true},
		{ID: "d1@c.us"},
	}}
	assert.Equal(t, []string{"d1@c.us"}, info.NonAdmins())
}

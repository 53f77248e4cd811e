package model

import "time"

// GroupProvisionRequest is one inbound ask to create a group for a client.
type GroupProvisionRequest struct {
	ClientContact string    `json:"phone"`
	GroupLabel    string    `json:"groupName"`
	ReceivedAt    time.Time `json:"-"`
}

// GroupRecord is the durable artifact of a successful provisioning.
type GroupRecord struct {
	GroupID       string         `json:"group_id"`
	GroupLabel    string         `json:"group_name"`
	Participants  ParticipantSet `json:"participants"`
	ClientContact string         `json:"client_contact"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PromotionOutcome is the result of promoting one batch of participants.
type PromotionOutcome struct {
	Targets      []string `json:"targets"`
	Succeeded    bool     `json:"succeeded"`
	AttemptsUsed int      `json:"attempts_used"`
}

// ParticipantBreakdown echoes who was invited, by role, as phone numbers.
type ParticipantBreakdown struct {
	Admin     string   `json:"admin"`
	Client    string   `json:"client"`
	Designers []string `json:"designers"`
}

// ProvisionResult is the synchronous response of a successful provisioning.
type ProvisionResult struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	GroupID      string               `json:"groupId"`
	GroupName    string               `json:"groupName"`
	Participants ParticipantBreakdown `json:"participants"`
}

// GroupMember is one roster entry reported by the backend.
type GroupMember struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"isAdmin"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// GroupInfo is the backend's view of a group roster.
type GroupInfo struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	Owner        string        `json:"owner,omitempty"`
	Participants []GroupMember `json:"participants"`
}

// NonAdmins returns the members that hold no admin privilege.
func (g GroupInfo) NonAdmins() []string {
	var out []string
	for _, p := range g.Participants {
		if !p.IsAdmin && !p.IsSuperAdmin {
			out = append(out, p.ID)
		}
	}
	return out
}

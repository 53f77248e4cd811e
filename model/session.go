package model

// SessionState is the connection state of the messaging backend session.
type SessionState string

const (
	SessionDisconnected    SessionState = "disconnected"
	SessionAwaitingPairing SessionState = "awaiting_pairing"
	SessionAuthenticated   SessionState = "authenticated"
	SessionReady           SessionState = "ready"
)

// Session is a read-only snapshot of the backend session.
// PairingChallenge is only set while AwaitingPairing, BackendIdentity only once Ready.
type Session struct {
	State            SessionState `json:"state"`
	PairingChallenge string       `json:"pairing_challenge,omitempty"`
	BackendIdentity  string       `json:"backend_identity,omitempty"`
}

// IsReady reports whether provisioning requests may be accepted.
func (s Session) IsReady() bool {
	return s.State == SessionReady
}

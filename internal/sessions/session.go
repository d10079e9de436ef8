package sessions

import "time"

// State classifies the stored credentials.
type State int

const (
	// Anonymous: no access token anywhere.
	Anonymous State = iota
	// Degraded: an access token without a refresh token. Requests work until the
	// access token expires, after which the user has to log in again.
	Degraded
	// Active: both tokens present.
	Active
)

func (s State) String() string {
	switch s {
	case Degraded:
		return "degraded"
	case Active:
		return "active"
	}
	return "anonymous"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Session is a read-only view of the current session.
type Session struct {
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	State          State     `json:"state"`
	Generation     uint64    `json:"generation"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	LastActivityAt time.Time `json:"lastActivityAt,omitempty"`
	LastRoute      string    `json:"lastRoute,omitempty"`
}

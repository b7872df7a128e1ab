package backend

import "fmt"

// EventName is the auth state change reported by the service
type EventName string

const (
	EventInitialSession EventName = "INITIAL_SESSION"
	EventSignedIn       EventName = "SIGNED_IN"
	EventSignedOut      EventName = "SIGNED_OUT"
	EventTokenRefreshed EventName = "TOKEN_REFRESHED"
	EventUserUpdated    EventName = "USER_UPDATED"
)

// SessionEvent is either SessionPresent or SessionAbsent
type SessionEvent interface {
	EventName() EventName
	sessionEvent()
}

// SessionPresent carries a live session and its user
type SessionPresent struct {
	Name    EventName
	Session Session
}

func (e SessionPresent) EventName() EventName { return e.Name }
func (SessionPresent) sessionEvent()          {}

// SessionAbsent reports that there is no session any more
type SessionAbsent struct {
	Name EventName
}

func (e SessionAbsent) EventName() EventName { return e.Name }
func (SessionAbsent) sessionEvent()          {}

// NewSessionEvent validates a raw notification and turns it into a SessionEvent.
// A session without a user id is rejected rather than treated as signed in.
func NewSessionEvent(name EventName, session *Session) (SessionEvent, error) {
	switch name {
	case EventInitialSession, EventSignedIn, EventSignedOut, EventTokenRefreshed, EventUserUpdated:
	default:
		return nil, fmt.Errorf("unknown auth event %q", name)
	}

	if session == nil {
		return SessionAbsent{Name: name}, nil
	}
	if session.User.ID == "" {
		return nil, fmt.Errorf("auth event %s: session has no user", name)
	}
	if name == EventSignedOut {
		return nil, fmt.Errorf("auth event %s: unexpected session", name)
	}
	return SessionPresent{Name: name, Session: *session}, nil
}

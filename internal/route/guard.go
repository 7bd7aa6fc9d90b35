package route

import "github.com/nexusmedic/medhub/pkg/domain"

// SessionView is the part of the session the guard reads.
type SessionView interface {
	Loading() bool
	IsAuthenticated() bool
	User() *domain.User
}

// Action is what the guard tells the caller to do.
type Action int

const (
	Render Action = iota
	ShowLoading
	Redirect
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case ShowLoading:
		return "loading"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is the guard's verdict for one navigation.
type Decision struct {
	Action Action
	Target Path // set for Redirect
	Denied bool // redirect caused by the role lacking the route's capability
}

// Guard decides whether requested may render given the session. It holds no
// state and can be called on every navigation.
func Guard(s SessionView, requested Path) Decision {
	if s.Loading() {
		return Decision{Action: ShowLoading}
	}
	authed := s.IsAuthenticated()
	if !Known(requested) {
		if authed {
			return Decision{Action: Redirect, Target: Landing(roleOf(s))}
		}
		return Decision{Action: Redirect, Target: Login}
	}
	if !Protected(requested) {
		if authed {
			return Decision{Action: Redirect, Target: Landing(roleOf(s))}
		}
		return Decision{Action: Render}
	}
	if !authed {
		return Decision{Action: Redirect, Target: Login}
	}
	if c, ok := Capability(requested); ok && !roleOf(s).Can(c) {
		return Decision{Action: Redirect, Target: Dashboard, Denied: true}
	}
	return Decision{Action: Render}
}

func roleOf(s SessionView) domain.Role {
	if u := s.User(); u != nil {
		return u.Role
	}
	return ""
}

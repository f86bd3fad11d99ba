// Package gate decides whether a route may render, from the session signals
// observed in the credential store, the refresh coordinator and the identity
// query.
package gate

import "github.com/aussiebroadwan/calendar/pkg/authsdk"

// Decision is the outcome of evaluating a route.
type Decision int

const (
	// Deciding means a refresh or identity lookup is still running.
	Deciding Decision = iota
	// Denied sends a protected route to login and a public route to the
	// authenticated home.
	Denied
	Granted
)

func (d Decision) String() string {
	switch d {
	case Deciding:
		return "deciding"
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return "unknown"
	}
}

// Route selects the decision table.
type Route int

const (
	RouteProtected Route = iota
	RoutePublic
)

// Signals are the inputs of a decision.
type Signals struct {
	HasStoredCredential bool
	RefreshInFlight     bool
	SessionLoading      bool
	SessionErr          error
	Identity            *authsdk.UserResponse
}

// DecideProtected evaluates a route that requires a session.
func DecideProtected(s Signals) Decision {
	switch {
	case !s.HasStoredCredential && !s.RefreshInFlight:
		return Denied
	case s.RefreshInFlight || s.SessionLoading:
		return Deciding
	case s.SessionErr != nil || s.Identity == nil:
		return Denied
	default:
		return Granted
	}
}

// DecidePublic evaluates a login or register page. Denied means the visitor
// already has a resolved session and should leave.
func DecidePublic(s Signals) Decision {
	if s.HasStoredCredential && !s.SessionLoading && s.SessionErr == nil && s.Identity != nil {
		return Denied
	}
	return Granted
}

package domain

import "time"

// RefreshToken is the server-side record of an issued refresh JWT, keyed by
// its jti. Rotation revokes the presented record and issues a new one.
type RefreshToken struct {
	ID        string // jti
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Session is what login and refresh hand back to the HTTP layer.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
	RefreshTTL   time.Duration
}

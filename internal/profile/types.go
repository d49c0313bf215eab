// Package profile manages the persisted athlete and coach records, keyed by
// jersey number.
package profile

import "time"

// Role distinguishes athletes from coaches at login.
type Role string

const (
	RoleAthlete Role = "athlete"
	RoleCoach   Role = "coach"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAthlete || r == RoleCoach
}

// Record is one persisted profile. Jersey is the unique key. Points and
// Streak are persisted but never mutated by this client.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Jersey    string    `json:"jersey"`
	Role      Role      `json:"role"`
	Points    int       `json:"points"`
	Streak    int       `json:"streak"`
	CreatedAt time.Time `json:"created_at"`
}

package domain

// Role controls what a user may do within their team.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Team is the tenant boundary. Every catalog entity carries a TeamID and all
// reads and writes are scoped to it.
type Team struct {
	Syncable
	Name string `json:"name"`
}

// User belongs to exactly one team. Authentication happens upstream; the
// server only resolves a verified identity to a user record and checks the
// role.
type User struct {
	Syncable
	TeamID string `json:"team_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
	APIKey string `json:"api_key,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

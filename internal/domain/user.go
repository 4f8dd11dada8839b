package domain

type Role string

const (
	RoleEngineer          Role = "engineer"
	RoleIncidentCommander Role = "incident_commander"
	RoleManager           Role = "manager"
)

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// Identity is the verified actor behind an authenticated request.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
}

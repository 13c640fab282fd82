package domain

// Role of a connection inside one room.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Member is the read-only view of a room participant handed to clients.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

package model

type Role string

const (
	RoleRenter Role = "renter"
	RoleHost   Role = "host"
)

func (r Role) IsValid() bool {
	return r == RoleRenter || r == RoleHost
}

// Actor is the authenticated caller. It is passed explicitly to every booking
// operation and trusted as-is.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

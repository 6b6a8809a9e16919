package model

// Role names the capability a caller acts with.
type Role string

const (
	RoleDriver Role = "driver"
	RoleRider  Role = "rider"
)

// Principal is the verified caller of an engine operation.  It is built by
// the JWT middleware and passed explicitly into every mutating call.
type Principal struct {
	ID   string
	Role Role
}

// Is reports whether the principal is identity id acting with role r.
func (p Principal) Is(id string, r Role) bool {
	return p.ID != "" && p.ID == id && p.Role == r
}

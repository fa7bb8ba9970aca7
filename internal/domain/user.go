package domain

// Role is the capability group of a user.
type Role string

// Roles.
const (
	RoleMitra  Role = "mitra"
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// Valid checks if the Role is known.
func (r Role) Valid() bool {
	return r == RoleMitra || r == RoleAdmin || r == RoleDriver
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin reports whether the actor is an admin.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Is reports whether the actor is the given user.
func (a Actor) Is(userID int64) bool { return a.ID != 0 && a.ID == userID }

// User is a platform account. Availability is meaningful for drivers only.
type User struct {
	ID            int64
	Name          string
	Role          Role
	Availability  Availability
	VehicleType   string
	VehicleNumber string
	PushToken     string
}

// Eligible reports whether the user can take a new delivery.
func (u User) Eligible() bool {
	return u.Role == RoleDriver && u.Availability == AvailabilityAvailable
}

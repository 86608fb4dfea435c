package auth

import "time"

// Role is the closed set of platform roles. The string value is the role
// name stored in the roles table and carried in tokens.
type Role string

const (
	RoleNormalUser          Role = "Normal User"
	RoleStoreOwner          Role = "Store Owner"
	RoleSystemAdministrator Role = "System Administrator"
)

// Roles lists every valid role.
var Roles = []Role{RoleNormalUser, RoleStoreOwner, RoleSystemAdministrator}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleNormalUser, RoleStoreOwner, RoleSystemAdministrator:
		return true
	default:
		return false
	}
}

// User is the domain representation of an account.
// It mirrors the users table joined with roles and carries no JSON
// annotations so presentation layers choose their own shape.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Address      string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is what an authenticated request knows about its caller.
type Identity struct {
	ID   int64
	Role Role
	Name string
}

// RegisterRequest contains self-registration data supplied by callers.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

// NewUserRequest is the validated input for creating any account.
type NewUserRequest struct {
	Name     string `json:"name" validate:"min=20,max=60,nonul"`
	Email    string `json:"email" validate:"required,max=255,email,nonul"`
	Password string `json:"password" validate:"password"`
	Address  string `json:"address" validate:"max=400,nonul"`
	Role     Role   `json:"role" validate:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdatePasswordRequest carries a password change for the caller.
type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
